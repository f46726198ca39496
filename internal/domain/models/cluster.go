package models

// Cluster is one maximal run of at least two equal digits in a window snapshot.
// EndIndex is the position of the run's last element in newest-first order.
type Cluster struct {
	Digit    Digit `json:"digit"`
	Length   int   `json:"length"`
	EndIndex int   `json:"end_index"`
}

// Start is the position of the run's first element.
func (c Cluster) Start() int { return c.EndIndex - c.Length + 1 }

func (c Cluster) Contains(pos int) bool {
	return pos >= c.Start() && pos <= c.EndIndex
}

// ClusterSet holds clusters in scan order.
type ClusterSet []Cluster

// ClusterAt returns the index of the cluster covering pos.
func (s ClusterSet) ClusterAt(pos int) (int, bool) {
	for i, c := range s {
		if c.Contains(pos) {
			return i, true
		}
	}
	return -1, false
}

// TierAt maps a window position to its display tier.
func (s ClusterSet) TierAt(pos int) Tier {
	i, ok := s.ClusterAt(pos)
	if !ok {
		return TierNeutral
	}
	return TierForIndex(i)
}

// Tiers returns the tier of each of the first n positions.
func (s ClusterSet) Tiers(n int) []Tier {
	out := make([]Tier, n)
	for i := range out {
		out[i] = s.TierAt(i)
	}
	return out
}

// RunCounts tallies runs per digit value, not run lengths.
func (s ClusterSet) RunCounts() [10]int {
	var counts [10]int
	for _, c := range s {
		if c.Digit.Valid() {
			counts[c.Digit]++
		}
	}
	return counts
}

// Tier is the colour bucket of a window cell.
type Tier string

const (
	TierYellow  Tier = "yellow"
	TierGreen   Tier = "green"
	TierRed     Tier = "red"
	TierBlue    Tier = "blue"
	TierNeutral Tier = "neutral"
)

// TierForIndex maps a cluster's scan index to a tier; fourth and later share blue.
func TierForIndex(i int) Tier {
	switch {
	case i < 0:
		return TierNeutral
	case i == 0:
		return TierYellow
	case i == 1:
		return TierGreen
	case i == 2:
		return TierRed
	default:
		return TierBlue
	}
}
