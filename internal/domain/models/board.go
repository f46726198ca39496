package models

import "time"

const (
	OrderNewest = "newest"
	OrderOldest = "oldest"
)

// Board is a read-only snapshot of one feed for display.
// Digits and Tiers are index-aligned; cluster positions refer to newest-first order.
type Board struct {
	Feed      FeedID     `json:"feed"`
	Label     string     `json:"label"`
	Order     string     `json:"order"`
	Digits    []Digit    `json:"digits"`
	Tiers     []Tier     `json:"tiers"`
	Clusters  ClusterSet `json:"clusters"`
	LastQuote string     `json:"last_quote,omitempty"`
	Samples   uint64     `json:"samples"`
	Armed     bool       `json:"armed"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Oldest returns a copy with cells reversed for left-to-right rendering.
// Clusters keep their newest-first coordinates.
func (b Board) Oldest() Board {
	out := b
	out.Order = OrderOldest
	out.Digits = make([]Digit, len(b.Digits))
	out.Tiers = make([]Tier, len(b.Tiers))
	for i := range b.Digits {
		out.Digits[len(b.Digits)-1-i] = b.Digits[i]
	}
	for i := range b.Tiers {
		out.Tiers[len(b.Tiers)-1-i] = b.Tiers[i]
	}
	return out
}
