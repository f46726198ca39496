package sniper

import "SniperBot/internal/domain/models"

// Analyze extracts every maximal run of two or more equal digits from window,
// in scan order. Positions are indexes into window as given.
func Analyze(window []models.Digit) models.ClusterSet {
	n := len(window)
	if n < 2 {
		return models.ClusterSet{}
	}

	set := models.ClusterSet{}
	streak := 1
	for i := 1; i < n; i++ {
		if window[i] == window[i-1] {
			streak++
			continue
		}
		if streak >= 2 {
			set = append(set, models.Cluster{Digit: window[i-1], Length: streak, EndIndex: i - 1})
		}
		streak = 1
	}
	if streak >= 2 {
		set = append(set, models.Cluster{Digit: window[n-1], Length: streak, EndIndex: n - 1})
	}
	return set
}
