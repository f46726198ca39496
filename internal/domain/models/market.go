package models

import "strings"

// FeedID identifies a synthetic market feed, e.g. "R_10".
type FeedID string

// Market is a tracked feed with its display label.
type Market struct {
	ID    FeedID `json:"id"`
	Label string `json:"label"`
}

// DefaultFeeds is the reference set of volatility indices.
var DefaultFeeds = []FeedID{"R_10", "R_25", "R_50", "R_75", "R_100"}

// Label renders "R_10" as "Vol 10". Ids without the prefix are returned unchanged.
func (f FeedID) Label() string {
	return strings.Replace(string(f), "R_", "Vol ", 1)
}

func NewMarket(id FeedID) Market {
	return Market{ID: id, Label: id.Label()}
}

// MarketsFrom builds markets from configured ids, skipping blanks and duplicates.
func MarketsFrom(ids []string) []Market {
	seen := make(map[FeedID]struct{}, len(ids))
	out := make([]Market, 0, len(ids))
	for _, raw := range ids {
		id := FeedID(strings.TrimSpace(raw))
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, NewMarket(id))
	}
	return out
}
