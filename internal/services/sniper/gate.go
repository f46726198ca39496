package sniper

import (
	"maps"
	"time"

	"github.com/google/uuid"

	"SniperBot/internal/domain/models"
)

// QualifyingRuns is how many clusters one digit needs before it alerts.
const QualifyingRuns = 3

// Gate decides when a feed's cluster set raises an alert.
//
// A feed is armed after it fires and stays silent while any digit keeps
// qualifying. Once no digit qualifies every key of the feed is cleared, so
// the next qualifying window fires again.
type Gate struct {
	now   func() time.Time
	newID func() string
}

type GateOption func(*Gate)

func WithClock(now func() time.Time) GateOption {
	return func(g *Gate) { g.now = now }
}

func WithIDGenerator(f func() string) GateOption {
	return func(g *Gate) { g.newID = f }
}

func NewGate(opts ...GateOption) *Gate {
	g := &Gate{
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// QualifyingDigit returns the smallest digit with at least QualifyingRuns clusters.
func QualifyingDigit(clusters models.ClusterSet) (models.Digit, int, bool) {
	counts := clusters.RunCounts()
	for d, runs := range counts {
		if runs >= QualifyingRuns {
			return models.Digit(d), runs, true
		}
	}
	return 0, 0, false
}

// Evaluate never mutates state; it returns the state to keep.
func (g *Gate) Evaluate(market models.Market, clusters models.ClusterSet, state models.AlertState) (*models.AlertEvent, models.AlertState) {
	digit, runs, ok := QualifyingDigit(clusters)

	if !ok {
		if !state.Armed(market.ID) {
			return nil, state
		}
		next := maps.Clone(state)
		maps.DeleteFunc(next, func(k models.AlertKey, _ bool) bool { return k.Feed == market.ID })
		return nil, next
	}

	if state.Armed(market.ID) {
		return nil, state
	}

	next := maps.Clone(state)
	if next == nil {
		next = models.AlertState{}
	}
	next[models.AlertKey{Feed: market.ID, Digit: digit}] = true

	return &models.AlertEvent{
		ID:        g.newID(),
		Feed:      market.ID,
		FeedLabel: market.Label,
		Digit:     digit,
		Runs:      runs,
		FiredAt:   g.now(),
	}, next
}
