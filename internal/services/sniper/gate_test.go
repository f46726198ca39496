package sniper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SniperBot/internal/domain/models"
)

var vol10 = models.NewMarket("R_10")

func fixedGate() *Gate {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return NewGate(
		WithClock(func() time.Time { return at }),
		WithIDGenerator(func() string { return "id-1" }),
	)
}

// three runs of 3, one run of 1
func threeOfThree() models.ClusterSet {
	return Analyze(digits(3, 3, 0, 3, 3, 0, 3, 3, 1, 1))
}

func TestQualifyingDigit(t *testing.T) {
	d, runs, ok := QualifyingDigit(threeOfThree())
	require.True(t, ok)
	assert.Equal(t, models.Digit(3), d)
	assert.Equal(t, 3, runs)
}

func TestQualifyingDigit_SmallestWins(t *testing.T) {
	set := Analyze(digits(7, 7, 2, 2, 0, 7, 7, 2, 2, 0, 7, 7, 2, 2))
	d, _, ok := QualifyingDigit(set)
	require.True(t, ok)
	assert.Equal(t, models.Digit(2), d)
}

func TestQualifyingDigit_NeverBelowThreshold(t *testing.T) {
	set := Analyze(digits(1, 1, 2, 2, 1, 1, 2, 2, 3, 3, 3, 3))
	_, _, ok := QualifyingDigit(set)
	assert.False(t, ok)
}

func TestGate_FiresOnce(t *testing.T) {
	g := fixedGate()
	state := models.AlertState{}

	ev, state := g.Evaluate(vol10, threeOfThree(), state)
	require.NotNil(t, ev)
	assert.Equal(t, models.AlertEvent{
		ID:        "id-1",
		Feed:      "R_10",
		FeedLabel: "Vol 10",
		Digit:     3,
		Runs:      3,
		FiredAt:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}, *ev)
	assert.True(t, state[models.AlertKey{Feed: "R_10", Digit: 3}])

	ev, _ = g.Evaluate(vol10, threeOfThree(), state)
	assert.Nil(t, ev, "still qualifying, already armed")
}

func TestGate_RearmsAfterDrop(t *testing.T) {
	g := fixedGate()
	state := models.AlertState{}
	quiet := Analyze(digits(3, 3, 1, 2, 4))

	var fired int
	for _, set := range []models.ClusterSet{threeOfThree(), threeOfThree(), quiet, threeOfThree()} {
		var ev *models.AlertEvent
		ev, state = g.Evaluate(vol10, set, state)
		if ev != nil {
			fired++
		}
	}
	assert.Equal(t, 2, fired)
}

func TestGate_DoesNotMutateInput(t *testing.T) {
	g := fixedGate()
	state := models.AlertState{}
	_, next := g.Evaluate(vol10, threeOfThree(), state)
	assert.Empty(t, state)
	assert.Len(t, next, 1)

	_, cleared := g.Evaluate(vol10, nil, next)
	assert.Len(t, next, 1)
	assert.Empty(t, cleared)
}

func TestGate_FeedsAreIndependent(t *testing.T) {
	g := fixedGate()
	vol25 := models.NewMarket("R_25")

	ev, state := g.Evaluate(vol10, threeOfThree(), nil)
	require.NotNil(t, ev)

	ev, state = g.Evaluate(vol25, threeOfThree(), state)
	require.NotNil(t, ev, "R_25 has its own key")
	assert.Equal(t, "Vol 25", ev.FeedLabel)

	_, state = g.Evaluate(vol10, nil, state)
	assert.False(t, state.Armed("R_10"))
	assert.True(t, state.Armed("R_25"))
}
