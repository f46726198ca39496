package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SniperBot/internal/domain/models"
	drepo "SniperBot/internal/domain/repository"
	"SniperBot/internal/services/sniper"
	"SniperBot/pkg/logger"
	"SniperBot/pkg/metrics"
)

func newTestSession(n *recordingNotifier, pub drepo.BoardPublisher) *FeedSession {
	gate := sniper.NewGate(
		sniper.WithIDGenerator(func() string { return "alert-1" }),
		sniper.WithClock(func() time.Time { return time.Unix(1700000000, 0).UTC() }),
	)
	return NewFeedSession(models.NewMarket("R_10"), gate, n, pub, metrics.Nop{}, logger.Nop())
}

func pushDigits(t *testing.T, s *FeedSession, digits ...int) []*models.AlertEvent {
	t.Helper()
	var out []*models.AlertEvent
	for _, q := range quotesFor(digits...) {
		ev, err := s.OnSample(tick("R_10", q))
		require.NoError(t, err)
		out = append(out, ev)
	}
	return out
}

func TestFeedSession_NoDetectionBelowMinSamples(t *testing.T) {
	s := newTestSession(&recordingNotifier{}, &recordingPublisher{})

	pushDigits(t, s, 1, 1, 1, 1, 1)
	b := s.Snapshot()
	assert.Len(t, b.Digits, 5)
	assert.Empty(t, b.Clusters)
	assert.Equal(t, []models.Tier{models.TierNeutral, models.TierNeutral, models.TierNeutral, models.TierNeutral, models.TierNeutral}, b.Tiers)

	pushDigits(t, s, 1)
	b = s.Snapshot()
	assert.Equal(t, models.ClusterSet{{Digit: 1, Length: 6, EndIndex: 5}}, b.Clusters)
	assert.Equal(t, uint64(6), b.Samples)
}

func TestFeedSession_FiresOnceOnThirdCluster(t *testing.T) {
	n := &recordingNotifier{}
	pub := &recordingPublisher{}
	s := newTestSession(n, pub)

	evs := pushDigits(t, s, 1, 1, 2, 1, 1, 3, 1, 1)
	for i := 0; i < 7; i++ {
		assert.Nil(t, evs[i], "sample %d", i)
	}
	require.NotNil(t, evs[7])
	assert.Equal(t, models.Digit(1), evs[7].Digit)
	assert.Equal(t, 3, evs[7].Runs)
	assert.Equal(t, "Vol 10", evs[7].FeedLabel)

	// still qualifying: stays silent
	evs = pushDigits(t, s, 9)
	assert.Nil(t, evs[0])

	require.Len(t, n.all(), 1)
	assert.Equal(t, "Sniper alert on Vol 10. Digit 1 formed 3 clusters.", n.all()[0].Message())

	b := s.Snapshot()
	assert.True(t, b.Armed)
	assert.Equal(t, []models.Digit{9, 1, 1, 3, 1, 1, 2, 1, 1}, b.Digits)
	assert.Equal(t, models.TierNeutral, b.Tiers[0])
	assert.Equal(t, models.TierYellow, b.Tiers[1])
	assert.Equal(t, models.TierGreen, b.Tiers[4])
	assert.Equal(t, models.TierRed, b.Tiers[8])
	assert.Len(t, pub.boards, 9, "every sample publishes a board")
}

func TestFeedSession_DigitFromShortestQuote(t *testing.T) {
	s := newTestSession(&recordingNotifier{}, nil)

	_, err := s.OnSample(tick("R_10", "6342.10"))
	require.NoError(t, err)
	b := s.Snapshot()
	assert.Equal(t, []models.Digit{1}, b.Digits)
	assert.Equal(t, "6342.1", b.LastQuote)
}

func TestFeedSession_WindowCapped(t *testing.T) {
	s := newTestSession(&recordingNotifier{}, nil)
	for i := 0; i < 45; i++ {
		pushDigits(t, s, i%10)
	}
	b := s.Snapshot()
	assert.Len(t, b.Digits, sniper.WindowSize)
	assert.Equal(t, models.Digit(4), b.Digits[0])
	assert.Equal(t, uint64(45), b.Samples)
}

func TestFeedSession_SnapshotIsCopy(t *testing.T) {
	s := newTestSession(&recordingNotifier{}, nil)
	pushDigits(t, s, 5, 5, 5, 5, 5, 5)
	b := s.Snapshot()
	b.Digits[0] = 0
	b.Clusters[0].Length = 99
	again := s.Snapshot()
	assert.Equal(t, models.Digit(5), again.Digits[0])
	assert.Equal(t, 6, again.Clusters[0].Length)
}

func TestSessionRouter_Process(t *testing.T) {
	r := NewSessionRouter()
	s := newTestSession(&recordingNotifier{}, nil)

	err := r.Process(context.Background(), tick("R_10", "101"))
	assert.ErrorIs(t, err, ErrFeedInactive)

	r.Register(s)
	require.NoError(t, r.Process(context.Background(), tick("R_10", "101")))
	assert.Equal(t, uint64(1), s.Snapshot().Samples)

	r.Unregister("R_10")
	assert.ErrorIs(t, r.Process(context.Background(), tick("R_10", "101")), ErrFeedInactive)
}
