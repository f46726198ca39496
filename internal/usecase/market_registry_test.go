package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SniperBot/internal/domain/models"
	mid "SniperBot/internal/middleware"
	"SniperBot/internal/services/sniper"
	"SniperBot/pkg/config"
	"SniperBot/pkg/logger"
	"SniperBot/pkg/metrics"
)

func newTestRegistry(t *testing.T, mode string) (*MarketRegistry, *fakeSource, *recordingNotifier) {
	t.Helper()
	src := newFakeSource()
	n := &recordingNotifier{}
	router := NewSessionRouter()
	pipe := mid.NewRealtimePipeline(router, metrics.Nop{}, mid.WithMaxRPS(0, 0))
	collector := NewFeedCollector(pipe, metrics.Nop{}, logger.Nop())
	factory := NewSessionFactory(sniper.NewGate(), n, NewBoardHub(4), metrics.Nop{}, logger.Nop())

	markets := models.MarketsFrom([]string{"R_10", "R_25", "R_50"})
	r := NewMarketRegistry(RegistryConfig{Markets: markets, Mode: mode, DefaultFeed: "R_25"}, src, router, collector, factory, logger.Nop())
	t.Cleanup(r.Close)
	return r, src, n
}

func TestRegistry_ActivateIdempotent(t *testing.T) {
	r, src, _ := newTestRegistry(t, config.ModeMulti)
	ctx := context.Background()

	s1, err := r.Activate(ctx, "R_10")
	require.NoError(t, err)
	s2, err := r.Activate(ctx, "R_10")
	require.NoError(t, err)
	assert.Same(t, s1, s2)
	assert.Len(t, src.subs["R_10"], 1)
	assert.Equal(t, []models.FeedID{"R_10"}, r.Active())
}

func TestRegistry_Errors(t *testing.T) {
	r, _, _ := newTestRegistry(t, config.ModeMulti)
	ctx := context.Background()

	_, err := r.Activate(ctx, "R_1")
	assert.ErrorIs(t, err, ErrUnknownFeed)
	assert.ErrorIs(t, r.Deactivate("R_1"), ErrUnknownFeed)
	assert.ErrorIs(t, r.Deactivate("R_10"), ErrFeedInactive)
	_, err = r.Board("R_10")
	assert.ErrorIs(t, err, ErrFeedInactive)
	_, err = r.Select(ctx, "R_10")
	assert.ErrorIs(t, err, ErrMultiFeedMode)
}

func TestRegistry_TicksReachSession(t *testing.T) {
	r, src, n := newTestRegistry(t, config.ModeMulti)
	_, err := r.Activate(context.Background(), "R_50")
	require.NoError(t, err)

	sub := src.last("R_50")
	for _, q := range quotesFor(1, 1, 2, 1, 1, 3, 1, 1) {
		sub.ticks <- tick("R_50", q)
	}

	require.Eventually(t, func() bool {
		b, err := r.Board("R_50")
		return err == nil && b.Samples == 8
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return len(n.all()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, models.FeedID("R_50"), n.all()[0].Feed)
}

func TestRegistry_DeactivateClosesSubscription(t *testing.T) {
	r, src, _ := newTestRegistry(t, config.ModeMulti)
	_, err := r.Activate(context.Background(), "R_10")
	require.NoError(t, err)

	require.NoError(t, r.Deactivate("R_10"))
	assert.True(t, src.last("R_10").isClosed())
	assert.Empty(t, r.Active())

	_, err = r.Activate(context.Background(), "R_10")
	require.NoError(t, err)
	b, err := r.Board("R_10")
	require.NoError(t, err)
	assert.Zero(t, b.Samples, "reactivation starts a fresh session")
}

func TestRegistry_SingleModeSelect(t *testing.T) {
	r, src, _ := newTestRegistry(t, config.ModeSingle)
	ctx := context.Background()

	_, err := r.Activate(ctx, "R_25")
	require.NoError(t, err)
	_, err = r.Activate(ctx, "R_10")
	assert.ErrorIs(t, err, ErrSingleFeedMode)
	assert.ErrorIs(t, r.Deactivate("R_25"), ErrSingleFeedMode)

	_, err = r.Select(ctx, "R_50")
	require.NoError(t, err)
	assert.Equal(t, []models.FeedID{"R_50"}, r.Active())
	assert.True(t, src.last("R_25").isClosed())

	src.mu.Lock()
	assert.Equal(t, []string{"open R_25", "close R_25", "open R_50"}, src.order)
	src.mu.Unlock()

	statuses := r.Statuses()
	require.Len(t, statuses, 3)
	assert.False(t, statuses[1].Active)
	assert.True(t, statuses[2].Active)
}

func TestRegistry_RunActivatesByMode(t *testing.T) {
	tests := []struct {
		mode string
		want []models.FeedID
	}{
		{config.ModeMulti, []models.FeedID{"R_10", "R_25", "R_50"}},
		{config.ModeSingle, []models.FeedID{"R_25"}},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			r, _, _ := newTestRegistry(t, tt.mode)
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- r.Run(ctx) }()

			require.Eventually(t, func() bool { return len(r.Active()) == len(tt.want) }, time.Second, 5*time.Millisecond)
			assert.Equal(t, tt.want, r.Active())

			cancel()
			require.NoError(t, <-done)
			assert.Empty(t, r.Active())
			_, err := r.Activate(context.Background(), "R_10")
			assert.Error(t, err)
		})
	}
}
