package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"SniperBot/internal/domain/models"
	drepo "SniperBot/internal/domain/repository"
	"SniperBot/pkg/config"
	"SniperBot/pkg/logger"
)

var (
	ErrUnknownFeed    = errors.New("unknown feed")
	ErrFeedInactive   = errors.New("feed is not active")
	ErrSingleFeedMode = errors.New("operation not allowed in single-feed mode")
	ErrMultiFeedMode  = errors.New("select requires single-feed mode")
)

type RegistryConfig struct {
	Markets     []models.Market
	Mode        string // config.ModeMulti or config.ModeSingle
	DefaultFeed models.FeedID
}

type activation struct {
	session *FeedSession
	sub     drepo.Subscription
	cancel  context.CancelFunc
	done    chan struct{}
}

// MarketRegistry owns the set of tracked feeds and which of them are live.
// In single mode at most one feed is active and Select swaps it, closing the
// old subscription before the new one opens.
type MarketRegistry struct {
	cfg        RegistryConfig
	source     drepo.TickSource
	router     *SessionRouter
	collector  *FeedCollector
	newSession SessionFactory
	log        *logger.Logger

	base     context.Context
	shutdown context.CancelFunc

	mu     sync.Mutex
	active map[models.FeedID]*activation
	closed bool
}

func NewMarketRegistry(cfg RegistryConfig, source drepo.TickSource, router *SessionRouter, collector *FeedCollector, newSession SessionFactory, log *logger.Logger) *MarketRegistry {
	if cfg.Mode == "" {
		cfg.Mode = config.ModeMulti
	}
	if cfg.DefaultFeed == "" && len(cfg.Markets) > 0 {
		cfg.DefaultFeed = cfg.Markets[0].ID
	}
	base, cancel := context.WithCancel(context.Background())
	return &MarketRegistry{
		cfg:        cfg,
		source:     source,
		router:     router,
		collector:  collector,
		newSession: newSession,
		log:        log,
		base:       base,
		shutdown:   cancel,
		active:     make(map[models.FeedID]*activation),
	}
}

func (r *MarketRegistry) Mode() string { return r.cfg.Mode }

func (r *MarketRegistry) Markets() []models.Market {
	out := make([]models.Market, len(r.cfg.Markets))
	copy(out, r.cfg.Markets)
	return out
}

func (r *MarketRegistry) market(feed models.FeedID) (models.Market, bool) {
	for _, m := range r.cfg.Markets {
		if m.ID == feed {
			return m, true
		}
	}
	return models.Market{}, false
}

// Run activates the initial feeds (all of them in multi mode, the default
// feed in single mode), then blocks until ctx ends and tears everything down.
func (r *MarketRegistry) Run(ctx context.Context) error {
	initial := []models.FeedID{r.cfg.DefaultFeed}
	if r.cfg.Mode == config.ModeMulti {
		initial = initial[:0]
		for _, m := range r.cfg.Markets {
			initial = append(initial, m.ID)
		}
	}
	for _, feed := range initial {
		if _, err := r.Activate(ctx, feed); err != nil {
			r.log.Error("activate feed", logger.String("feed", string(feed)), logger.Error(err))
		}
	}
	r.log.Info("market registry running", logger.String("mode", r.cfg.Mode), logger.Int("active", len(r.Active())))

	<-ctx.Done()
	r.Close()
	return nil
}

// Activate starts streaming feed. Activating an active feed returns its
// existing session. Subscriptions live until Deactivate or Close, not until
// ctx ends; ctx only bounds the call itself.
func (r *MarketRegistry) Activate(ctx context.Context, feed models.FeedID) (*FeedSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.market(feed)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFeed, feed)
	}
	if a, ok := r.active[feed]; ok {
		return a.session, nil
	}
	if r.cfg.Mode == config.ModeSingle && len(r.active) > 0 {
		return nil, fmt.Errorf("%w: use select to switch feeds", ErrSingleFeedMode)
	}
	return r.activateLocked(ctx, m)
}

// Deactivate stops feed and discards its session.
func (r *MarketRegistry) Deactivate(feed models.FeedID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.market(feed); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFeed, feed)
	}
	if _, ok := r.active[feed]; !ok {
		return fmt.Errorf("%w: %s", ErrFeedInactive, feed)
	}
	if r.cfg.Mode == config.ModeSingle {
		return fmt.Errorf("%w: the selected feed cannot be stopped", ErrSingleFeedMode)
	}
	r.deactivateLocked(feed)
	return nil
}

// Select makes feed the only active feed. Selecting the current feed is a no-op.
func (r *MarketRegistry) Select(ctx context.Context, feed models.FeedID) (*FeedSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cfg.Mode != config.ModeSingle {
		return nil, ErrMultiFeedMode
	}
	m, ok := r.market(feed)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFeed, feed)
	}
	if a, ok := r.active[feed]; ok {
		return a.session, nil
	}
	for current := range r.active {
		r.deactivateLocked(current)
	}
	r.log.Info("feed selected", logger.String("feed", string(feed)))
	return r.activateLocked(ctx, m)
}

func (r *MarketRegistry) activateLocked(ctx context.Context, m models.Market) (*FeedSession, error) {
	if r.closed {
		return nil, errors.New("market registry closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(r.base)
	sub, err := r.source.Subscribe(subCtx, m.ID)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe %s: %w", m.ID, err)
	}

	session := r.newSession(m)
	r.router.Register(session)

	a := &activation{session: session, sub: sub, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(a.done)
		r.collector.Collect(subCtx, m.ID, sub)
	}()
	r.active[m.ID] = a
	r.log.Info("feed activated", logger.String("feed", string(m.ID)))
	return session, nil
}

func (r *MarketRegistry) deactivateLocked(feed models.FeedID) {
	a := r.active[feed]
	delete(r.active, feed)
	r.router.Unregister(feed)
	a.cancel()
	if err := a.sub.Close(); err != nil {
		r.log.Warn("close subscription", logger.String("feed", string(feed)), logger.Error(err))
	}
	<-a.done
	r.log.Info("feed deactivated", logger.String("feed", string(feed)))
}

// Session returns the live session of feed.
func (r *MarketRegistry) Session(feed models.FeedID) (*FeedSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.market(feed); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFeed, feed)
	}
	a, ok := r.active[feed]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFeedInactive, feed)
	}
	return a.session, nil
}

func (r *MarketRegistry) Board(feed models.FeedID) (models.Board, error) {
	s, err := r.Session(feed)
	if err != nil {
		return models.Board{}, err
	}
	return s.Snapshot(), nil
}

// Active lists active feeds in id order.
func (r *MarketRegistry) Active() []models.FeedID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.FeedID, 0, len(r.active))
	for feed := range r.active {
		out = append(out, feed)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Statuses lists every tracked market in configured order.
func (r *MarketRegistry) Statuses() []models.MarketStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.MarketStatus, 0, len(r.cfg.Markets))
	for _, m := range r.cfg.Markets {
		_, on := r.active[m.ID]
		out = append(out, models.MarketStatus{Market: m, Active: on})
	}
	return out
}

// Close deactivates every feed. Later activations fail.
func (r *MarketRegistry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	for feed := range r.active {
		r.deactivateLocked(feed)
	}
	r.shutdown()
}
