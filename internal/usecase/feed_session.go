package usecase

import (
	"sync"
	"time"

	"SniperBot/internal/domain/models"
	drepo "SniperBot/internal/domain/repository"
	"SniperBot/internal/domain/service"
	"SniperBot/internal/services/sniper"
	"SniperBot/pkg/logger"
)

// FeedSession owns the rolling window and alert state of one feed.
// OnSample has a single caller per session; Snapshot may be called from anywhere.
type FeedSession struct {
	market   models.Market
	gate     *sniper.Gate
	notifier service.Notifier
	hub      drepo.BoardPublisher
	metrics  drepo.Metrics
	log      *logger.Logger
	now      func() time.Time

	mu        sync.RWMutex
	window    *sniper.Window
	clusters  models.ClusterSet
	state     models.AlertState
	samples   uint64
	lastQuote string
	updatedAt time.Time
}

// SessionFactory builds a fresh session each time a feed is activated.
type SessionFactory func(models.Market) *FeedSession

func NewSessionFactory(gate *sniper.Gate, notifier service.Notifier, hub drepo.BoardPublisher, metrics drepo.Metrics, log *logger.Logger) SessionFactory {
	return func(m models.Market) *FeedSession {
		return NewFeedSession(m, gate, notifier, hub, metrics, log)
	}
}

func NewFeedSession(m models.Market, gate *sniper.Gate, notifier service.Notifier, hub drepo.BoardPublisher, metrics drepo.Metrics, log *logger.Logger) *FeedSession {
	return &FeedSession{
		market:   m,
		gate:     gate,
		notifier: notifier,
		hub:      hub,
		metrics:  metrics,
		log:      log.With(logger.String("feed", string(m.ID))),
		now:      time.Now,
		window:   sniper.NewWindow(sniper.WindowSize),
		clusters: models.ClusterSet{},
		state:    models.AlertState{},
	}
}

func (s *FeedSession) Market() models.Market { return s.market }

// OnSample pushes the tick's digit and re-runs detection once the window
// holds MinSamples digits. The returned event, if any, has already been
// handed to the notifier.
func (s *FeedSession) OnSample(t models.Tick) (*models.AlertEvent, error) {
	start := time.Now()
	digit, err := models.DigitOf(t.Quote)
	if err != nil {
		s.metrics.RecordError("session_digit")
		return nil, err
	}

	s.mu.Lock()
	s.window.Push(digit)
	s.samples++
	s.lastQuote = t.Quote.String()
	s.updatedAt = s.now()

	var ev *models.AlertEvent
	if s.window.Len() >= sniper.MinSamples {
		s.clusters = sniper.Analyze(s.window.Digits())
		ev, s.state = s.gate.Evaluate(s.market, s.clusters, s.state)
	}
	board := s.snapshotLocked()
	s.mu.Unlock()

	feed := string(s.market.ID)
	s.metrics.RecordTick(feed)
	s.metrics.RecordLastQuote(feed, t.Quote.InexactFloat64())
	s.metrics.RecordClusters(feed, len(board.Clusters))

	if ev != nil {
		s.metrics.RecordAlert(feed, int(ev.Digit))
		s.log.Info("alert fired",
			logger.Int("digit", int(ev.Digit)),
			logger.Int("runs", ev.Runs),
			logger.String("alert_id", ev.ID),
		)
		s.notifier.Notify(*ev)
	}
	if s.hub != nil {
		s.hub.Publish(board)
	}
	s.metrics.RecordLatency("session_sample", time.Since(start).Seconds())
	return ev, nil
}

// Snapshot returns a newest-first copy of the session for display.
func (s *FeedSession) Snapshot() models.Board {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *FeedSession) snapshotLocked() models.Board {
	digits := s.window.Digits()
	clusters := make(models.ClusterSet, len(s.clusters))
	copy(clusters, s.clusters)
	return models.Board{
		Feed:      s.market.ID,
		Label:     s.market.Label,
		Order:     models.OrderNewest,
		Digits:    digits,
		Tiers:     clusters.Tiers(len(digits)),
		Clusters:  clusters,
		LastQuote: s.lastQuote,
		Samples:   s.samples,
		Armed:     s.state.Armed(s.market.ID),
		UpdatedAt: s.updatedAt,
	}
}
