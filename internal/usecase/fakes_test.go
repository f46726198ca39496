package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"SniperBot/internal/domain/models"
	drepo "SniperBot/internal/domain/repository"
)

type fakeSubscription struct {
	ticks   chan models.Tick
	errs    chan error
	once    sync.Once
	closed  chan struct{}
	onClose func()
}

func newFakeSubscription() *fakeSubscription {
	return &fakeSubscription{
		ticks:  make(chan models.Tick, 64),
		errs:   make(chan error, 4),
		closed: make(chan struct{}),
	}
}

func (s *fakeSubscription) Ticks() <-chan models.Tick { return s.ticks }
func (s *fakeSubscription) Errors() <-chan error { return s.errs }

func (s *fakeSubscription) Close() error {
	s.once.Do(func() {
		close(s.closed)
		if s.onClose != nil {
			s.onClose()
		}
	})
	return nil
}

func (s *fakeSubscription) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

type fakeSource struct {
	mu    sync.Mutex
	subs  map[models.FeedID][]*fakeSubscription
	order []string
	fail  error
}

func newFakeSource() *fakeSource {
	return &fakeSource{subs: make(map[models.FeedID][]*fakeSubscription)}
}

func (f *fakeSource) Subscribe(_ context.Context, feed models.FeedID) (drepo.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	s := newFakeSubscription()
	f.subs[feed] = append(f.subs[feed], s)
	f.order = append(f.order, "open "+string(feed))
	s.onClose = func() {
		f.mu.Lock()
		f.order = append(f.order, "close "+string(feed))
		f.mu.Unlock()
	}
	return s, nil
}

func (f *fakeSource) last(feed models.FeedID) *fakeSubscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.subs[feed]
	if len(list) == 0 {
		return nil
	}
	return list[len(list)-1]
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.AlertEvent
}

func (n *recordingNotifier) Notify(ev models.AlertEvent) {
	n.mu.Lock()
	n.events = append(n.events, ev)
	n.mu.Unlock()
}

func (n *recordingNotifier) all() []models.AlertEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.AlertEvent(nil), n.events...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	boards []models.Board
}

func (p *recordingPublisher) Publish(b models.Board) {
	p.mu.Lock()
	p.boards = append(p.boards, b)
	p.mu.Unlock()
}

type fakeSink struct {
	name  string
	mu    sync.Mutex
	sent  []models.AlertEvent
	err   error
	block bool
	ctxs  []context.Context
	start chan struct{}
}

func (s *fakeSink) Name() string { return s.name }

func (s *fakeSink) Send(ctx context.Context, ev models.AlertEvent) error {
	s.mu.Lock()
	s.ctxs = append(s.ctxs, ctx)
	s.mu.Unlock()
	if s.start != nil {
		s.start <- struct{}{}
	}
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, ev)
	return nil
}

func (s *fakeSink) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

var errSinkDown = errors.New("sink down")

func tick(feed models.FeedID, quote string) models.Tick {
	return models.Tick{Feed: feed, Quote: decimal.RequireFromString(quote)}
}

// quotesFor renders digits, oldest first, as integer quotes ending in that digit.
func quotesFor(digits ...int) []string {
	out := make([]string, len(digits))
	for i, d := range digits {
		out[i] = fmt.Sprintf("10%d", d)
	}
	return out
}
