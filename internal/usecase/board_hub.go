package usecase

import (
	"sync"

	"SniperBot/internal/domain/models"
	drepo "SniperBot/internal/domain/repository"
)

// BoardHub fans board snapshots out to live viewers of a feed.
// Slow viewers lose their oldest pending board, never block the session.
type BoardHub struct {
	buffer int

	mu   sync.RWMutex
	subs map[models.FeedID]map[*BoardSubscriber]struct{}
}

var _ drepo.BoardPublisher = (*BoardHub)(nil)

type BoardSubscriber struct {
	hub  *BoardHub
	feed models.FeedID
	ch   chan models.Board
	once sync.Once
}

func NewBoardHub(buffer int) *BoardHub {
	if buffer <= 0 {
		buffer = 8
	}
	return &BoardHub{buffer: buffer, subs: make(map[models.FeedID]map[*BoardSubscriber]struct{})}
}

func (h *BoardHub) Subscribe(feed models.FeedID) *BoardSubscriber {
	s := &BoardSubscriber{hub: h, feed: feed, ch: make(chan models.Board, h.buffer)}
	h.mu.Lock()
	if h.subs[feed] == nil {
		h.subs[feed] = make(map[*BoardSubscriber]struct{})
	}
	h.subs[feed][s] = struct{}{}
	h.mu.Unlock()
	return s
}

func (h *BoardHub) Publish(b models.Board) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs[b.Feed] {
		select {
		case s.ch <- b:
			continue
		default:
		}
		select {
		case <-s.ch:
		default:
		}
		select {
		case s.ch <- b:
		default:
		}
	}
}

// Subscribers reports how many viewers follow feed.
func (h *BoardHub) Subscribers(feed models.FeedID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[feed])
}

func (s *BoardSubscriber) C() <-chan models.Board { return s.ch }

// Close detaches the subscriber and closes its channel. Safe to call twice.
func (s *BoardSubscriber) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs[s.feed], s)
		if len(s.hub.subs[s.feed]) == 0 {
			delete(s.hub.subs, s.feed)
		}
		s.hub.mu.Unlock()
		close(s.ch)
	})
}
