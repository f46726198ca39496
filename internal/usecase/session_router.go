package usecase

import (
	"context"
	"fmt"
	"sync"

	"SniperBot/internal/domain/models"
)

// SessionRouter dispatches validated ticks to the session of their feed.
type SessionRouter struct {
	mu       sync.RWMutex
	sessions map[models.FeedID]*FeedSession
}

func NewSessionRouter() *SessionRouter {
	return &SessionRouter{sessions: make(map[models.FeedID]*FeedSession)}
}

func (r *SessionRouter) Register(s *FeedSession) {
	r.mu.Lock()
	r.sessions[s.Market().ID] = s
	r.mu.Unlock()
}

func (r *SessionRouter) Unregister(feed models.FeedID) {
	r.mu.Lock()
	delete(r.sessions, feed)
	r.mu.Unlock()
}

func (r *SessionRouter) Session(feed models.FeedID) (*FeedSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[feed]
	return s, ok
}

// Process hands t to its session. Ticks for feeds without a session are
// rejected with ErrFeedInactive.
func (r *SessionRouter) Process(_ context.Context, t models.Tick) error {
	s, ok := r.Session(t.Feed)
	if !ok {
		return fmt.Errorf("%w: %s", ErrFeedInactive, t.Feed)
	}
	_, err := s.OnSample(t)
	return err
}
