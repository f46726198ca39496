package models

import (
	"fmt"
	"time"

	"github.com/segmentio/encoding/json"
)

// AlertKey identifies one debounced alert condition.
type AlertKey struct {
	Feed  FeedID
	Digit Digit
}

// AlertState records which keys are currently armed.
type AlertState map[AlertKey]bool

// Armed reports whether any digit of feed is armed.
func (s AlertState) Armed(feed FeedID) bool {
	for k, v := range s {
		if v && k.Feed == feed {
			return true
		}
	}
	return false
}

// AlertEvent is emitted when a digit forms three clusters in a window.
type AlertEvent struct {
	ID        string    `json:"id"`
	Feed      FeedID    `json:"feed"`
	FeedLabel string    `json:"feed_label"`
	Digit     Digit     `json:"digit"`
	Runs      int       `json:"runs"`
	FiredAt   time.Time `json:"fired_at"`
}

// Message is the text handed to notifiers.
func (e AlertEvent) Message() string {
	return fmt.Sprintf("Sniper alert on %s. Digit %d formed 3 clusters.", e.FeedLabel, e.Digit)
}

func (e AlertEvent) MarshalJSON() ([]byte, error) {
	type plain AlertEvent
	return json.Marshal(struct {
		plain
		Message string `json:"message"`
	}{plain(e), e.Message()})
}
