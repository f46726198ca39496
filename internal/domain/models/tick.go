package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tick is one quote delivered by a tick source.
type Tick struct {
	Feed       FeedID
	Quote      decimal.Decimal
	Epoch      int64
	PipSize    int
	ReceivedAt time.Time
}
