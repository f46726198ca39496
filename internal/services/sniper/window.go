package sniper

import "SniperBot/internal/domain/models"

// WindowSize is the number of digits kept per feed.
const WindowSize = 30

// MinSamples is the window length below which no detection runs.
const MinSamples = 6

// Window is a fixed-capacity digit buffer, newest first.
// It is not safe for concurrent use; the owning session is the only writer.
type Window struct {
	buf []models.Digit
	n   int
}

func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = WindowSize
	}
	return &Window{buf: make([]models.Digit, capacity)}
}

// Push prepends d, dropping the oldest digit once full.
func (w *Window) Push(d models.Digit) {
	if w.n < len(w.buf) {
		w.n++
	}
	copy(w.buf[1:w.n], w.buf[:w.n-1])
	w.buf[0] = d
}

// Digits returns a copy, newest first.
func (w *Window) Digits() []models.Digit {
	out := make([]models.Digit, w.n)
	copy(out, w.buf[:w.n])
	return out
}

func (w *Window) Len() int { return w.n }

func (w *Window) Cap() int { return len(w.buf) }
