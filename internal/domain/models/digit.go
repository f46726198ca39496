package models

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrMalformedQuote is returned when a quote has no trailing decimal digit.
var ErrMalformedQuote = errors.New("malformed quote")

// Digit is the least significant decimal digit of a quote, 0..9.
type Digit int

// ParseDigit reads the last character of a rendered quote.
func ParseDigit(s string) (Digit, error) {
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrMalformedQuote)
	}
	c := s[len(s)-1]
	if c < '0' || c > '9' {
		return 0, fmt.Errorf("%w: %q", ErrMalformedQuote, s)
	}
	return Digit(c - '0'), nil
}

// DigitOf derives the digit from the shortest rendering of q, so 6342.10 yields 1.
func DigitOf(q decimal.Decimal) (Digit, error) {
	return ParseDigit(q.String())
}

func (d Digit) Valid() bool { return d >= 0 && d <= 9 }
