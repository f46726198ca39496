package deriv

import (
	"fmt"
	"time"

	"github.com/segmentio/encoding/json"
	"github.com/shopspring/decimal"

	"SniperBot/internal/domain/models"
)

type subscribeRequest struct {
	Ticks     string `json:"ticks"`
	Subscribe int    `json:"subscribe"`
}

type forgetAllRequest struct {
	ForgetAll string `json:"forget_all"`
}

type tickBody struct {
	Symbol  string          `json:"symbol"`
	Quote   decimal.Decimal `json:"quote"`
	Epoch   int64           `json:"epoch"`
	PipSize int             `json:"pip_size"`
	ID      string          `json:"id"`
}

type apiErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type frame struct {
	MsgType string        `json:"msg_type"`
	Tick    *tickBody     `json:"tick"`
	Error   *apiErrorBody `json:"error"`
}

// APIError is an error frame sent by the Deriv API.
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("deriv api error %s: %s", e.Code, e.Message)
}

// decodeFrame returns the tick carried by raw, if any. Non-tick frames
// (pings, subscription acks) yield ok=false and no error.
func decodeFrame(raw []byte, receivedAt time.Time) (models.Tick, bool, error) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return models.Tick{}, false, fmt.Errorf("decode frame: %w", err)
	}
	if f.Error != nil {
		return models.Tick{}, false, &APIError{Code: f.Error.Code, Message: f.Error.Message}
	}
	if f.MsgType != "tick" || f.Tick == nil {
		return models.Tick{}, false, nil
	}
	return models.Tick{
		Feed:       models.FeedID(f.Tick.Symbol),
		Quote:      f.Tick.Quote,
		Epoch:      f.Tick.Epoch,
		PipSize:    f.Tick.PipSize,
		ReceivedAt: receivedAt,
	}, true, nil
}
