package api

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"SniperBot/internal/domain/models"
	xhttp "SniperBot/pkg/http"
	xlogger "SniperBot/pkg/logger"
)

const streamWriteWait = 10 * time.Second

// Stream pushes a board snapshot to the client after every sample of the feed.
// The current board is sent first; ?order=oldest reverses every frame.
func (h *MarketsHandler) Stream(c echo.Context) error {
	req := &models.BoardRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	feed := models.FeedID(req.Feed)

	first, err := h.markets.Board(feed)
	if err != nil {
		return h.fail(c, "stream", err)
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already answered the client.
		h.logger.Warn("board stream upgrade failed", xlogger.String("feed", req.Feed), xlogger.Error(err))
		return nil
	}
	defer conn.Close()

	sub := h.stream.Subscribe(feed)
	defer sub.Close()

	viewers := h.metrics.Viewers.WithLabelValues(req.Feed)
	viewers.Inc()
	defer viewers.Dec()

	// The client never sends anything useful; reading detects the close.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	render := func(b models.Board) models.Board {
		if req.Order == models.OrderOldest {
			return b.Oldest()
		}
		return b
	}
	if err := h.writeBoard(conn, render(first)); err != nil {
		return nil
	}

	ping := time.NewTicker(h.pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			return nil
		case <-c.Request().Context().Done():
			return nil
		case b, ok := <-sub.C():
			if !ok {
				return nil
			}
			if err := h.writeBoard(conn, render(b)); err != nil {
				h.logger.Debug("board stream closed", xlogger.String("feed", req.Feed), xlogger.Error(err))
				return nil
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return nil
			}
		}
	}
}

func (h *MarketsHandler) writeBoard(conn *websocket.Conn, b models.Board) error {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return conn.WriteJSON(b)
}
