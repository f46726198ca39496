package deriv

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/segmentio/encoding/json"

	"SniperBot/internal/domain/models"
	drepo "SniperBot/internal/domain/repository"
	"SniperBot/pkg/logger"
)

var ErrClientClosed = errors.New("deriv client closed")

type Config struct {
	Endpoint         string // full URL including app_id
	PingInterval     time.Duration
	HandshakeTimeout time.Duration
	ReconnectMin     time.Duration
	ReconnectMax     time.Duration
	StableAfter      time.Duration // a connection alive this long resets the backoff
	BufferSize       int
}

// Client is a TickSource that opens one Deriv websocket per subscribed feed.
type Client struct {
	cfg    Config
	log    *logger.Logger
	dialer *websocket.Dialer

	mu     sync.Mutex
	subs   map[*subscription]struct{}
	closed bool
}

var _ drepo.TickSource = (*Client)(nil)

func New(cfg Config, log *logger.Logger) *Client {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 20 * time.Second
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.ReconnectMin <= 0 {
		cfg.ReconnectMin = 500 * time.Millisecond
	}
	if cfg.ReconnectMax < cfg.ReconnectMin {
		cfg.ReconnectMax = 30 * time.Second
	}
	if cfg.StableAfter <= 0 {
		cfg.StableAfter = 10 * time.Second
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64
	}
	return &Client{
		cfg:    cfg,
		log:    log,
		dialer: &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout},
		subs:   make(map[*subscription]struct{}),
	}
}

// Subscribe starts streaming feed in the background. Connection failures are
// retried with backoff and reported on Errors; Ticks closes when ctx ends or
// the subscription is closed.
func (c *Client) Subscribe(ctx context.Context, feed models.FeedID) (drepo.Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClientClosed
	}

	sctx, cancel := context.WithCancel(ctx)
	s := &subscription{
		feed:   feed,
		ticks:  make(chan models.Tick, c.cfg.BufferSize),
		errs:   make(chan error, 8),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	c.subs[s] = struct{}{}

	go func() {
		c.run(sctx, s)
		c.mu.Lock()
		delete(c.subs, s)
		c.mu.Unlock()
	}()
	return s, nil
}

// Close stops every open subscription.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	subs := make([]*subscription, 0, len(c.subs))
	for s := range c.subs {
		subs = append(subs, s)
	}
	c.mu.Unlock()

	for _, s := range subs {
		_ = s.Close()
	}
	return nil
}

func (c *Client) run(ctx context.Context, s *subscription) {
	defer close(s.done)
	defer close(s.ticks)

	log := c.log.With(logger.String("feed", string(s.feed)))
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	backoff := c.cfg.ReconnectMin

	for ctx.Err() == nil {
		conn, _, err := c.dialer.DialContext(ctx, c.cfg.Endpoint, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.report(fmt.Errorf("deriv dial: %w", err))
			wait := jitter(rng, backoff)
			log.Warn("deriv: dial failed", logger.Error(err), logger.Duration("retry_in_ms", wait))
			if !sleepCtx(ctx, wait) {
				return
			}
			backoff = minDur(backoff*2, c.cfg.ReconnectMax)
			continue
		}

		log.Info("deriv: connected")
		start := time.Now()
		err = c.serve(ctx, conn, s)

		if time.Since(start) >= c.cfg.StableAfter {
			backoff = c.cfg.ReconnectMin
		}
		if ctx.Err() != nil {
			log.Info("deriv: subscription closed")
			return
		}

		s.report(err)
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			log.Error("deriv: subscription rejected", logger.Error(err))
		} else {
			log.Warn("deriv: connection lost", logger.Error(err))
		}
		if !sleepCtx(ctx, jitter(rng, backoff)) {
			return
		}
		backoff = minDur(backoff*2, c.cfg.ReconnectMax)
	}
}

// serve runs one connection until it fails or ctx ends. It closes conn and
// waits for its reader before returning, so no tick is sent after run exits.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn, s *subscription) error {
	readerDone := make(chan struct{})
	started := false
	defer func() {
		_ = conn.Close()
		if started {
			<-readerDone
		}
	}()

	req, _ := json.Marshal(subscribeRequest{Ticks: string(s.feed), Subscribe: 1})
	if err := conn.WriteMessage(websocket.TextMessage, req); err != nil {
		return fmt.Errorf("deriv subscribe %s: %w", s.feed, err)
	}

	readDeadline := 3 * c.cfg.PingInterval
	_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	errCh := make(chan error, 1)
	started = true
	go func() {
		defer close(readerDone)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				errCh <- fmt.Errorf("deriv read: %w", err)
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(readDeadline))

			tick, ok, err := decodeFrame(raw, time.Now())
			if err != nil {
				var apiErr *APIError
				if errors.As(err, &apiErr) {
					errCh <- err
					return
				}
				s.report(err)
				continue
			}
			if !ok || tick.Feed != s.feed {
				continue
			}
			select {
			case s.ticks <- tick:
			case <-ctx.Done():
				return
			}
		}
	}()

	ping := time.NewTicker(c.cfg.PingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			forget, _ := json.Marshal(forgetAllRequest{ForgetAll: "ticks"})
			_ = conn.WriteMessage(websocket.TextMessage, forget)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
				time.Now().Add(time.Second))
			return ctx.Err()
		case err := <-errCh:
			return err
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return fmt.Errorf("deriv ping: %w", err)
			}
		}
	}
}

type subscription struct {
	feed   models.FeedID
	ticks  chan models.Tick
	errs   chan error
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *subscription) Ticks() <-chan models.Tick { return s.ticks }

func (s *subscription) Errors() <-chan error { return s.errs }

// Close cancels the stream and waits for the socket to be released.
func (s *subscription) Close() error {
	s.cancel()
	<-s.done
	return nil
}

func (s *subscription) report(err error) {
	if err == nil {
		return
	}
	select {
	case s.errs <- err:
	default:
	}
}

func jitter(rng *rand.Rand, d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	// 50%..150%
	return d/2 + time.Duration(rng.Int63n(int64(d)))
}

func minDur(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
