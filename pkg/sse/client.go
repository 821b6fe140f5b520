package sse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// maxErrorBody bounds how much of a non-2xx response body is kept for the
// error event.
const maxErrorBody = 4 * 1024

// ErrIdleTimeout is reported when the upstream sends nothing for longer than
// the configured idle timeout.
var ErrIdleTimeout = errors.New("upstream idle timeout")

// StatusError is reported when the upstream answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("upstream returned status %d", e.Code)
	}
	return fmt.Sprintf("upstream returned status %d: %s", e.Code, body)
}

// ClientOptions tune a Client.
type ClientOptions struct {
	// IdleTimeout aborts the stream with ErrIdleTimeout when no bytes arrive
	// for this long, counting from the moment the request is sent, so an
	// upstream that never answers is covered too. Zero disables it.
	IdleTimeout time.Duration

	Logger *slog.Logger
}

// Client owns one outbound streaming HTTP request and exposes the response as
// an ordered sequence of RawEvents:
//
//	open → message* → (error)?
//
// The sequence (the Events channel) is closed when the upstream body ends, on
// a transport failure (after a single error event), or after Close.
// Events must be consumed by a single reader.
type Client struct {
	events    chan RawEvent
	done      chan struct{}
	closeOnce sync.Once
	cancel    context.CancelFunc
	timedOut  atomic.Bool
	opts      ClientOptions
	logger    *slog.Logger
}

// Connect issues req with httpClient in the background and returns
// immediately. The request is bound to a context derived from ctx, so
// cancelling ctx or calling Close aborts any in-flight network activity.
func Connect(ctx context.Context, httpClient *http.Client, req *http.Request, opts ClientOptions) *Client {
	ctx, cancel := context.WithCancel(ctx)

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	c := &Client{
		events: make(chan RawEvent),
		done:   make(chan struct{}),
		cancel: cancel,
		opts:   opts,
		logger: logger,
	}

	go c.run(httpClient, req.WithContext(ctx))

	return c
}

// Events returns the event sequence. It is closed when the sequence ends.
func (c *Client) Events() <-chan RawEvent {
	return c.events
}

// Close stops the client. Once Close returns no further events are
// delivered. Close is idempotent and safe to call from any goroutine.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.cancel()
	})
	return nil
}

func (c *Client) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Client) run(httpClient *http.Client, req *http.Request) {
	defer close(c.events)
	defer c.cancel()

	var idle *time.Timer
	if c.opts.IdleTimeout > 0 {
		idle = time.AfterFunc(c.opts.IdleTimeout, func() {
			c.timedOut.Store(true)
			c.cancel()
		})
		defer idle.Stop()
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		c.fail(err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.fail(&StatusError{Code: resp.StatusCode, Body: string(body)})
		return
	}

	c.logger.Debug("upstream stream opened",
		"status", resp.StatusCode,
		"content_type", resp.Header.Get("Content-Type"),
	)

	if !c.emit(RawEvent{Kind: KindOpen}) {
		return
	}

	var body io.Reader = resp.Body
	if idle != nil {
		body = &idleReader{src: resp.Body, timer: idle, timeout: c.opts.IdleTimeout}
	}

	r := NewReader(body)
	for {
		ev, err := r.Next()
		if err != nil {
			c.fail(err)
			return
		}
		if ev == nil {
			c.logger.Debug("upstream stream ended")
			return
		}

		if !c.emit(RawEvent{Kind: KindMessage, Data: ev.Data}) {
			return
		}
	}
}

// fail emits the terminal error event unless the failure was caused by Close.
func (c *Client) fail(err error) {
	if c.closed() {
		return
	}
	if c.timedOut.Load() {
		err = ErrIdleTimeout
	}

	c.logger.Debug("upstream stream failed", "error", err)
	c.emit(RawEvent{Kind: KindError, Data: err.Error()})
}

// emit delivers ev unless the client is closed. It reports whether the
// event was delivered.
func (c *Client) emit(ev RawEvent) bool {
	if c.closed() {
		return false
	}

	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	}
}

// idleReader re-arms the idle timer whenever bytes arrive.
type idleReader struct {
	src     io.Reader
	timer   *time.Timer
	timeout time.Duration
}

func (r *idleReader) Read(p []byte) (int, error) {
	n, err := r.src.Read(p)
	if n > 0 {
		r.timer.Reset(r.timeout)
	}
	if err != nil {
		r.timer.Stop()
	}
	return n, err
}
