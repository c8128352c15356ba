// Package live streams stat events to websocket clients.
package live

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/pai-drill/internal/events"
)

const (
	defaultBuffer       = 16
	defaultWriteTimeout = 5 * time.Second
)

// Options configures a Hub. Zero values use defaults.
type Options struct {
	// Buffer is the number of events queued per client before it is dropped.
	Buffer       int
	WriteTimeout time.Duration
	// OriginPatterns are passed to websocket.Accept.
	OriginPatterns []string
	Logger         *slog.Logger
}

type subscriber struct {
	msgs      chan events.StatEvent
	closeSlow func()
}

// Hub fans stat events out to connected websocket clients. Publishing never
// blocks: a client whose queue is full is disconnected.
type Hub struct {
	buffer         int
	writeTimeout   time.Duration
	originPatterns []string
	logger         *slog.Logger

	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
}

// NewHub creates a hub with no clients.
func NewHub(opts Options) *Hub {
	if opts.Buffer <= 0 {
		opts.Buffer = defaultBuffer
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Hub{
		buffer:         opts.Buffer,
		writeTimeout:   opts.WriteTimeout,
		originPatterns: opts.OriginPatterns,
		logger:         opts.Logger.With("component", "live"),
		subscribers:    make(map[*subscriber]struct{}),
	}
}

// Attach subscribes the hub to every stat type on bus.
func (h *Hub) Attach(bus *events.StatsBus) (detach func()) {
	var unsubs []func()
	for _, st := range events.StatTypes() {
		unsubs = append(unsubs, bus.Subscribe(st, h.Publish))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// Publish queues event for every client.
func (h *Hub) Publish(event events.StatEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subscribers {
		select {
		case s.msgs <- event:
		default:
			go s.closeSlow()
		}
	}
	return nil
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// ServeHTTP upgrades the request and streams events until the client leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.logger.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	err = h.stream(r.Context(), conn)
	switch {
	case errors.Is(err, context.Canceled),
		websocket.CloseStatus(err) == websocket.StatusNormalClosure,
		websocket.CloseStatus(err) == websocket.StatusGoingAway:
		return
	case err != nil:
		h.logger.Info("live client disconnected", "error", err)
	}
}

func (h *Hub) stream(ctx context.Context, conn *websocket.Conn) error {
	var mu sync.Mutex
	var closed bool
	s := &subscriber{
		msgs: make(chan events.StatEvent, h.buffer),
		closeSlow: func() {
			mu.Lock()
			defer mu.Unlock()
			closed = true
			conn.Close(websocket.StatusPolicyViolation, "connection too slow to keep up with events")
		},
	}
	h.add(s)
	defer h.remove(s)

	// Clients never send; CloseRead handles control frames and ends ctx on close.
	ctx = conn.CloseRead(ctx)

	for {
		select {
		case event := <-s.msgs:
			if err := h.write(ctx, conn, event); err != nil {
				return err
			}
		case <-ctx.Done():
			mu.Lock()
			defer mu.Unlock()
			if closed {
				return errors.New("dropped slow client")
			}
			return ctx.Err()
		}
	}
}

func (h *Hub) write(ctx context.Context, conn *websocket.Conn, event events.StatEvent) error {
	ctx, cancel := context.WithTimeout(ctx, h.writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, event)
}

func (h *Hub) add(s *subscriber) {
	h.mu.Lock()
	h.subscribers[s] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("live client connected")
}

func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	delete(h.subscribers, s)
	h.mu.Unlock()
}
