package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/breakyard/shiftledger/internal/event"
)

// Path is where subscribers connect on the listen port.
const Path = "/racers-ledger/"

const defaultOutboxSize = 256

// Hub accepts websocket subscribers and fans published events out to them.
//
// The zero-subscriber case is the common one (nobody watching the feed), so
// Publish must stay cheap when the session table is empty.
type Hub struct {
	outboxSize int
	now        func() time.Time
	upgrader   websocket.Upgrader

	mu       sync.RWMutex
	sessions map[string]*session
	srv      *http.Server
	ln       net.Listener
	closed   bool
}

type session struct {
	id     string
	conn   *websocket.Conn
	outbox chan []byte
	done   chan struct{}
	once   sync.Once
	drops  atomic.Int64
}

// Option configures a Hub.
type Option func(*Hub)

// WithOutboxSize overrides the per-subscriber queue depth.
func WithOutboxSize(n int) Option {
	return func(h *Hub) { h.outboxSize = n }
}

// WithClock overrides the wall clock used to stamp welcome events.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) { h.now = now }
}

// NewHub creates a Hub. Call Start to begin accepting subscribers; Publish
// is safe to call before Start and simply reaches nobody.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		outboxSize: defaultOutboxSize,
		now:        time.Now,
		sessions:   make(map[string]*session),
	}
	h.upgrader = websocket.Upgrader{
		// Local tooling connects from arbitrary origins (chart viewers,
		// overlays), so origin checks are not useful here.
		CheckOrigin: func(*http.Request) bool { return true },
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start listens on addr (e.g. ":32325", or "127.0.0.1:0" in tests) and
// serves the subscriber endpoint until Shutdown.
func (h *Hub) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(Path, h.handleSubscriber)
	srv := &http.Server{Handler: mux}

	h.mu.Lock()
	h.ln = ln
	h.srv = srv
	h.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("broadcast server stopped", "error", err)
		}
	}()

	slog.Info("broadcast listening", "addr", ln.Addr().String(), "path", Path)
	return nil
}

// Addr returns the bound listen address, or nil before Start.
func (h *Hub) Addr() net.Addr {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.ln == nil {
		return nil
	}
	return h.ln.Addr()
}

func (h *Hub) handleSubscriber(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	s := &session{
		id:     uuid.NewString(),
		conn:   conn,
		outbox: make(chan []byte, h.outboxSize),
		done:   make(chan struct{}),
	}

	// The welcome is enqueued and the writer started before the session is
	// visible to Publish. The outbox holds only the welcome at that point, so
	// the enqueue cannot block and no domain frame can get ahead of it.
	if frame, err := event.Encode(event.NewWelcome(h.now())); err == nil {
		s.outbox <- frame
	}
	go h.writeLoop(s)
	go h.readLoop(s)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		s.once.Do(func() { close(s.done) })
		return
	}
	h.sessions[s.id] = s
	h.mu.Unlock()

	slog.Info("subscriber connected", "session", s.id, "remote", r.RemoteAddr)
}

// writeLoop drains the session outbox onto the wire.
func (h *Hub) writeLoop(s *session) {
	for {
		select {
		case frame := <-s.outbox:
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.drop(s, err)
				return
			}
		case <-s.done:
			deadline := time.Now().Add(time.Second)
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			s.conn.Close()
			return
		}
	}
}

// readLoop consumes inbound frames so close handshakes and disconnects are
// noticed. Subscribers have nothing to say; payloads are discarded.
func (h *Hub) readLoop(s *session) {
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			h.drop(s, err)
			return
		}
	}
}

func (h *Hub) drop(s *session, cause error) {
	h.mu.Lock()
	_, present := h.sessions[s.id]
	delete(h.sessions, s.id)
	h.mu.Unlock()

	s.once.Do(func() { close(s.done) })
	s.conn.Close()
	if present {
		slog.Info("subscriber disconnected",
			"session", s.id, "dropped_frames", s.drops.Load(), "cause", cause)
	}
}

// Publish encodes r once and offers the frame to every subscriber. A full
// outbox drops the frame for that subscriber rather than blocking.
func (h *Hub) Publish(r event.Record) {
	h.mu.RLock()
	if len(h.sessions) == 0 {
		h.mu.RUnlock()
		return
	}
	targets := make([]*session, 0, len(h.sessions))
	for _, s := range h.sessions {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	frame, err := event.Encode(r)
	if err != nil {
		slog.Error("dropping unencodable event", "kind", r.Kind().Tag(), "error", err)
		return
	}

	for _, s := range targets {
		select {
		case s.outbox <- frame:
		default:
			slog.Debug("subscriber outbox full, dropping frame",
				"session", s.id, "kind", r.Kind().Tag(), "dropped", s.drops.Add(1))
		}
	}
}

// Subscribers reports the current session count.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Shutdown closes the listener and disconnects every subscriber with a
// normal-closure frame. Idempotent; safe to call before Start.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	srv := h.srv
	sessions := make([]*session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.sessions = make(map[string]*session)
	h.mu.Unlock()

	for _, s := range sessions {
		s.once.Do(func() { close(s.done) })
	}

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
