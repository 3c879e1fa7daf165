package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"digital.vasic.netprobe/pkg/logging"
	"digital.vasic.netprobe/pkg/scenario"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 512
	clientBuf  = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Controller is the scheduler surface exposed over HTTP.
type Controller interface {
	Status() scenario.SchedulerStatus
	Stop(ctx context.Context) error
}

// Message is the envelope written to WebSocket clients.
type Message struct {
	Kind string `json:"kind"`
	Data any    `json:"data"`
}

// Server serves scheduler status, shutdown, live events and
// metrics.
type Server struct {
	mu         sync.RWMutex
	addr       string
	controller Controller
	collector  *EventCollector
	dashboard  *DashboardData
	metrics    http.Handler
	logger     logging.Logger
	stopWait   time.Duration
	clients    map[chan Message]struct{}
	server     *http.Server
	stopOnce   sync.Once
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithServerLogger sets the server logger.
func WithServerLogger(l logging.Logger) ServerOption {
	return func(s *Server) {
		s.logger = l
	}
}

// WithStopTimeout bounds the controller Stop call triggered by
// POST /stop.
func WithStopTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		s.stopWait = d
	}
}

// NewServer creates a monitor server. Events emitted on
// collector update the dashboard and are broadcast to WebSocket
// clients.
func NewServer(
	addr string,
	controller Controller,
	collector *EventCollector,
	opts ...ServerOption,
) *Server {
	s := &Server{
		addr:       addr,
		controller: controller,
		collector:  collector,
		dashboard:  BuildDashboardData(collector),
		logger:     logging.NullLogger{},
		stopWait:   2 * time.Minute,
		clients:    make(map[chan Message]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	collector.OnEvent(func(event Event) {
		s.dashboard.UpdateFromEvent(event)
		s.broadcast(Message{Kind: "event", Data: event})
	})
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/stop", s.handleStop).Methods(http.MethodPost)
	r.HandleFunc("/dashboard", s.handleDashboard).Methods(http.MethodGet)
	r.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWS)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}
	return r
}

// Start serves until ctx is cancelled or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.server
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(), 5*time.Second,
		)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("monitor server listening",
		logging.StringField("addr", s.addr))

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("monitor server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	srv := s.server
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.Status())
}

// handleStop acknowledges immediately; the drain runs in the
// background so the response is not held for the grace period.
func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	accepted := false
	s.stopOnce.Do(func() {
		accepted = true
		go func() {
			ctx, cancel := context.WithTimeout(
				context.Background(), s.stopWait,
			)
			defer cancel()
			if err := s.controller.Stop(ctx); err != nil {
				s.logger.Error("stop request failed",
					logging.ErrorField(err))
			}
		}()
	})
	s.logger.Info("stop requested",
		logging.BoolField("accepted", accepted))
	writeJSON(w, http.StatusAccepted, map[string]any{
		"stopping": true,
		"accepted": accepted,
	})
}

func (s *Server) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.dashboard.Snapshot())
}

func (s *Server) handleEvents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"stats":      s.collector.Stats(),
		"events":     s.collector.Events(),
		"ws_clients": s.ClientCount(),
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", logging.ErrorField(err))
		return
	}

	ch := make(chan Message, clientBuf)
	ch <- Message{Kind: "dashboard", Data: s.dashboard.Snapshot()}

	s.mu.Lock()
	s.clients[ch] = struct{}{}
	s.mu.Unlock()
	s.logger.Debug("websocket client connected",
		logging.IntField("clients", s.ClientCount()))

	done := make(chan struct{})
	go s.readPump(conn, done)
	s.writePump(conn, ch, done)

	s.mu.Lock()
	delete(s.clients, ch)
	s.mu.Unlock()
	conn.Close()
}

// readPump discards client messages and closes done when the
// peer goes away.
func (s *Server) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(
				err, websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
			) {
				s.logger.Debug("websocket read", logging.ErrorField(err))
			}
			return
		}
	}
}

func (s *Server) writePump(
	conn *websocket.Conn, ch <-chan Message, done <-chan struct{},
) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case msg := <-ch:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// broadcast delivers msg to every client, dropping it for
// clients whose buffer is full.
func (s *Server) broadcast(msg Message) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for ch := range s.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

// ClientCount returns the number of connected WebSocket clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}
