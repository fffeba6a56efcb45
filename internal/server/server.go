// internal/server/server.go
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tamzrod/modbus-monitor/internal/model"
	"github.com/tamzrod/modbus-monitor/internal/poller"
	"github.com/tamzrod/modbus-monitor/internal/status"
)

// Engine is the polling engine surface the server drives.
type Engine interface {
	status.Source
	History(key string, window time.Duration) poller.Series
	WriteRegister(reg model.Register, value float64) bool
	WriteBit(bit model.Bit, on bool) bool
	ReadRegisterSafe(reg model.Register) (float64, bool)
	SetInterval(d time.Duration)
	Start()
	Stop() bool
	Subscribe(o poller.Observer) func()
}

const (
	sendBuffer      = 64
	writeWait       = 5 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Frame is the JSON message sent to every WebSocket client.
type Frame struct {
	Type     string           `json:"type"` // data, error, connection_lost
	Snapshot *status.Snapshot `json:"snapshot,omitempty"`
	Message  string           `json:"message,omitempty"`
	Stamp    int64            `json:"stamp"` // unix ms
}

// Server exposes the engine over HTTP and pushes snapshots to
// WebSocket clients on every engine notification.
type Server struct {
	engine Engine
	log    *zap.Logger
	now    func() time.Time

	clients   map[*wsClient]struct{}
	clientsMu sync.RWMutex

	upgrader websocket.Upgrader
	unsub    func()
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// New creates a server and subscribes it to engine notifications.
func New(engine Engine, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		engine:  engine,
		log:     log.With(zap.String("component", "server")),
		now:     time.Now,
		clients: make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.unsub = engine.Subscribe(s)
	return s
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/snapshot", s.handleSnapshot)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/read", s.handleRead)
	mux.HandleFunc("/api/write", s.handleWrite)
	mux.HandleFunc("/api/bit", s.handleBit)
	mux.HandleFunc("/api/interval", s.handleInterval)
	mux.HandleFunc("/api/poll/start", s.handleStart)
	mux.HandleFunc("/api/poll/stop", s.handleStop)
	return mux
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
		s.Close()
	}()

	s.log.Info("listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close unsubscribes from the engine and disconnects every client.
func (s *Server) Close() {
	if s.unsub != nil {
		s.unsub()
		s.unsub = nil
	}

	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for c := range s.clients {
		_ = c.conn.Close()
	}
}

// ---- engine observer ----

func (s *Server) DataUpdated() {
	snap := status.Take(s.engine, s.now())
	s.broadcast(Frame{Type: "data", Snapshot: &snap})
}

func (s *Server) Error(msg string) {
	s.broadcast(Frame{Type: "error", Message: msg})
}

func (s *Server) ConnectionLost() {
	s.broadcast(Frame{Type: "connection_lost", Message: "connection lost"})
}

// ---- websocket ----

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}

	client := &wsClient{conn: conn, send: make(chan []byte, sendBuffer)}

	// Initial state before joining the broadcast set.
	snap := status.Take(s.engine, s.now())
	if data, err := s.encode(Frame{Type: "data", Snapshot: &snap}); err == nil {
		client.send <- data
	}

	s.clientsMu.Lock()
	s.clients[client] = struct{}{}
	n := len(s.clients)
	s.clientsMu.Unlock()
	s.log.Debug("ws client connected", zap.Int("clients", n))

	go func() {
		defer conn.Close()
		for msg := range client.send {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}()

	go func() {
		defer func() {
			s.clientsMu.Lock()
			delete(s.clients, client)
			n := len(s.clients)
			s.clientsMu.Unlock()
			close(client.send)
			s.log.Debug("ws client disconnected", zap.Int("clients", n))
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) broadcast(f Frame) {
	data, err := s.encode(f)
	if err != nil {
		s.log.Warn("frame encode failed", zap.Error(err))
		return
	}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			// slow client, drop frame
		}
	}
}

func (s *Server) clientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}
