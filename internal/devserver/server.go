// Package devserver exposes operator endpoints during watch mode: a health
// probe, cache statistics, and a websocket stream of compile events.
package devserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/weftware/weft/internal/engine"
	"github.com/weftware/weft/internal/logging"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 54 * time.Second
)

// Server serves /healthz, /stats, and /events over one listener.
type Server struct {
	engine         *engine.Engine
	logger         logging.Logger
	host           string
	port           int
	allowedOrigins []string

	clientsMutex sync.RWMutex
	clients      map[*websocket.Conn]chan []byte

	httpServer *http.Server
}

// New creates a dev server for the given engine.
func New(eng *engine.Engine, logger logging.Logger, host string, port int, allowedOrigins []string) *Server {
	if logger == nil {
		logger = logging.NewLogger(logging.DefaultConfig())
	}
	return &Server{
		engine:         eng,
		logger:         logger.WithComponent("devserver"),
		host:           host,
		port:           port,
		allowedOrigins: allowedOrigins,
		clients:        make(map[*websocket.Conn]chan []byte),
	}
}

// Start runs the server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /events", s.handleEvents)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.host, s.port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go s.broadcastLoop(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"enabled": s.engine.IsEnabled(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.engine.CacheStats())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if !s.checkOrigin(r) {
		http.Error(w, "Origin not allowed", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: false, // Always verify origin
	})
	if err != nil {
		s.logger.Warn(r.Context(), err, "websocket upgrade failed")
		return
	}

	send := make(chan []byte, 256)
	s.clientsMutex.Lock()
	s.clients[conn] = send
	s.clientsMutex.Unlock()

	go s.writePump(conn, send)
	s.readPump(conn)
}

// checkOrigin validates the request origin for security. Cross-site pages
// must not be able to open the event stream.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return false
	}
	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if originURL.Scheme != "http" && originURL.Scheme != "https" {
		return false
	}

	allowed := []string{
		fmt.Sprintf("%s:%d", s.host, s.port),
		fmt.Sprintf("localhost:%d", s.port),
		fmt.Sprintf("127.0.0.1:%d", s.port),
	}
	allowed = append(allowed, s.allowedOrigins...)

	for _, host := range allowed {
		if originURL.Host == host {
			return true
		}
	}
	return false
}

// broadcastLoop relays registry events to all connected clients as JSON.
func (s *Server) broadcastLoop(ctx context.Context) {
	events := s.engine.Registry().Watch()
	defer s.engine.Registry().UnWatch(events)

	for {
		select {
		case <-ctx.Done():
			s.closeAll()
			return
		case event := <-events:
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			s.broadcast(payload)
		}
	}
}

func (s *Server) broadcast(message []byte) {
	s.clientsMutex.RLock()
	var failed []*websocket.Conn
	for conn, send := range s.clients {
		select {
		case send <- message:
		default:
			// Client's send channel is full, mark for removal
			failed = append(failed, conn)
		}
	}
	s.clientsMutex.RUnlock()

	for _, conn := range failed {
		s.dropClient(conn)
	}
}

func (s *Server) dropClient(conn *websocket.Conn) {
	s.clientsMutex.Lock()
	if send, ok := s.clients[conn]; ok {
		delete(s.clients, conn)
		close(send)
	}
	s.clientsMutex.Unlock()
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

func (s *Server) closeAll() {
	s.clientsMutex.Lock()
	for conn, send := range s.clients {
		close(send)
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
	s.clients = make(map[*websocket.Conn]chan []byte)
	s.clientsMutex.Unlock()
}

// readPump drains the connection until the client goes away.
func (s *Server) readPump(conn *websocket.Conn) {
	defer s.dropClient(conn)
	conn.SetReadLimit(512)

	ctx := context.Background()
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure &&
				websocket.CloseStatus(err) != websocket.StatusGoingAway {
				s.logger.Debug(ctx, "websocket read ended", "error", err.Error())
			}
			return
		}
	}
}

// writePump pumps messages to the websocket connection.
func (s *Server) writePump(conn *websocket.Conn, send <-chan []byte) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	ctx := context.Background()
	for {
		select {
		case message, ok := <-send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
