package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/nickyhof/MiniDB"
	"github.com/nickyhof/MiniDB/db"
	"github.com/nickyhof/MiniDB/internal/config"
	"github.com/nickyhof/MiniDB/internal/logging"
)

const (
	// wsPongWait is how long a WebSocket may stay silent before it is closed.
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
	wsWriteWait  = 10 * time.Second
)

// Server is an HTTP SQL server that exposes the MiniDB engine.
type Server struct {
	instance   *MiniDB.Instance
	engine     *db.Engine
	auth       AuthConfig
	config     config.Server
	upgrader   websocket.Upgrader
	httpServer *http.Server
	listener   net.Listener
	wg         sync.WaitGroup
	done       chan struct{}
	stopOnce   sync.Once
}

// NewServer creates a new SQL server over the given MiniDB instance.
func NewServer(instance *MiniDB.Instance, cfg config.Server) *Server {
	s := &Server{
		instance: instance,
		engine:   instance.Engine(),
		auth:     AuthConfigFrom(cfg),
		config:   cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		done: make(chan struct{}),
	}
	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  2 * time.Minute,
	}
	return s
}

// Handler returns the routes of the server wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/execute", s.requireAuth(s.handleExecute))
	mux.HandleFunc("GET /api/tables", s.requireAuth(s.handleTables))
	mux.HandleFunc("GET /ws", s.requireAuth(s.handleWebSocket))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleTasks)
	mux.HandleFunc("POST /tasks/add", s.handleAddTask)
	mux.HandleFunc("POST /tasks/delete", s.handleDeleteTask)
	return logging.CombinedMiddleware(mux)
}

// Start begins listening for connections on the specified address.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	s.listener = listener

	logging.ServerStartup("http", listener.Addr().String(), "auth", s.auth.Enabled)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("http server stopped", "error", err)
		}
	}()
	return nil
}

// Stop gracefully shuts down the server. Open WebSocket connections are
// closed; in-flight HTTP requests get until ctx is done to finish.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		close(s.done)
		err = s.httpServer.Shutdown(ctx)
		s.wg.Wait()
	})
	return err
}

// Addr returns the server's listening address.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// execute runs one statement and logs who ran it.
func (s *Server) execute(ctx context.Context, query string) db.Outcome {
	outcome := s.engine.Run(query)
	if identity, ok := IdentityFromContext(ctx); ok {
		logging.DebugContext(ctx, "statement executed", "identity", identity.String(), "kind", outcome.Kind)
	}
	return outcome
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestSize))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	req, err := DecodeRequest(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	outcome := s.execute(r.Context(), req.Query)
	body, err := json.Marshal(outcome)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	body = append(body, '\n')

	w.Header().Set("Content-Type", "application/json")
	if outcome.Kind == db.RowsOutcome {
		tag := etag(body)
		w.Header().Set("ETag", tag)
		if r.Header.Get("If-None-Match") == tag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	w.WriteHeader(statusFor(outcome))
	w.Write(body)
}

func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	tables := s.engine.Tables()
	if tables == nil {
		tables = []string{}
	}
	writeJSON(w, http.StatusOK, TablesResponse{Tables: tables})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleWebSocket runs every text message as a statement and replies with
// its outcome, in order.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	logging.WebSocketEvent(ctx, "connected", "remote_addr", r.RemoteAddr)
	defer logging.WebSocketEvent(ctx, "disconnected", "remote_addr", r.RemoteAddr)

	conn.SetReadLimit(maxRequestSize)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	var writeMu sync.Mutex
	write := func(messageType int, data []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteMessage(messageType, data)
	}

	stopPing := make(chan struct{})
	defer close(stopPing)
	go func() {
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := write(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-s.done:
				write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				conn.Close()
				return
			case <-stopPing:
				return
			}
		}
	}()

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.WarnContext(ctx, "websocket unexpected close", "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		conn.SetReadDeadline(time.Now().Add(wsPongWait))

		body, err := json.Marshal(s.execute(ctx, string(message)))
		if err != nil {
			logging.ErrorContext(ctx, "failed to encode outcome", "error", err)
			return
		}
		if err := write(websocket.TextMessage, body); err != nil {
			return
		}
	}
}
