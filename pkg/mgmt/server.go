// Package mgmt implements the management IPC: a JWT-authenticated
// WebSocket server exposing read-only daemon properties and a
// PrimaryParent change signal.
package mgmt

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// PropertySource is the read-only snapshot surface the server exposes,
// implemented by the daemon anchor over the neighbor/key stores and the
// RPL hook.
type PropertySource interface {
	HwAddress() [8]byte
	PanID() (uint16, bool)
	Gaks() [][16]byte
}

// Config bundles the server's startup parameters.
type Config struct {
	ListenAddr string
	JWTSecret  []byte
	Source     PropertySource
	Logger     zerolog.Logger
}

// Server is the process-wide management IPC endpoint. One instance per
// daemon, matching the single-anchor shape the rest of the core follows.
type Server struct {
	cfg      Config
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[*connection]struct{}
}

type connection struct {
	ws            *websocket.Conn
	authenticated bool
	mu            sync.Mutex
}

// New builds a management server. Call Start to begin serving.
func New(cfg Config) *Server {
	return &Server{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[*connection]struct{}),
	}
}

// Start serves the management WebSocket endpoint until the listener fails,
// returning the error from http.ListenAndServe. Runs in the calling
// goroutine, matching callers spawning it with `go server.Start()`.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	return http.ListenAndServe(s.cfg.ListenAddr, mux)
}

// request is one inbound client message: a property read or nothing else —
// the management contract is read-only plus the PrimaryParent signal.
type request struct {
	Property string `json:"property"`
}

type response struct {
	Property string      `json:"property,omitempty"`
	Value    interface{} `json:"value,omitempty"`
	Signal   string      `json:"signal,omitempty"`
	Error    string      `json:"error,omitempty"`
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.cfg.Logger.Error().Err(err).Msg("management websocket upgrade failed")
		return
	}

	conn := &connection{ws: ws, authenticated: bearerAuthenticated(r, s.cfg.JWTSecret)}
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		ws.Close()
	}()

	for {
		var req request
		if err := ws.ReadJSON(&req); err != nil {
			return
		}
		s.handleRequest(conn, req)
	}
}

func bearerAuthenticated(r *http.Request, secret []byte) bool {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	_, err := ValidateBearer(secret, strings.TrimPrefix(header, prefix))
	return err == nil
}

func (s *Server) handleRequest(conn *connection, req request) {
	var resp response
	resp.Property = req.Property

	switch req.Property {
	case "HwAddress":
		resp.Value = s.cfg.Source.HwAddress()
	case "PanId":
		if panID, ok := s.cfg.Source.PanID(); ok {
			resp.Value = panID
		} else {
			resp.Error = "pan id not yet assigned"
		}
	case "Gaks":
		if !conn.authenticated {
			resp.Error = "authentication required"
		} else {
			resp.Value = s.cfg.Source.Gaks()
		}
	default:
		resp.Error = "unknown property"
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()
	conn.ws.WriteJSON(resp)
}

// BroadcastPrimaryParent pushes the PrimaryParent signal to every connected
// client on an RPL preferred-parent change.
func (s *Server) BroadcastPrimaryParent(eui64 [8]byte) {
	resp := response{Signal: "PrimaryParent", Value: eui64}
	b, err := json.Marshal(resp)
	if err != nil {
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for conn := range s.conns {
		conn.mu.Lock()
		conn.ws.WriteMessage(websocket.TextMessage, b)
		conn.mu.Unlock()
	}
}
