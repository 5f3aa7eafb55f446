package gateway

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	logpkg "github.com/ersinkoc/DistributedWebSocket/pkg/log"
)

// Server is the gateway's HTTP surface: websocket upgrade, authenticated
// publish intake, and the health/metrics endpoints.
type Server struct {
	gw       *Gateway
	logger   logpkg.Logger
	srv      *http.Server
	lis      net.Listener
	upgrader websocket.Upgrader
}

// NewServer builds the gateway HTTP server.
func NewServer(gw *Gateway) *Server {
	s := &Server{
		gw:       gw,
		logger:   gw.logger.With(logpkg.Component("gateway-http")),
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("POST /broadcast", s.handleBroadcast)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	s.srv = &http.Server{Handler: mux}
	return s
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		return nil
	case err := <-errCh:
		return err
	}
}

// Close closes the listener.
func (s *Server) Close() {
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

// Handler returns the root handler. Used by tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", logpkg.Err(err))
		return
	}
	clientID := s.gw.ids.Next().String()
	client := newWSClient(clientID, conn, s.gw)
	s.gw.table.AddClient(clientID, client)
	s.logger.Info("client connected", logpkg.Str("client_id", clientID))
	client.run()
}

type broadcastRequest struct {
	Channel string `json:"channel"`
	Message string `json:"message"`
	APIKey  string `json:"apiKey"`
	Origin  string `json:"origin,omitempty"`
}

func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	if req.APIKey != s.gw.cfg.APIKey {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	if req.Channel == "" || req.Message == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "channel and message are required"})
		return
	}

	res, err := s.gw.engine.Publish(r.Context(), req.Channel, req.Message, req.Origin)
	if err != nil {
		s.logger.Error("broadcast failed", logpkg.Err(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "broadcast failed"})
		return
	}
	if res.Total == 0 {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":     true,
			"nodeId":      s.gw.nodeID,
			"subscribers": 0,
			"message":     "no subscribers for this channel",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"nodeId":    s.gw.nodeID,
		"delivered": res.Delivered,
		"total":     res.Total,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.gw.snapshot())
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-API-Key") != s.gw.cfg.APIKey {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	writeJSON(w, http.StatusOK, s.gw.snapshot())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
