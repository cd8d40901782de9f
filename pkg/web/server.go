package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/dbehnke/rf-nexus/pkg/config"
	"github.com/dbehnke/rf-nexus/pkg/gateway"
	"github.com/dbehnke/rf-nexus/pkg/logger"
	"github.com/dbehnke/rf-nexus/pkg/metrics"
)

// Server represents the HTTP API server
type Server struct {
	config config.WebConfig
	logger *logger.Logger
	server *http.Server
	hub    *WebSocketHub
	api    *API
	addr   string
	mu     sync.RWMutex
}

// NewServer creates a new web server instance
func NewServer(cfg config.WebConfig, gw *gateway.Gateway, log *logger.Logger) *Server {
	log = log.WithComponent("web")
	return &Server{
		config: cfg,
		logger: log,
		hub:    NewWebSocketHub(log),
		api:    NewAPI(gw, log),
	}
}

// SetHistory sets the code history served by /api/history
func (s *Server) SetHistory(h History, limit int) {
	s.api.history = h
	if limit > 0 {
		s.api.historyLimit = limit
	}
}

// SetCollector sets the metrics collector shared by the API and the hub
func (s *Server) SetCollector(c *metrics.Collector) {
	s.api.collector = c
	s.hub.collector = c
}

// Handler returns the HTTP routes of the server
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)

	mux.HandleFunc("/api/status", s.api.HandleStatus)
	mux.HandleFunc("/api/protocols", s.api.HandleProtocols)
	mux.HandleFunc("/api/decode", s.api.HandleDecode)
	mux.HandleFunc("/api/encode", s.api.HandleEncode)
	mux.HandleFunc("/api/history", s.api.HandleHistory)

	mux.Handle("/ws", s.hub.Handler())
	return mux
}

// Start starts the HTTP server and blocks until ctx is done
func (s *Server) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info("Web server is disabled")
		return nil
	}

	go s.hub.Run(ctx)

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Listen first so port 0 resolves to a real address
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	s.mu.Lock()
	s.addr = listener.Addr().String()
	s.mu.Unlock()

	s.logger.Info("Starting web server",
		logger.String("address", s.addr))

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down web server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
		return ctx.Err()
	case err := <-errChan:
		return err
	}
}

// GetAddr returns the address the server is listening on
func (s *Server) GetAddr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// GetHub returns the WebSocket hub
func (s *Server) GetHub() *WebSocketHub {
	return s.hub
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "rf-nexus",
		"time":    time.Now().Unix(),
	}); err != nil {
		s.logger.Warn("Failed to encode health response", logger.Error(err))
	}
}
