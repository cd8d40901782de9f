package metrics

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dbehnke/rf-nexus/pkg/logger"
)

// PrometheusConfig holds Prometheus server configuration
type PrometheusConfig struct {
	Enabled bool
	Port    int
	Path    string
}

// PrometheusHandler handles Prometheus metrics HTTP requests
type PrometheusHandler struct {
	collector *Collector
}

// NewPrometheusHandler creates a new Prometheus handler
func NewPrometheusHandler(collector *Collector) *PrometheusHandler {
	return &PrometheusHandler{
		collector: collector,
	}
}

// ServeHTTP handles HTTP requests for metrics
func (h *PrometheusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	var output strings.Builder
	names := h.collector.Protocols()
	stats := make(map[string]ProtocolStats, len(names))
	for _, name := range names {
		stats[name] = h.collector.GetProtocolStats(name)
	}

	// Decode metrics
	output.WriteString("# HELP rf_decode_attempts_total Pulse trains handed to a protocol decoder\n")
	output.WriteString("# TYPE rf_decode_attempts_total counter\n")
	for _, name := range names {
		output.WriteString(fmt.Sprintf("rf_decode_attempts_total{protocol=%q} %d\n", name, stats[name].DecodeAttempts))
	}

	output.WriteString("# HELP rf_decode_matches_total Pulse trains decoded into a message\n")
	output.WriteString("# TYPE rf_decode_matches_total counter\n")
	for _, name := range names {
		output.WriteString(fmt.Sprintf("rf_decode_matches_total{protocol=%q} %d\n", name, stats[name].Matches))
	}

	output.WriteString("# HELP rf_decode_misses_total Pulse trains not recognised, by reason\n")
	output.WriteString("# TYPE rf_decode_misses_total counter\n")
	for _, name := range names {
		writeReasons(&output, "rf_decode_misses_total", name, stats[name].Misses)
	}

	// Encode metrics
	output.WriteString("# HELP rf_encodes_total Pulse trains built from requests\n")
	output.WriteString("# TYPE rf_encodes_total counter\n")
	for _, name := range names {
		output.WriteString(fmt.Sprintf("rf_encodes_total{protocol=%q} %d\n", name, stats[name].Encodes))
	}

	output.WriteString("# HELP rf_encode_rejects_total Encode requests rejected, by reason\n")
	output.WriteString("# TYPE rf_encode_rejects_total counter\n")
	for _, name := range names {
		writeReasons(&output, "rf_encode_rejects_total", name, stats[name].Rejects)
	}

	// History metrics
	output.WriteString("# HELP rf_records_stored_total Code records written to history\n")
	output.WriteString("# TYPE rf_records_stored_total counter\n")
	output.WriteString(fmt.Sprintf("rf_records_stored_total %d\n", h.collector.GetRecordsStored()))

	output.WriteString("# HELP rf_storage_errors_total Failed history writes\n")
	output.WriteString("# TYPE rf_storage_errors_total counter\n")
	output.WriteString(fmt.Sprintf("rf_storage_errors_total %d\n", h.collector.GetStorageErrors()))

	output.WriteString("# HELP rf_records_deleted_total Code records pruned by retention\n")
	output.WriteString("# TYPE rf_records_deleted_total counter\n")
	output.WriteString(fmt.Sprintf("rf_records_deleted_total %d\n", h.collector.GetRecordsDeleted()))

	output.WriteString("# HELP rf_publish_errors_total Failed MQTT publishes\n")
	output.WriteString("# TYPE rf_publish_errors_total counter\n")
	output.WriteString(fmt.Sprintf("rf_publish_errors_total %d\n", h.collector.GetPublishErrors()))

	// Live feed metrics
	output.WriteString("# HELP rf_websocket_clients Connected live feed clients\n")
	output.WriteString("# TYPE rf_websocket_clients gauge\n")
	output.WriteString(fmt.Sprintf("rf_websocket_clients %d\n", h.collector.GetActiveClients()))

	_, _ = w.Write([]byte(output.String()))
}

func writeReasons(out *strings.Builder, metric, protocol string, counts map[string]uint64) {
	reasons := make([]string, 0, len(counts))
	for reason := range counts {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		out.WriteString(fmt.Sprintf("%s{protocol=%q,reason=%q} %d\n", metric, protocol, reason, counts[reason]))
	}
}

// PrometheusServer is an HTTP server for Prometheus metrics
type PrometheusServer struct {
	config    PrometheusConfig
	collector *Collector
	log       *logger.Logger

	mu   sync.RWMutex
	addr string
}

// NewPrometheusServer creates a new Prometheus metrics server
func NewPrometheusServer(config PrometheusConfig, collector *Collector, log *logger.Logger) *PrometheusServer {
	if log == nil {
		log = logger.New(logger.Config{Level: "info", Format: "text"})
	}
	if config.Path == "" {
		config.Path = "/metrics"
	}

	return &PrometheusServer{
		config:    config,
		collector: collector,
		log:       log.WithComponent("metrics"),
	}
}

// Start serves the exposition until ctx is done
func (s *PrometheusServer) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.log.Info("Prometheus metrics server disabled")
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(s.config.Path, NewPrometheusHandler(s.collector))

	// Port 0 picks a free port; Addr reports it
	addr := fmt.Sprintf(":%d", s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.mu.Lock()
	s.addr = listener.Addr().String()
	s.mu.Unlock()

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.log.Info("Starting Prometheus metrics server",
		logger.String("address", s.Addr()),
		logger.String("path", s.config.Path))

	errChan := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown error: %w", err)
		}
		return ctx.Err()
	case err := <-errChan:
		return err
	}
}

// Addr returns the listening address once Start is running
func (s *PrometheusServer) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}
