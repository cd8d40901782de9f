package testhelpers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/dbehnke/rf-nexus/pkg/config"
	"github.com/dbehnke/rf-nexus/pkg/database"
	"github.com/dbehnke/rf-nexus/pkg/gateway"
	"github.com/dbehnke/rf-nexus/pkg/logger"
	"github.com/dbehnke/rf-nexus/pkg/metrics"
	"github.com/dbehnke/rf-nexus/pkg/web"
)

// IntegrationSuite runs the gateway, history and HTTP API in-process
type IntegrationSuite struct {
	T         *testing.T
	Config    *config.Config
	Logger    *logger.Logger
	Ctx       context.Context
	Cancel    context.CancelFunc
	Collector *metrics.Collector
	DB        *database.DB
	History   *database.CodeRepository
	Gateway   *gateway.Gateway
	Server    *web.Server
	BaseURL   string

	serverDone chan error
}

// NewIntegrationSuite creates a suite with a temporary database path
func NewIntegrationSuite(t *testing.T) *IntegrationSuite {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	log := logger.New(logger.Config{
		Level:  "debug",
		Format: "text",
	})

	cfg := CreateDefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "rf-nexus.db")

	return &IntegrationSuite{
		T:         t,
		Config:    cfg,
		Logger:    log,
		Ctx:       ctx,
		Cancel:    cancel,
		Collector: metrics.NewCollector(),
	}
}

// GetFreePort gets a free port for testing
func (s *IntegrationSuite) GetFreePort() int {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		s.T.Fatal(err)
	}

	listener, err := net.ListenTCP("tcp", addr)
	if err != nil {
		s.T.Fatal(err)
	}
	defer func() { _ = listener.Close() }()

	return listener.Addr().(*net.TCPAddr).Port
}

// Start wires the gateway to history and the web server the way the daemon
// does and waits for the server to listen
func (s *IntegrationSuite) Start() {
	s.T.Helper()
	cfg := s.Config

	gw, err := gateway.New(gateway.Config{
		Enabled:      cfg.Codec.Enabled,
		StrictBits:   cfg.Codec.StrictBits,
		RepeatWindow: cfg.Codec.RepeatWindow,
	}, s.Collector, s.Logger)
	if err != nil {
		s.T.Fatalf("Failed to create gateway: %v", err)
	}
	s.Gateway = gw

	if cfg.Database.Enabled {
		db, err := database.NewDB(database.Config{Path: cfg.Database.Path}, s.Logger)
		if err != nil {
			s.T.Fatalf("Failed to open database: %v", err)
		}
		s.DB = db
		s.History = database.NewCodeRepository(db.GetDB())
		gw.SetStore(s.History)
	}

	s.Server = web.NewServer(cfg.Web, gw, s.Logger)
	s.Server.SetCollector(s.Collector)
	if s.History != nil {
		s.Server.SetHistory(s.History, cfg.Codec.HistoryLimit)
	}
	gw.SetBroadcaster(s.Server.GetHub())

	s.serverDone = make(chan error, 1)
	go func() {
		s.serverDone <- s.Server.Start(s.Ctx)
	}()

	if !s.WaitFor(func() bool { return s.Server.GetAddr() != "" }, 2*time.Second, "web server listening") {
		s.T.Fatal("Web server did not start")
	}
	s.BaseURL = "http://" + s.Server.GetAddr()
}

// PostJSON posts body to path and decodes the response into out
func (s *IntegrationSuite) PostJSON(path string, body, out interface{}) int {
	s.T.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		s.T.Fatalf("Failed to encode request: %v", err)
	}
	resp, err := http.Post(s.BaseURL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		s.T.Fatalf("POST %s failed: %v", path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	s.decode(path, resp, out)
	return resp.StatusCode
}

// GetJSON gets path and decodes the response into out
func (s *IntegrationSuite) GetJSON(path string, out interface{}) int {
	s.T.Helper()
	resp, err := http.Get(s.BaseURL + path)
	if err != nil {
		s.T.Fatalf("GET %s failed: %v", path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	s.decode(path, resp, out)
	return resp.StatusCode
}

func (s *IntegrationSuite) decode(path string, resp *http.Response, out interface{}) {
	s.T.Helper()
	if out == nil {
		return
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		s.T.Fatalf("Failed to decode %s response: %v", path, err)
	}
}

// Cleanup stops the server and closes the database
func (s *IntegrationSuite) Cleanup() {
	s.Cancel()
	if s.serverDone != nil {
		select {
		case <-s.serverDone:
		case <-time.After(5 * time.Second):
			s.T.Errorf("web server did not stop")
		}
	}
	if s.DB != nil {
		if err := s.DB.Close(); err != nil {
			s.T.Logf("Failed to close database: %v", err)
		}
	}
}

// WaitFor waits for a condition to be true
func (s *IntegrationSuite) WaitFor(condition func() bool, timeout time.Duration, message string) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	s.T.Logf("WaitFor timeout: %s", message)
	return false
}

// AssertEventually asserts that a condition becomes true within timeout
func (s *IntegrationSuite) AssertEventually(condition func() bool, timeout time.Duration, message string) {
	if !s.WaitFor(condition, timeout, message) {
		s.T.Errorf("Assertion failed: %s", message)
	}
}

// WebSocketURL returns the live feed address of the running server
func (s *IntegrationSuite) WebSocketURL() string {
	return fmt.Sprintf("ws://%s/ws", s.Server.GetAddr())
}

// CreateDefaultConfig creates a default test configuration
func CreateDefaultConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Name:        "Test Server",
			Description: "Integration Test Server",
		},
		Web: config.WebConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    0,
		},
		Codec: config.CodecConfig{
			HistoryLimit: 50,
			RepeatWindow: time.Second,
		},
		Database: config.DatabaseConfig{
			Enabled:       true,
			RetentionDays: 30,
		},
		MQTT: config.MQTTConfig{
			Enabled: false,
		},
		Logging: config.LoggingConfig{
			Level:  "debug",
			Format: "text",
		},
		Metrics: config.MetricsConfig{
			Enabled: false,
		},
	}
}
