package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dbehnke/rf-nexus/pkg/config"
	"github.com/dbehnke/rf-nexus/pkg/database"
	"github.com/dbehnke/rf-nexus/pkg/gateway"
	"github.com/dbehnke/rf-nexus/pkg/logger"
	"github.com/dbehnke/rf-nexus/pkg/metrics"
	"github.com/dbehnke/rf-nexus/pkg/mqtt"
	"github.com/dbehnke/rf-nexus/pkg/web"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

const (
	repeatCleanupInterval = time.Minute
	retentionInterval     = time.Hour
)

func main() {
	configFile := flag.String("config", "config.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	validate := flag.Bool("validate", false, "Validate configuration and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("RF-Nexus %s (commit %s, built %s)\n", version, commit, buildTime)
		os.Exit(0)
	}

	// Console logger until the configured one is available
	log := logger.New(logger.Config{Level: "info", Format: "text"})

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Error("Failed to load configuration", logger.Error(err))
		os.Exit(1)
	}

	if *validate {
		log.Info("Configuration is valid")
		os.Exit(0)
	}

	var logOut io.Writer = os.Stdout
	if cfg.Logging.File != "" {
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Error("Failed to open log file", logger.String("file", cfg.Logging.File), logger.Error(err))
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()
		logOut = io.MultiWriter(os.Stdout, f)
	}
	log = logger.New(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: logOut})

	log.Info("Starting RF-Nexus",
		logger.String("version", version),
		logger.String("build_time", buildTime),
		logger.String("config_file", *configFile))
	web.SetVersionInfo(version, commit, buildTime)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup

	metricsCollector := metrics.NewCollector()

	if cfg.Metrics.Enabled && cfg.Metrics.Prometheus.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			metricsServer := metrics.NewPrometheusServer(
				metrics.PrometheusConfig{
					Enabled: cfg.Metrics.Prometheus.Enabled,
					Port:    cfg.Metrics.Prometheus.Port,
					Path:    cfg.Metrics.Prometheus.Path,
				},
				metricsCollector,
				log.WithComponent("metrics"),
			)
			if err := metricsServer.Start(ctx); err != nil && err != context.Canceled {
				log.Error("Prometheus metrics server error", logger.Error(err))
			}
		}()
		log.Info("Prometheus metrics server started",
			logger.Int("port", cfg.Metrics.Prometheus.Port),
			logger.String("path", cfg.Metrics.Prometheus.Path))
	}

	gw, err := gateway.New(gateway.Config{
		Enabled:      cfg.Codec.Enabled,
		StrictBits:   cfg.Codec.StrictBits,
		RepeatWindow: cfg.Codec.RepeatWindow,
	}, metricsCollector, log)
	if err != nil {
		log.Error("Failed to create gateway", logger.Error(err))
		os.Exit(1)
	}

	var repo *database.CodeRepository
	if cfg.Database.Enabled {
		db, err := database.NewDB(database.Config{Path: cfg.Database.Path}, log.WithComponent("database"))
		if err != nil {
			log.Error("Failed to open database", logger.Error(err))
			os.Exit(1)
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.Warn("Failed to close database", logger.Error(err))
			}
		}()
		repo = database.NewCodeRepository(db.GetDB())
		gw.SetStore(repo)
	}

	var mqttPublisher *mqtt.Publisher
	if cfg.MQTT.Enabled {
		mqttPublisher = mqtt.New(
			mqtt.Config{
				Enabled:     cfg.MQTT.Enabled,
				Broker:      cfg.MQTT.Broker,
				TopicPrefix: cfg.MQTT.TopicPrefix,
				ClientID:    cfg.MQTT.ClientID,
				Username:    cfg.MQTT.Username,
				Password:    cfg.MQTT.Password,
				QoS:         cfg.MQTT.QoS,
				Retained:    cfg.MQTT.Retained,
			},
			log.WithComponent("mqtt"),
		)
		// A broker that is down at startup must not stop the gateway
		if err := mqttPublisher.Start(ctx); err != nil {
			log.Error("MQTT publisher error", logger.Error(err))
		}
		gw.SetPublisher(mqttPublisher)
		log.Info("MQTT publisher started",
			logger.String("broker", cfg.MQTT.Broker),
			logger.String("topic_prefix", cfg.MQTT.TopicPrefix))
	}

	webServer := web.NewServer(cfg.Web, gw, log)
	webServer.SetCollector(metricsCollector)
	if repo != nil {
		webServer.SetHistory(repo, cfg.Codec.HistoryLimit)
	}
	gw.SetBroadcaster(webServer.GetHub())

	if cfg.Web.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := webServer.Start(ctx); err != nil && err != context.Canceled {
				log.Error("Web server error", logger.Error(err))
			}
		}()
		log.Info("Web server started",
			logger.String("host", cfg.Web.Host),
			logger.Int("port", cfg.Web.Port))
	}

	var pruner Pruner
	if repo != nil {
		pruner = repo
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		runMaintenance(ctx, gw, pruner, cfg.Codec.RepeatWindow, cfg.Database.RetentionDays, metricsCollector, log.WithComponent("maintenance"))
	}()

	log.Info("RF-Nexus initialized",
		logger.String("server_name", cfg.Server.Name),
		logger.Int("protocols", len(gw.Protocols())))

	sig := <-sigChan
	log.Info("Received shutdown signal",
		logger.String("signal", sig.String()))

	cancel()
	wg.Wait()

	if mqttPublisher != nil {
		mqttPublisher.Stop()
	}

	log.Info("RF-Nexus stopped")
}

// Pruner deletes history older than a cutoff
type Pruner interface {
	DeleteOlderThan(before time.Time) (int64, error)
}

// runMaintenance forgets stale repeat tracking and prunes expired history
// until ctx is done
func runMaintenance(ctx context.Context, gw *gateway.Gateway, history Pruner, window time.Duration, retentionDays int, collector *metrics.Collector, log *logger.Logger) {
	repeats := time.NewTicker(repeatCleanupInterval)
	defer repeats.Stop()
	retention := time.NewTicker(retentionInterval)
	defer retention.Stop()

	prune := func() {
		if history == nil || retentionDays <= 0 {
			return
		}
		n, err := pruneHistory(history, retentionDays, time.Now())
		if err != nil {
			log.Error("Failed to prune code history", logger.Error(err))
			return
		}
		collector.RecordsDeleted(n)
		if n > 0 {
			log.Info("Pruned code history",
				logger.Int64("deleted", n),
				logger.Int("retention_days", retentionDays))
		}
	}
	prune()

	for {
		select {
		case <-ctx.Done():
			return
		case <-repeats.C:
			if n := gw.CleanupRepeats(window); n > 0 {
				log.Debug("Forgot stale repeated codes", logger.Int("count", n))
			}
		case <-retention.C:
			prune()
		}
	}
}

func pruneHistory(history Pruner, retentionDays int, now time.Time) (int64, error) {
	cutoff := now.AddDate(0, 0, -retentionDays)
	return history.DeleteOlderThan(cutoff)
}
