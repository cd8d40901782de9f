package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/dbehnke/rf-nexus/pkg/logger"
	"github.com/dbehnke/rf-nexus/pkg/protocols"
)

// ErrNotConnected is returned when publishing before Start succeeded
var ErrNotConnected = errors.New("mqtt client not connected")

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
	quiesceMillis  = 250
)

// Config holds MQTT publisher configuration
type Config struct {
	Enabled     bool
	Broker      string
	TopicPrefix string
	ClientID    string
	Username    string
	Password    string
	QoS         byte
	Retained    bool
}

// Publisher handles MQTT event publishing
type Publisher struct {
	config    Config
	log       *logger.Logger
	newClient func(*paho.ClientOptions) paho.Client

	mu     sync.RWMutex
	client paho.Client
}

// CodeEvent is a decoded or encoded device command
type CodeEvent struct {
	Protocol  string            `json:"protocol"`
	Message   protocols.Message `json:"message"`
	Pulses    int               `json:"pulses"`
	Timestamp time.Time         `json:"timestamp"`
}

// New creates a new MQTT publisher
func New(config Config, log *logger.Logger) *Publisher {
	if log == nil {
		log = logger.New(logger.Config{Level: "info", Format: "text"})
	}

	return &Publisher{
		config:    config,
		log:       log.WithComponent("mqtt"),
		newClient: paho.NewClient,
	}
}

// Start connects to the broker
func (p *Publisher) Start(ctx context.Context) error {
	if !p.config.Enabled {
		p.log.Info("MQTT publisher disabled")
		return nil
	}

	p.log.Info("Starting MQTT publisher",
		logger.String("broker", p.config.Broker),
		logger.String("client_id", p.config.ClientID))

	opts := paho.NewClientOptions().
		AddBroker(p.config.Broker).
		SetClientID(p.config.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.log.Warn("MQTT connection lost", logger.Error(err))
		})
	if p.config.Username != "" {
		opts.SetUsername(p.config.Username)
		opts.SetPassword(p.config.Password)
	}

	client := p.newClient(opts)
	if err := wait(ctx, client.Connect(), connectTimeout); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", p.config.Broker, err)
	}
	p.mu.Lock()
	p.client = client
	p.mu.Unlock()

	p.log.Info("MQTT publisher connected")
	return nil
}

// Stop disconnects from the broker
func (p *Publisher) Stop() {
	p.mu.Lock()
	client := p.client
	p.client = nil
	p.mu.Unlock()
	if !p.config.Enabled || client == nil {
		return
	}

	p.log.Info("Stopping MQTT publisher")
	client.Disconnect(quiesceMillis)
}

// PublishReceived publishes a message decoded from a received train
func (p *Publisher) PublishReceived(event CodeEvent) error {
	if !p.config.Enabled {
		return nil
	}

	return p.publish(p.formatTopic(event.Protocol+"/received"), event)
}

// PublishSent publishes a message encoded for transmission
func (p *Publisher) PublishSent(event CodeEvent) error {
	if !p.config.Enabled {
		return nil
	}

	return p.publish(p.formatTopic(event.Protocol+"/sent"), event)
}

// publish publishes an event to a topic
func (p *Publisher) publish(topic string, event interface{}) error {
	payload, err := p.serializeEvent(event)
	if err != nil {
		p.log.Error("Failed to serialize event",
			logger.String("topic", topic),
			logger.Error(err))
		return err
	}

	p.mu.RLock()
	client := p.client
	p.mu.RUnlock()
	if client == nil || !client.IsConnected() {
		return ErrNotConnected
	}

	tok := client.Publish(topic, p.config.QoS, p.config.Retained, payload)
	if err := wait(context.Background(), tok, publishTimeout); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	p.log.Debug("Published MQTT event",
		logger.String("topic", topic),
		logger.Int("payload_size", len(payload)))
	return nil
}

// wait blocks until tok completes, the timeout passes or ctx ends
func wait(ctx context.Context, tok paho.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-tok.Done():
		return tok.Error()
	case <-timer.C:
		return fmt.Errorf("timed out after %s", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// serializeEvent serializes an event to JSON
func (p *Publisher) serializeEvent(event interface{}) ([]byte, error) {
	return json.Marshal(event)
}

// formatTopic formats a topic with the configured prefix
func (p *Publisher) formatTopic(suffix string) string {
	prefix := strings.TrimSuffix(p.config.TopicPrefix, "/")
	if prefix == "" {
		return suffix
	}
	return fmt.Sprintf("%s/%s", prefix, suffix)
}
