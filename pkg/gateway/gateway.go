// Package gateway runs decode and encode calls against the enabled
// protocols and fans the results out to metrics, history, MQTT and the
// live feed.
package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dbehnke/rf-nexus/pkg/database"
	"github.com/dbehnke/rf-nexus/pkg/logger"
	"github.com/dbehnke/rf-nexus/pkg/metrics"
	"github.com/dbehnke/rf-nexus/pkg/mqtt"
	"github.com/dbehnke/rf-nexus/pkg/protocols"
	"github.com/dbehnke/rf-nexus/pkg/pulse"
)

// ErrProtocolNotEnabled is returned for protocols outside the enabled set
var ErrProtocolNotEnabled = errors.New("protocol not enabled")

// Store persists code records
type Store interface {
	Create(rec *database.CodeRecord) error
}

// Publisher forwards code events to a message broker
type Publisher interface {
	PublishReceived(event mqtt.CodeEvent) error
	PublishSent(event mqtt.CodeEvent) error
}

// Broadcaster pushes code events to live feed clients
type Broadcaster interface {
	BroadcastCodeReceived(protocol string, msg protocols.Message, pulses int)
	BroadcastCodeSent(protocol string, msg protocols.Message, pulses int)
}

// Config holds gateway configuration
type Config struct {
	Enabled    []string // protocol names; empty enables all
	StrictBits bool

	// Identical received codes within RepeatWindow of each other are one
	// button press. Zero disables repeat suppression.
	RepeatWindow time.Duration
}

// Gateway decodes and encodes pulse trains for the enabled protocols
type Gateway struct {
	protocols map[string]protocols.Protocol
	ordered   []protocols.Protocol
	window    time.Duration

	metrics     *metrics.Collector
	store       Store
	publisher   Publisher
	broadcaster Broadcaster
	logger      *logger.Logger

	mu     sync.Mutex
	recent map[string]*recentCode
}

// recentCode tracks a received code while its sender keeps repeating it
type recentCode struct {
	firstSeen time.Time
	lastSeen  time.Time
	repeats   int
}

// New creates a gateway for the configured protocols
func New(cfg Config, collector *metrics.Collector, log *logger.Logger) (*Gateway, error) {
	selected, err := protocols.Select(cfg.Enabled, protocols.StrictBits(cfg.StrictBits))
	if err != nil {
		return nil, err
	}
	if collector == nil {
		collector = metrics.NewCollector()
	}
	if log == nil {
		log = logger.New(logger.Config{Level: "info", Format: "text"})
	}

	g := &Gateway{
		protocols: make(map[string]protocols.Protocol, len(selected)),
		ordered:   selected,
		window:    cfg.RepeatWindow,
		metrics:   collector,
		logger:    log.WithComponent("gateway"),
		recent:    make(map[string]*recentCode),
	}
	for _, p := range selected {
		g.protocols[p.Name()] = p
	}
	return g, nil
}

// SetStore sets where code records are persisted
func (g *Gateway) SetStore(s Store) { g.store = s }

// SetPublisher sets the MQTT publisher
func (g *Gateway) SetPublisher(p Publisher) { g.publisher = p }

// SetBroadcaster sets the live feed
func (g *Gateway) SetBroadcaster(b Broadcaster) { g.broadcaster = b }

// Protocols returns the enabled protocols in configuration order
func (g *Gateway) Protocols() []protocols.Protocol {
	return append([]protocols.Protocol(nil), g.ordered...)
}

// Protocol returns one enabled protocol
func (g *Gateway) Protocol(name string) (protocols.Protocol, error) {
	p, ok := g.protocols[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProtocolNotEnabled, name)
	}
	return p, nil
}

// Decode runs the named protocol over t. A train that does not belong to
// the protocol is a NoMatch result, not an error.
func (g *Gateway) Decode(name string, t pulse.Train) (protocols.Result, error) {
	p, err := g.Protocol(name)
	if err != nil {
		return protocols.Result{}, err
	}

	g.metrics.DecodeAttempted(name)
	res := p.Decode(t)
	if !res.Matched {
		reason := pulse.Reason(res.Reason)
		g.metrics.DecodeMissed(name, reason)
		g.logger.Debug("Train not recognised",
			logger.String("protocol", name),
			logger.String("reason", reason),
			logger.Int("pulses", len(t)))
		return res, nil
	}
	g.metrics.DecodeMatched(name)

	if g.isRepeat(name, res.Message, time.Now()) {
		g.logger.Debug("Suppressed repeated code",
			logger.String("protocol", name),
			logger.String("id", res.Message.ID))
		return res, nil
	}

	g.logger.Info("Decoded code",
		logger.String("protocol", name),
		logger.String("id", res.Message.ID),
		logger.String("state", res.Message.State))
	g.record(database.DirectionReceived, name, res.Message, t)
	return res, nil
}

// Encode builds the train for req with the named protocol
func (g *Gateway) Encode(name string, req protocols.Request) (pulse.Train, protocols.Message, error) {
	p, err := g.Protocol(name)
	if err != nil {
		return nil, protocols.Message{}, err
	}

	t, msg, err := p.Encode(req)
	if err != nil {
		reason := pulse.Reason(err)
		g.metrics.EncodeRejected(name, reason)
		g.logger.Debug("Encode request rejected",
			logger.String("protocol", name),
			logger.String("reason", reason),
			logger.Error(err))
		return nil, protocols.Message{}, err
	}
	g.metrics.Encoded(name)

	g.logger.Info("Encoded code",
		logger.String("protocol", name),
		logger.String("id", msg.ID),
		logger.String("state", msg.State))
	g.record(database.DirectionSent, name, msg, t)
	return t, msg, nil
}

// isRepeat reports whether msg continues a code seen within the repeat window
func (g *Gateway) isRepeat(name string, msg protocols.Message, now time.Time) bool {
	if g.window <= 0 {
		return false
	}
	key := repeatKey(name, msg)

	g.mu.Lock()
	defer g.mu.Unlock()

	code, exists := g.recent[key]
	if exists && now.Sub(code.lastSeen) <= g.window {
		code.lastSeen = now
		code.repeats++
		return true
	}
	g.recent[key] = &recentCode{firstSeen: now, lastSeen: now}
	return false
}

// CleanupRepeats forgets codes that have not been seen for maxAge.
// Should be called periodically
func (g *Gateway) CleanupRepeats(maxAge time.Duration) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, code := range g.recent {
		if now.Sub(code.lastSeen) > maxAge {
			g.logger.Debug("Forgot repeated code",
				logger.String("key", key),
				logger.Int("repeats", code.repeats),
				logger.Any("duration", code.lastSeen.Sub(code.firstSeen)))
			delete(g.recent, key)
			removed++
		}
	}
	return removed
}

// GetTrackedCount returns the number of codes inside their repeat window
func (g *Gateway) GetTrackedCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.recent)
}

func repeatKey(name string, msg protocols.Message) string {
	data, err := json.Marshal(msg)
	if err != nil {
		return name + "|" + msg.ID + "|" + msg.State
	}
	return name + "|" + string(data)
}

// record persists and forwards one code; failures are logged, never returned
func (g *Gateway) record(direction, name string, msg protocols.Message, t pulse.Train) {
	now := time.Now()

	if g.store != nil {
		rec := newRecord(direction, name, msg, t)
		rec.CreatedAt = now
		if err := g.store.Create(rec); err != nil {
			g.metrics.StorageFailed()
			g.logger.Error("Failed to save code record",
				logger.String("protocol", name),
				logger.Error(err))
		} else {
			g.metrics.RecordStored()
		}
	}

	if g.publisher != nil {
		event := mqtt.CodeEvent{Protocol: name, Message: msg, Pulses: len(t), Timestamp: now}
		publish := g.publisher.PublishReceived
		if direction == database.DirectionSent {
			publish = g.publisher.PublishSent
		}
		if err := publish(event); err != nil {
			g.metrics.PublishFailed()
			g.logger.Warn("Failed to publish code event",
				logger.String("protocol", name),
				logger.Error(err))
		}
	}

	if g.broadcaster != nil {
		if direction == database.DirectionSent {
			g.broadcaster.BroadcastCodeSent(name, msg, len(t))
		} else {
			g.broadcaster.BroadcastCodeReceived(name, msg, len(t))
		}
	}
}

func newRecord(direction, name string, msg protocols.Message, t pulse.Train) *database.CodeRecord {
	rec := &database.CodeRecord{
		Protocol:  name,
		Direction: direction,
		DeviceID:  msg.ID,
		Channel:   msg.Channel,
		Unit:      msg.Unit,
		All:       msg.All,
		State:     msg.State,
		DimLevel:  msg.DimLevel,
	}
	rec.SetPulses(t)
	return rec
}
