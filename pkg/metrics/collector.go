package metrics

import (
	"sort"
	"sync"
)

// ProtocolStats holds the counters of one protocol
type ProtocolStats struct {
	DecodeAttempts uint64
	Matches        uint64
	Misses         map[string]uint64 // by reason label
	Encodes        uint64
	Rejects        map[string]uint64 // rejected encode requests by reason label
}

func newProtocolStats() *ProtocolStats {
	return &ProtocolStats{
		Misses:  make(map[string]uint64),
		Rejects: make(map[string]uint64),
	}
}

func (s *ProtocolStats) clone() ProtocolStats {
	out := *s
	out.Misses = make(map[string]uint64, len(s.Misses))
	for k, v := range s.Misses {
		out.Misses[k] = v
	}
	out.Rejects = make(map[string]uint64, len(s.Rejects))
	for k, v := range s.Rejects {
		out.Rejects[k] = v
	}
	return out
}

// Collector collects RF-Nexus metrics
type Collector struct {
	mu sync.RWMutex

	// Codec metrics, keyed by protocol name
	protocols map[string]*ProtocolStats

	// History metrics
	recordsStored  uint64
	storageErrors  uint64
	publishErrors  uint64
	recordsDeleted uint64

	// Live feed metrics
	activeClients map[string]bool
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{
		protocols:     make(map[string]*ProtocolStats),
		activeClients: make(map[string]bool),
	}
}

// stats must be called with the write lock held
func (c *Collector) stats(protocol string) *ProtocolStats {
	s, ok := c.protocols[protocol]
	if !ok {
		s = newProtocolStats()
		c.protocols[protocol] = s
	}
	return s
}

// DecodeAttempted records a train handed to a protocol
func (c *Collector) DecodeAttempted(protocol string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats(protocol).DecodeAttempts++
}

// DecodeMatched records a train that produced a message
func (c *Collector) DecodeMatched(protocol string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats(protocol).Matches++
}

// DecodeMissed records a train that did not belong to the protocol
func (c *Collector) DecodeMissed(protocol, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats(protocol).Misses[reason]++
}

// Encoded records a built train
func (c *Collector) Encoded(protocol string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats(protocol).Encodes++
}

// EncodeRejected records an encode request that failed validation
func (c *Collector) EncodeRejected(protocol, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats(protocol).Rejects[reason]++
}

// RecordStored records a persisted code record
func (c *Collector) RecordStored() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.recordsStored++
}

// StorageFailed records a failed history write
func (c *Collector) StorageFailed() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.storageErrors++
}

// RecordsDeleted records history pruned by retention
func (c *Collector) RecordsDeleted(n int64) {
	if n <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.recordsDeleted += uint64(n)
}

// PublishFailed records a failed MQTT publish
func (c *Collector) PublishFailed() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.publishErrors++
}

// ClientConnected records a live feed client joining
func (c *Collector) ClientConnected(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.activeClients[id] = true
}

// ClientDisconnected records a live feed client leaving
func (c *Collector) ClientDisconnected(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.activeClients, id)
}

// Reset resets the gauges (useful for testing)
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.activeClients = make(map[string]bool)
	// Counters are cumulative and stay
}

// Getters for metrics

// Protocols returns the names of protocols with recorded activity, sorted
func (c *Collector) Protocols() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.protocols))
	for n := range c.protocols {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// GetProtocolStats returns a copy of one protocol's counters
func (c *Collector) GetProtocolStats(protocol string) ProtocolStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.protocols[protocol]
	if !ok {
		return newProtocolStats().clone()
	}
	return s.clone()
}

// GetTotals sums decode attempts, matches and encodes over all protocols
func (c *Collector) GetTotals() (attempts, matches, encodes uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, s := range c.protocols {
		attempts += s.DecodeAttempts
		matches += s.Matches
		encodes += s.Encodes
	}
	return attempts, matches, encodes
}

// GetRecordsStored returns total persisted records
func (c *Collector) GetRecordsStored() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.recordsStored
}

// GetStorageErrors returns total failed history writes
func (c *Collector) GetStorageErrors() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.storageErrors
}

// GetRecordsDeleted returns total records pruned by retention
func (c *Collector) GetRecordsDeleted() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.recordsDeleted
}

// GetPublishErrors returns total failed MQTT publishes
func (c *Collector) GetPublishErrors() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.publishErrors
}

// GetActiveClients returns the number of live feed clients
func (c *Collector) GetActiveClients() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.activeClients)
}
