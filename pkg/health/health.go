// Package health tracks the daemon's liveness and traffic counters: frames
// in and out of the RCP, ingress drops, and a watchdog that notices when the
// event loop stops turning. The counters back the drop-and-count error
// policy for malformed and unauthenticated ingress frames.
package health

import (
	"sync"
	"time"
)

// Config holds monitor configuration.
type Config struct {
	WatchdogEnabled bool
	WatchdogTimeout time.Duration
	// OnStall is invoked from the watchdog goroutine when the event loop
	// has not kicked within WatchdogTimeout. nil leaves stall reporting to
	// the caller polling GetStatus.
	OnStall func(sinceLastKick time.Duration)
}

// Status is a point-in-time snapshot of the monitor.
type Status struct {
	Healthy           bool
	UptimeSeconds     int64
	FramesReceived    int64
	FramesTransmitted int64
	ConfirmsDelivered int64
	DropsMalformed    int64
	DropsUnauthed     int64
	SupplicantsActive int64
	LastKick          time.Time
}

// Monitor is the process-wide health tracker. Counter methods are safe to
// call from the event loop and from the observer goroutines (pcap flush,
// management IPC) alike.
type Monitor struct {
	cfg     Config
	started time.Time

	mu     sync.RWMutex
	status Status
	done   chan struct{}
}

// NewMonitor builds a monitor and, when the watchdog is enabled, starts its
// background check loop.
func NewMonitor(cfg Config) *Monitor {
	m := &Monitor{
		cfg:     cfg,
		started: time.Now(),
		status:  Status{Healthy: true, LastKick: time.Now()},
		done:    make(chan struct{}),
	}
	if cfg.WatchdogEnabled && cfg.WatchdogTimeout > 0 {
		go m.watchdogLoop()
	}
	return m
}

// Kick records one turn of the event loop. The watchdog treats a missing
// kick for longer than WatchdogTimeout as a stalled daemon.
func (m *Monitor) Kick() {
	m.mu.Lock()
	m.status.LastKick = time.Now()
	m.mu.Unlock()
}

// RecordRx counts one frame received from the RCP.
func (m *Monitor) RecordRx() {
	m.mu.Lock()
	m.status.FramesReceived++
	m.mu.Unlock()
}

// RecordTx counts one frame handed to the RCP.
func (m *Monitor) RecordTx() {
	m.mu.Lock()
	m.status.FramesTransmitted++
	m.mu.Unlock()
}

// RecordConfirm counts one confirm delivered to the upper MAC, synthesized
// or RCP-reported.
func (m *Monitor) RecordConfirm() {
	m.mu.Lock()
	m.status.ConfirmsDelivered++
	m.mu.Unlock()
}

// RecordDropMalformed counts an ingress frame dropped as unparseable.
func (m *Monitor) RecordDropMalformed() {
	m.mu.Lock()
	m.status.DropsMalformed++
	m.mu.Unlock()
}

// RecordDropUnauthenticated counts an ingress frame dropped for failing
// authentication.
func (m *Monitor) RecordDropUnauthenticated() {
	m.mu.Lock()
	m.status.DropsUnauthed++
	m.mu.Unlock()
}

// SetSupplicantCount publishes the current number of known supplicants.
func (m *Monitor) SetSupplicantCount(n int64) {
	m.mu.Lock()
	m.status.SupplicantsActive = n
	m.mu.Unlock()
}

// GetStatus returns a copy of the current status.
func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.status
	s.UptimeSeconds = int64(time.Since(m.started).Seconds())
	return s
}

// Close stops the watchdog goroutine.
func (m *Monitor) Close() {
	close(m.done)
}

func (m *Monitor) watchdogLoop() {
	ticker := time.NewTicker(m.cfg.WatchdogTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
		}

		m.mu.RLock()
		since := time.Since(m.status.LastKick)
		m.mu.RUnlock()

		healthy := since <= m.cfg.WatchdogTimeout
		m.mu.Lock()
		m.status.Healthy = healthy
		m.mu.Unlock()

		if !healthy && m.cfg.OnStall != nil {
			m.cfg.OnStall(since)
		}
	}
}
