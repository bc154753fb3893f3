package transport

import (
	"context"
	"sync"
	"time"

	"github.com/fishcontrol/fishcontrol-core/internal/device"
)

// DefaultProbeInterval is how often the monitor probes the controller
// when no interval is configured.
const DefaultProbeInterval = 10 * time.Second

// MonitorConfig carries the health monitor's settings.
type MonitorConfig struct {
	// ProbeInterval is how often the controller is probed.
	// Zero means DefaultProbeInterval.
	ProbeInterval time.Duration
}

// Monitor periodically probes the controller's status endpoint and
// flips every device's Online flag through the state store when the
// controller's reachability changes.
type Monitor struct {
	client   *Client
	store    *device.StateStore
	interval time.Duration
	logger   Logger

	mu     sync.Mutex
	online bool
	probed bool

	cancel context.CancelFunc
	done   chan struct{}
}

// NewMonitor creates a health monitor over the given client and store.
func NewMonitor(client *Client, store *device.StateStore, cfg MonitorConfig) *Monitor {
	interval := cfg.ProbeInterval
	if interval <= 0 {
		interval = DefaultProbeInterval
	}

	return &Monitor{
		client:   client,
		store:    store,
		interval: interval,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the monitor.
func (m *Monitor) SetLogger(logger Logger) {
	m.logger = logger
}

// Online reports the controller's reachability as of the last probe.
// Returns false until the first probe has completed.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.probed && m.online
}

// Start begins the periodic probe loop. The first probe runs
// immediately, then every interval until Stop or ctx cancellation.
func (m *Monitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	go m.run(ctx)
}

// Stop halts the probe loop and waits for it to exit.
func (m *Monitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)

	m.probeOnce(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probeOnce(ctx)
		}
	}
}

// probeOnce performs one probe and applies any reachability transition
// to the state store.
func (m *Monitor) probeOnce(ctx context.Context) {
	status, err := m.client.Probe(ctx)
	online := err == nil && status.Online()

	m.mu.Lock()
	changed := !m.probed || online != m.online
	m.probed = true
	m.online = online
	m.mu.Unlock()

	if !changed {
		return
	}

	if online {
		m.logger.Info("controller online",
			"base_url", m.client.BaseURL(),
			"devices", status.Devices,
		)
	} else {
		m.logger.Warn("controller offline",
			"base_url", m.client.BaseURL(),
			"error", err,
		)
	}
	m.store.SetAllOnline(online)
}
