package registry

import (
	"context"
	"sync"
	"time"
)

// MonitorConfig configures the liveness sweep.
type MonitorConfig struct {
	// ScanInterval is how often the registry is scanned (default 10s).
	ScanInterval time.Duration

	// Timeout is the maximum age of last_heartbeat before a record is
	// evicted (default 60s).
	Timeout time.Duration

	// OnEvict is called once per evicted record, after its session is
	// closed and its entry removed from the registry. Use it to fire
	// DeviceDisconnected on the event bus.
	OnEvict func(rec *DeviceRecord)
}

// Monitor runs a Registry's liveness sweep on its own timer,
// independent of any socket activity, so silent peers are detected
// even on an otherwise idle server.
type Monitor struct {
	registry *Registry
	config   MonitorConfig

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitor creates a liveness monitor for registry. Zero-value
// ScanInterval/Timeout fall back to 10s/60s.
func NewMonitor(registry *Registry, config MonitorConfig) *Monitor {
	if config.ScanInterval == 0 {
		config.ScanInterval = 10 * time.Second
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	return &Monitor{registry: registry, config: config}
}

// Start begins the periodic sweep. Stop, or cancellation of ctx,
// ends it.
func (m *Monitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.wg.Add(1)
	go m.run(ctx)
}

// Stop ends the sweep and waits for its goroutine to exit.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

func (m *Monitor) run(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweepOnce()
		}
	}
}

func (m *Monitor) sweepOnce() {
	evicted := m.registry.Sweep(m.config.Timeout)
	if m.config.OnEvict == nil {
		return
	}
	for _, rec := range evicted {
		m.config.OnEvict(rec)
	}
}
