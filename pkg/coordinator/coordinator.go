package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"github.com/rvfleet/coordinator/pkg/discovery"
	"github.com/rvfleet/coordinator/pkg/events"
	"github.com/rvfleet/coordinator/pkg/log"
	"github.com/rvfleet/coordinator/pkg/netprobe"
	"github.com/rvfleet/coordinator/pkg/registry"
	"github.com/rvfleet/coordinator/pkg/transport"
	"github.com/rvfleet/coordinator/pkg/wire"
)

// Coordinator owns the address probe, discovery responder, session
// server and liveness monitor for one process, and dispatches session
// frames into the registry and the event bus.
type Coordinator struct {
	config Config

	registry   *registry.Registry
	monitor    *registry.Monitor
	server     *transport.Server
	responder  *discovery.Responder
	advertiser *discovery.Advertiser
	bus        *events.Bus
	diagLog    *log.FileLogger

	address string

	connTargets   map[string]string
	connTargetsMu sync.Mutex

	cancel context.CancelFunc
}

// New creates a Coordinator. It does nothing on the network until
// Start is called.
func New(config Config) *Coordinator {
	config.applyDefaults()
	return &Coordinator{
		config:      config,
		bus:         events.New(),
		connTargets: make(map[string]string),
	}
}

// Start probes the coordinator's address, binds the UDP and TCP
// ports, and begins the liveness monitor, all under ctx. Start
// returns once every activity has tried to bind its socket(s); each
// runs in its own background goroutine until Stop is called or ctx is
// cancelled. A session server bind failure is returned as an error; a
// discovery responder bind failure is logged and the other activities
// keep running.
func (c *Coordinator) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	logger := c.config.Logger
	if c.config.DiagnosticLogPath != "" {
		fileLogger, err := log.NewFileLogger(c.config.DiagnosticLogPath)
		if err != nil {
			cancel()
			return fmt.Errorf("coordinator: open diagnostic log: %w", err)
		}
		c.diagLog = fileLogger
		logger = log.NewMultiLogger(logger, fileLogger)
		c.config.Logger = logger
	}
	c.bus.SetLogger(logger)

	probeAddress := c.config.ProbeAddress
	if probeAddress == nil {
		probeAddress = func() string { return netprobe.Probe(logger) }
	}
	c.address = probeAddress()

	c.registry = registry.New(c.config.Clock)

	c.server = transport.NewServer(transport.ServerConfig{
		Address:      fmt.Sprintf(":%d", c.config.TCPPort),
		MaxFrameSize: c.config.MaxFrameSize,
		KeepAlive:    c.config.KeepAlive,
		Logger:       logger,
		OnConnect:    c.onConnect,
		OnDisconnect: c.onDisconnect,
		OnFrame:      c.onFrame,
		OnError:      c.onError,
	})
	if err := c.server.Start(ctx); err != nil {
		cancel()
		return fmt.Errorf("coordinator: start session server: %w", err)
	}

	tcpAddr, ok := c.server.Addr().(*net.TCPAddr)
	if !ok {
		c.server.Stop()
		cancel()
		return fmt.Errorf("coordinator: session server bound a non-TCP address")
	}
	tcpPort := tcpAddr.Port

	c.responder = discovery.NewResponder(discovery.ResponderConfig{
		Port:         c.config.UDPPort,
		ProbeAddress: func() string { return c.address },
		TCPPort:      tcpPort,
		Logger:       logger,
	})
	if err := c.responder.Start(ctx); err != nil {
		c.onError(nil, fmt.Errorf("coordinator: start discovery responder: %w", err))
	}

	c.monitor = registry.NewMonitor(c.registry, registry.MonitorConfig{
		ScanInterval: c.config.HeartbeatScanInterval,
		Timeout:      c.config.HeartbeatTimeout,
		OnEvict:      c.onEvict,
	})
	c.monitor.Start(ctx)

	if c.config.Advertise {
		c.advertiser = &discovery.Advertiser{}
		if err := c.advertiser.Advertise(c.config.InstanceName, tcpPort); err != nil {
			c.onError(nil, fmt.Errorf("mdns advertise: %w", err))
		}
	}

	return nil
}

// Stop ends every activity and waits for their goroutines to exit.
func (c *Coordinator) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	if c.advertiser != nil {
		c.advertiser.Shutdown()
	}
	if c.monitor != nil {
		c.monitor.Stop()
	}
	if c.responder != nil {
		c.responder.Stop()
	}
	var err error
	if c.server != nil {
		err = c.server.Stop()
	}
	if c.diagLog != nil {
		c.diagLog.Close()
	}
	return err
}

// Addr returns the session server's bound TCP address, useful in
// tests that bind an ephemeral port.
func (c *Coordinator) Addr() net.Addr {
	return c.server.Addr()
}

// GetDevices returns a point-in-time snapshot of every bound device.
func (c *Coordinator) GetDevices() map[string]registry.DeviceSnapshot {
	return c.registry.GetDevices()
}

// Subscribe registers handler to receive every published event, on
// its own worker goroutine. The returned func unsubscribes.
func (c *Coordinator) Subscribe(handler events.Handler) func() {
	return c.bus.SubscribeFunc(events.DefaultBufferSize, handler)
}

// SendCommand relays a command frame to the controller bound to
// targetID. It returns registry.ErrNotConnected if no session is
// bound, or a transport.ErrWrite-wrapped error if the write fails.
func (c *Coordinator) SendCommand(targetID, deviceType, label, state string) error {
	session, ok := c.registry.Connection(targetID)
	if !ok {
		return fmt.Errorf("coordinator: send command to %s: %w", targetID, registry.ErrNotConnected)
	}

	msg := wire.NewCommandMessage(targetID, deviceType, label, state)
	// Send appends the '\n' terminator itself.
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("coordinator: encode command: %w", err)
	}

	if err := session.Send(data); err != nil {
		return fmt.Errorf("coordinator: send command to %s: %w", targetID, err)
	}
	return nil
}

func (c *Coordinator) targetFor(connID string) string {
	c.connTargetsMu.Lock()
	defer c.connTargetsMu.Unlock()
	return c.connTargets[connID]
}

func (c *Coordinator) setTarget(connID, targetID string) {
	c.connTargetsMu.Lock()
	defer c.connTargetsMu.Unlock()
	c.connTargets[connID] = targetID
}

func (c *Coordinator) clearTarget(connID string) {
	c.connTargetsMu.Lock()
	defer c.connTargetsMu.Unlock()
	delete(c.connTargets, connID)
}
