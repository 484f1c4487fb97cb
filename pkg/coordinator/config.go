package coordinator

import (
	"time"

	"github.com/rvfleet/coordinator/pkg/log"
	"github.com/rvfleet/coordinator/pkg/registry"
	"github.com/rvfleet/coordinator/pkg/transport"
)

// Config configures a Coordinator. Zero values fall back to sensible
// defaults, applied by applyDefaults.
type Config struct {
	// UDPPort is the discovery responder's bind port. Zero defers to
	// discovery.NewResponder's own default of 5000; pkg/config applies
	// that default explicitly for the daemon, leaving 0 available here
	// for tests that want it.
	UDPPort int

	// TCPPort is the session server's bind port. Zero binds an
	// ephemeral port, same as passing ":0" to net.Listen; Addr()
	// reports the one actually chosen. pkg/config applies the
	// documented default of 5001 explicitly for the daemon.
	TCPPort int

	// HeartbeatTimeout is the liveness monitor's eviction threshold
	// (default 60s).
	HeartbeatTimeout time.Duration

	// HeartbeatScanInterval is how often the liveness monitor scans
	// the registry (default 10s).
	HeartbeatScanInterval time.Duration

	// KeepAlive configures per-socket TCP keep-alive on the session
	// server. Zero value means transport.DefaultKeepAliveConfig().
	KeepAlive transport.KeepAliveConfig

	// MaxFrameSize bounds a single session frame (default
	// transport.DefaultMaxFrameSize).
	MaxFrameSize int

	// Logger receives protocol events from every layer. Defaults to
	// log.NoopLogger{} when nil.
	Logger log.Logger

	// DiagnosticLogPath, if set, additionally appends every log.Event
	// to this file, CBOR-encoded, for later replay. Logger keeps
	// receiving every event either way.
	DiagnosticLogPath string

	// Clock overrides the registry's time source; nil means
	// registry.SystemClock. Tests use this to make liveness eviction
	// deterministic.
	Clock registry.Clock

	// ProbeAddress overrides the coordinator's own advertised IPv4
	// address; nil means netprobe.Probe. Tests use this to avoid
	// depending on the host's real network interfaces.
	ProbeAddress func() string

	// Advertise enables the supplemental mDNS service registration.
	// Its failure is never fatal to Start.
	Advertise bool

	// InstanceName is the mDNS instance name when Advertise is set
	// (default "coordinator").
	InstanceName string
}

func (c *Config) applyDefaults() {
	if c.HeartbeatTimeout == 0 {
		c.HeartbeatTimeout = 60 * time.Second
	}
	if c.HeartbeatScanInterval == 0 {
		c.HeartbeatScanInterval = 10 * time.Second
	}
	if c.Logger == nil {
		c.Logger = log.NoopLogger{}
	}
	if c.InstanceName == "" {
		c.InstanceName = "coordinator"
	}
}
