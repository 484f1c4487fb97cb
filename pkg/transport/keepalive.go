package transport

import (
	"net"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// KeepAliveConfig configures TCP-level keep-alive on accepted sockets.
type KeepAliveConfig struct {
	// Idle is how long the connection may sit without traffic before the
	// first keep-alive probe is sent.
	Idle time.Duration

	// Interval is the gap between successive probes once idle keep-alive
	// has started. Only honored on platforms where golang.org/x/sys/unix
	// exposes TCP_KEEPINTVL/TCP_KEEPCNT for the connection's file
	// descriptor; elsewhere only Idle takes effect.
	Interval time.Duration
}

// DefaultKeepAliveConfig returns the coordinator's default keep-alive
// tuning: idle ~30s, probe interval ~10s.
func DefaultKeepAliveConfig() KeepAliveConfig {
	return KeepAliveConfig{
		Idle:     30 * time.Second,
		Interval: 10 * time.Second,
	}
}

var (
	probeFallbackOnce    sync.Once
	probeFallbackWarning func(err error)
)

// OnProbeFallback registers a one-time callback invoked the first time
// the probe-interval/count socket options cannot be applied on this
// platform. Intended for startup logging, not per-connection noise.
func OnProbeFallback(fn func(err error)) {
	probeFallbackWarning = fn
}

// Configure applies idle keep-alive via the standard library and, where
// supported, the probe interval/count via golang.org/x/sys/unix. Failure
// to set the finer-grained knobs is never fatal: the connection still
// gets the coarser stdlib-only idle keep-alive.
func (c KeepAliveConfig) Configure(conn *net.TCPConn) error {
	if err := conn.SetKeepAlive(true); err != nil {
		return err
	}
	if err := conn.SetKeepAlivePeriod(c.Idle); err != nil {
		return err
	}

	if err := c.configureProbeInterval(conn); err != nil {
		probeFallbackOnce.Do(func() {
			if probeFallbackWarning != nil {
				probeFallbackWarning(err)
			}
		})
	}
	return nil
}

func (c KeepAliveConfig) configureProbeInterval(conn *net.TCPConn) error {
	rawConn, err := conn.SyscallConn()
	if err != nil {
		return err
	}

	probes := int(c.Idle / c.Interval)
	if probes < 1 {
		probes = 1
	}

	var sockErr error
	ctrlErr := rawConn.Control(func(fd uintptr) {
		if err := unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, int(c.Interval.Seconds())); err != nil {
			sockErr = err
			return
		}
		if err := unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPCNT, probes); err != nil {
			sockErr = err
			return
		}
	})
	if ctrlErr != nil {
		return ctrlErr
	}
	return sockErr
}
