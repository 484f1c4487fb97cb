// Package netprobe resolves the coordinator's own address on the LAN,
// used in the UDP ack's "server_ip" field so controllers know where
// to open the TCP session.
package netprobe

import (
	"net"
	"sync"
	"time"

	"github.com/rvfleet/coordinator/pkg/log"
)

// Loopback is the fallback address returned when no non-loopback IPv4
// address can be found.
const Loopback = "127.0.0.1"

var (
	once   sync.Once
	cached string
)

// Probe returns the first IPv4 unicast address on an operational,
// non-loopback interface, or Loopback if none is found. The result is
// cached for the lifetime of the process; re-probing on interface
// changes is a non-goal. logger, if non-nil, receives a diagnostic
// event on enumeration failure.
func Probe(logger log.Logger) string {
	once.Do(func() {
		cached = probe(logger)
	})
	return cached
}

// interfaceAddrs is a test seam for net.InterfaceAddrs.
var interfaceAddrs = net.InterfaceAddrs

func probe(logger log.Logger) string {
	addrs, err := interfaceAddrs()
	if err != nil {
		logFailure(logger, err)
		return Loopback
	}

	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipnet.IP.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return Loopback
}

func logFailure(logger log.Logger, err error) {
	if logger == nil {
		return
	}
	logger.Log(log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerService,
		Category:  log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   log.LayerService,
			Message: "address probe failed, falling back to loopback",
			Context: err.Error(),
		},
	})
}
