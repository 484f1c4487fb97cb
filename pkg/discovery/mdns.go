package discovery

import (
	"fmt"
	"sync"

	"github.com/enbility/zeroconf/v3"
)

// ServiceType is the mDNS service type the coordinator advertises
// itself under. This is purely for human-facing LAN tooling (the
// dashboard, coordinator-cli) to find the TCP port without prior
// knowledge of the default; controllers never consult it.
const ServiceType = "_rvcoordinator._tcp"

// Advertiser registers (and unregisters) the coordinator's mDNS
// service. Failure is always non-fatal: the UDP announce/ack
// handshake remains the only interface controllers rely on.
type Advertiser struct {
	mu     sync.Mutex
	server *zeroconf.Server
}

// Advertise registers the mDNS service for the coordinator's TCP
// port. instanceName should be unique on the LAN, e.g. a hostname.
func (a *Advertiser) Advertise(instanceName string, tcpPort int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	server, err := zeroconf.Register(instanceName, ServiceType, "local.", tcpPort, nil, nil)
	if err != nil {
		return fmt.Errorf("discovery: mdns register: %w", err)
	}
	a.server = server
	return nil
}

// Shutdown unregisters the mDNS service. Safe to call when no service
// was ever registered.
func (a *Advertiser) Shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}
