package netprobe

import (
	"errors"
	"net"
	"testing"
)

func TestProbeReturnsFirstNonLoopbackIPv4(t *testing.T) {
	restore := interfaceAddrs
	defer func() { interfaceAddrs = restore }()

	interfaceAddrs = func() ([]net.Addr, error) {
		return []net.Addr{
			&net.IPNet{IP: net.ParseIP("127.0.0.1"), Mask: net.CIDRMask(8, 32)},
			&net.IPNet{IP: net.ParseIP("::1"), Mask: net.CIDRMask(128, 128)},
			&net.IPNet{IP: net.ParseIP("192.168.1.10"), Mask: net.CIDRMask(24, 32)},
		}, nil
	}

	if got := probe(nil); got != "192.168.1.10" {
		t.Errorf("probe() = %q, want %q", got, "192.168.1.10")
	}
}

func TestProbeSkipsIPv6Addresses(t *testing.T) {
	restore := interfaceAddrs
	defer func() { interfaceAddrs = restore }()

	interfaceAddrs = func() ([]net.Addr, error) {
		return []net.Addr{
			&net.IPNet{IP: net.ParseIP("fe80::1"), Mask: net.CIDRMask(64, 128)},
			&net.IPNet{IP: net.ParseIP("10.0.0.5"), Mask: net.CIDRMask(24, 32)},
		}, nil
	}

	if got := probe(nil); got != "10.0.0.5" {
		t.Errorf("probe() = %q, want %q", got, "10.0.0.5")
	}
}

func TestProbeFallsBackToLoopbackOnEnumerationError(t *testing.T) {
	restore := interfaceAddrs
	defer func() { interfaceAddrs = restore }()

	interfaceAddrs = func() ([]net.Addr, error) {
		return nil, errors.New("enumeration failed")
	}

	if got := probe(nil); got != Loopback {
		t.Errorf("probe() = %q, want %q", got, Loopback)
	}
}

func TestProbeFallsBackToLoopbackWhenNoneFound(t *testing.T) {
	restore := interfaceAddrs
	defer func() { interfaceAddrs = restore }()

	interfaceAddrs = func() ([]net.Addr, error) {
		return []net.Addr{
			&net.IPNet{IP: net.ParseIP("127.0.0.1"), Mask: net.CIDRMask(8, 32)},
		}, nil
	}

	if got := probe(nil); got != Loopback {
		t.Errorf("probe() = %q, want %q", got, Loopback)
	}
}
