package discovery

import "testing"

func TestAdvertiserShutdownWithoutAdvertiseIsSafe(t *testing.T) {
	a := &Advertiser{}
	a.Shutdown() // must not panic when nothing was ever registered
}

func TestAdvertiserShutdownIsIdempotent(t *testing.T) {
	a := &Advertiser{}
	a.Shutdown()
	a.Shutdown()
}
