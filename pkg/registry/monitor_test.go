package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitorEvictsStaleRecordOnNextTick(t *testing.T) {
	clock := newFakeClock(time.Now())
	r := New(clock)

	session := newFakeSession("s1")
	r.Bind("PicoW1", entries("r1"), session)
	clock.Advance(61 * time.Second)

	var evicted []string
	var mu sync.Mutex
	done := make(chan struct{})

	monitor := NewMonitor(r, MonitorConfig{
		ScanInterval: 20 * time.Millisecond,
		Timeout:      60 * time.Second,
		OnEvict: func(rec *DeviceRecord) {
			mu.Lock()
			evicted = append(evicted, rec.TargetID)
			mu.Unlock()
			close(done)
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	monitor.Start(ctx)
	defer monitor.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for eviction")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, evicted, 1)
	assert.Equal(t, "PicoW1", evicted[0])
	assert.True(t, session.isClosed())
	assert.Equal(t, 0, r.Len())
}

func TestMonitorLeavesFreshRecordsAlone(t *testing.T) {
	clock := newFakeClock(time.Now())
	r := New(clock)
	session := newFakeSession("s1")
	r.Bind("PicoW1", entries("r1"), session)

	evictCount := 0
	var mu sync.Mutex

	monitor := NewMonitor(r, MonitorConfig{
		ScanInterval: 20 * time.Millisecond,
		Timeout:      60 * time.Second,
		OnEvict: func(rec *DeviceRecord) {
			mu.Lock()
			evictCount++
			mu.Unlock()
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	monitor.Start(ctx)
	monitor.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, evictCount)
	assert.False(t, session.isClosed())
}

func TestMonitorStopWaitsForRunLoopExit(t *testing.T) {
	r := New(nil)
	monitor := NewMonitor(r, MonitorConfig{ScanInterval: 10 * time.Millisecond})

	monitor.Start(context.Background())
	// Stop must return only after run() has actually exited; a
	// subsequent Start on a fresh monitor must not race with it.
	monitor.Stop()

	monitor2 := NewMonitor(r, MonitorConfig{ScanInterval: 10 * time.Millisecond})
	monitor2.Start(context.Background())
	monitor2.Stop()
}
