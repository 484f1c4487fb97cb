package registry

import (
	"sync"
	"time"

	"github.com/rvfleet/coordinator/pkg/wire"
)

// Registry is the consolidated device/connection table: a single
// mutex over target_id -> *DeviceRecord, replacing what would
// otherwise be two maps (inventory and connections) that could drift
// apart. A DeviceRecord is visible here if and only if its session is
// open and bound.
type Registry struct {
	mu      sync.Mutex
	records map[string]*DeviceRecord
	clock   Clock
}

// New creates an empty registry. A nil clock defaults to SystemClock.
func New(clock Clock) *Registry {
	if clock == nil {
		clock = SystemClock
	}
	return &Registry{
		records: make(map[string]*DeviceRecord),
		clock:   clock,
	}
}

// Bind registers a fresh DeviceRecord for target_id, as a device_info
// frame does. If a record already exists for the same target_id, it
// is superseded: its prior session is closed and returned via
// evictedSession so the caller can log the eviction, and hadPrior
// reports true. last-writer-wins, loser's session closed, per the
// registry's single-mutex atomicity guarantee.
func (r *Registry) Bind(targetID string, entries []*DeviceEntry, session Session) (evictedSession Session, hadPrior bool) {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	prior, exists := r.records[targetID]
	r.records[targetID] = newDeviceRecord(targetID, entries, session, now)

	if exists {
		prior.Session.Close()
		return prior.Session, true
	}
	return nil, false
}

// Heartbeat refreshes last_heartbeat on the bound record for
// target_id. Reports false if no record is bound, in which case the
// caller should ignore the frame per the wire contract.
func (r *Registry) Heartbeat(targetID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[targetID]
	if !ok {
		return false
	}
	rec.LastHeartbeat = r.clock.Now()
	return true
}

// UpdateStatus locates the entry matching label (preferred) or id
// within the bound record's inventory and sets its state. Reports
// false if no record is bound, no entry matches, or the state value is
// out of bounds for the entry's device_type, in which case the caller
// should log and ignore the frame without closing the session.
func (r *Registry) UpdateStatus(targetID, label, id, state string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[targetID]
	if !ok {
		return false
	}
	entry := rec.findEntry(label, id)
	if entry == nil {
		return false
	}
	if !wire.IsValidRelayState(entry.DeviceType, state) {
		return false
	}
	entry.State = state
	return true
}

// Connection returns the session bound to target_id, for
// SendCommand's lookup. Reports ErrNotConnected via the bool return
// when absent.
func (r *Registry) Connection(targetID string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[targetID]
	if !ok {
		return nil, false
	}
	return rec.Session, true
}

// RemoveIfSession removes the record for target_id only if its
// current session is still the one given, and reports whether a
// removal happened. This is how a session's own close path (EOF, I/O
// error, cancellation) evicts its record without racing a concurrent
// device_info that has already superseded it with a new session: the
// superseding Bind call already closed the old session, so by the
// time its read loop observes the error and calls RemoveIfSession, the
// record it would remove is no longer its own.
func (r *Registry) RemoveIfSession(targetID string, session Session) (*DeviceRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[targetID]
	if !ok || rec.Session != session {
		return nil, false
	}
	delete(r.records, targetID)
	return rec, true
}

// Sweep evicts every record whose last_heartbeat is older than
// timeout as of now, closing each session and removing its record
// atomically with respect to RemoveIfSession: a session's own close
// path cannot remove a record the sweep has already taken, and the
// sweep never evicts a record whose session has already been
// superseded, since Bind overwrote it under the same lock.
func (r *Registry) Sweep(timeout time.Duration) []*DeviceRecord {
	cutoff := r.clock.Now().Add(-timeout)

	r.mu.Lock()
	var evicted []*DeviceRecord
	for targetID, rec := range r.records {
		if rec.LastHeartbeat.Before(cutoff) {
			evicted = append(evicted, rec)
			delete(r.records, targetID)
		}
	}
	r.mu.Unlock()

	for _, rec := range evicted {
		rec.Session.Close()
	}
	return evicted
}

// GetDevices returns a point-in-time snapshot of every bound record,
// safe for a caller to retain without holding the registry lock.
func (r *Registry) GetDevices() map[string]DeviceSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]DeviceSnapshot, len(r.records))
	for targetID, rec := range r.records {
		out[targetID] = rec.snapshot()
	}
	return out
}

// Len reports the number of currently-bound records.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}
