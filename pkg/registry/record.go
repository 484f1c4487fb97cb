package registry

import (
	"net"
	"time"
)

// Session is the subset of a session-layer connection the registry
// needs: enough to address, command, and close the peer without
// depending on the transport package directly.
type Session interface {
	Send(data []byte) error
	Close() error
	RemoteAddr() net.Addr
	ConnID() string
}

// DeviceEntry is one controllable thing declared by a controller, e.g.
// a relay or a button.
type DeviceEntry struct {
	ID         string
	Label      string
	DeviceType string
	State      string
}

// DeviceRecord is everything known about one currently-connected
// controller, keyed by its target_id.
type DeviceRecord struct {
	TargetID string

	// Inventory is the ordered list of entries declared at
	// registration. InventoryByID indexes the same entries by id for
	// O(1) lookup; both slices and map always point at the same
	// *DeviceEntry values.
	Inventory     []*DeviceEntry
	InventoryByID map[string]*DeviceEntry

	LastHeartbeat time.Time
	Session       Session
}

func newDeviceRecord(targetID string, entries []*DeviceEntry, session Session, now time.Time) *DeviceRecord {
	byID := make(map[string]*DeviceEntry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}
	return &DeviceRecord{
		TargetID:      targetID,
		Inventory:     entries,
		InventoryByID: byID,
		LastHeartbeat: now,
		Session:       session,
	}
}

// findEntry locates an entry by label or id, label taking precedence
// when both happen to be supplied, matching the lookup order spec'd
// for status_update frames.
func (r *DeviceRecord) findEntry(label, id string) *DeviceEntry {
	if label != "" {
		for _, e := range r.Inventory {
			if e.Label == label {
				return e
			}
		}
		return nil
	}
	return r.InventoryByID[id]
}

// snapshot copies the record's entries into an independent value safe
// for a caller to retain past the registry's lock.
func (r *DeviceRecord) snapshot() DeviceSnapshot {
	entries := make([]DeviceEntry, len(r.Inventory))
	for i, e := range r.Inventory {
		entries[i] = *e
	}
	return DeviceSnapshot{
		TargetID:      r.TargetID,
		Inventory:     entries,
		LastHeartbeat: r.LastHeartbeat,
	}
}

// DeviceSnapshot is a point-in-time, independently-owned copy of a
// DeviceRecord's inventory, safe to hand to external callers (the
// dashboard, the CLI) without holding the registry lock.
type DeviceSnapshot struct {
	TargetID      string
	Inventory     []DeviceEntry
	LastHeartbeat time.Time
}
