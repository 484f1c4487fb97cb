package events

import "github.com/rvfleet/coordinator/pkg/wire"

// Kind identifies which of the two core notifications an Event
// carries.
type Kind int

const (
	MessageReceived Kind = iota
	DeviceDisconnected
)

// Event is the single type flowing through the bus. Only the fields
// relevant to Kind are populated.
type Event struct {
	Kind Kind

	// TargetID is set on every event once a session is bound; it may
	// be empty for a MessageReceived fired on a not-yet-bound session
	// (e.g. the device_info frame that performs the binding itself).
	TargetID string

	// MessageKind and Raw are set on MessageReceived: the frame's
	// classified type and its original bytes, published before any
	// registry mutation caused by the frame.
	MessageKind wire.MessageKind
	Raw         []byte
}

// NewMessageReceived builds a MessageReceived event for a frame that
// has been classified but not yet applied to the registry.
func NewMessageReceived(targetID string, kind wire.MessageKind, raw []byte) Event {
	return Event{Kind: MessageReceived, TargetID: targetID, MessageKind: kind, Raw: raw}
}

// NewDeviceDisconnected builds a DeviceDisconnected event. Callers
// must ensure this fires only after the record has been removed from
// the registry and its session closed.
func NewDeviceDisconnected(targetID string) Event {
	return Event{Kind: DeviceDisconnected, TargetID: targetID}
}
