package wire

import (
	"encoding/json"
	"fmt"
)

// MessageKind identifies the top-level "type" field of a frame.
type MessageKind string

const (
	KindAnnounce     MessageKind = "announce"
	KindAck          MessageKind = "ack"
	KindDeviceInfo   MessageKind = "device_info"
	KindHeartbeat    MessageKind = "heartbeat"
	KindStatusUpdate MessageKind = "status_update"
	KindCommand      MessageKind = "command"
)

// RelayOn and RelayOff are the only state values a relay entry may
// hold. Other device types are left open by the data model but no
// value beyond these two is validated today.
const (
	RelayOn  = "on"
	RelayOff = "off"
)

// Envelope is the minimal shape used to sniff a frame's "type" before
// committing to a concrete struct, mirroring the peek-then-decode
// idiom the protocol layer uses throughout.
type Envelope struct {
	Type MessageKind `json:"type"`
}

// PeekKind extracts the "type" field from a raw JSON frame without
// decoding the rest of it.
func PeekKind(data []byte) (MessageKind, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", fmt.Errorf("peek type: %w", err)
	}
	if env.Type == "" {
		return "", fmt.Errorf("peek type: missing \"type\" field")
	}
	return env.Type, nil
}

// AnnounceMessage is sent by a controller over UDP to discover the
// coordinator.
//
//	{ "type": "announce", "target_id": "<id>", "ip": "<peer-ip>" }
type AnnounceMessage struct {
	Type     MessageKind `json:"type"`
	TargetID string      `json:"target_id"`
	IP       string      `json:"ip"`
}

func (m *AnnounceMessage) Validate() error {
	if m.Type != KindAnnounce {
		return fmt.Errorf("announce: unexpected type %q", m.Type)
	}
	if m.TargetID == "" {
		return fmt.Errorf("announce: missing target_id")
	}
	return nil
}

// AckMessage is the coordinator's UDP reply to an AnnounceMessage.
//
//	{ "type": "ack", "server_ip": "<server-ipv4>", "tcp_port": <int> }
type AckMessage struct {
	Type     MessageKind `json:"type"`
	ServerIP string      `json:"server_ip"`
	TCPPort  int         `json:"tcp_port"`
}

// DeviceInfoEntry is one declared controllable entry within a
// device_info frame's "relays" list.
type DeviceInfoEntry struct {
	ID           string `json:"id"`
	Label        string `json:"label"`
	DeviceType   string `json:"device_type"`
	InitialState string `json:"initial_state,omitempty"`
}

// DeviceInfoMessage registers a controller's inventory and binds its
// session to target_id.
//
//	{ "type": "device_info", "target_id": "<id>", "relays": [...] }
//
// A "version" field may be present on the wire; it is accepted and
// ignored on read and never emitted. Reserved for future use.
type DeviceInfoMessage struct {
	Type     MessageKind       `json:"type"`
	TargetID string            `json:"target_id"`
	Relays   []DeviceInfoEntry `json:"relays"`
	Version  any               `json:"version,omitempty"`
}

func (m *DeviceInfoMessage) Validate() error {
	if m.TargetID == "" {
		return fmt.Errorf("device_info: missing target_id")
	}
	if m.Relays == nil {
		return fmt.Errorf("device_info: missing relays")
	}
	return nil
}

// HeartbeatMessage refreshes the liveness timestamp of the session's
// already-bound target_id. It carries no fields of its own; target_id
// is implicit in which session it arrived on.
//
//	{ "type": "heartbeat" }
type HeartbeatMessage struct {
	Type MessageKind `json:"type"`
}

// StatusUpdateMessage reports a runtime state change for one entry in
// the bound session's inventory, matched by label or id.
//
//	{ "type": "status_update", "label": "<label>", "state": "<state>" }
type StatusUpdateMessage struct {
	Type  MessageKind `json:"type"`
	Label string      `json:"label,omitempty"`
	ID    string      `json:"id,omitempty"`
	State string      `json:"state"`
}

func (m *StatusUpdateMessage) Validate() error {
	if m.Label == "" && m.ID == "" {
		return fmt.Errorf("status_update: missing label or id")
	}
	if m.State == "" {
		return fmt.Errorf("status_update: missing state")
	}
	return nil
}

// CommandData is the device_type/label/state payload of a command
// frame sent from the coordinator to a controller.
type CommandData struct {
	DeviceType string `json:"device_type"`
	Label      string `json:"label"`
	State      string `json:"state"`
}

// CommandMessage is the only server-to-client frame shape.
//
//	{ "type": "command", "target_id": "<id>", "data": {...} }
type CommandMessage struct {
	Type     MessageKind `json:"type"`
	TargetID string      `json:"target_id"`
	Data     CommandData `json:"data"`
}

// NewCommandMessage builds a ready-to-encode command frame.
func NewCommandMessage(targetID, deviceType, label, state string) *CommandMessage {
	return &CommandMessage{
		Type:     KindCommand,
		TargetID: targetID,
		Data: CommandData{
			DeviceType: deviceType,
			Label:      label,
			State:      state,
		},
	}
}

// IsValidRelayState reports whether state is one of the two values a
// relay entry may hold. Other device types are left unconstrained.
func IsValidRelayState(deviceType, state string) bool {
	if deviceType != "relay" {
		return true
	}
	return state == RelayOn || state == RelayOff
}
