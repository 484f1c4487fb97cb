package wire

import (
	"encoding/json"
	"errors"
)

// EncodeFrame marshals v to compact JSON and appends the newline
// terminator the session layer frames on.
func EncodeFrame(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// EncodeAck builds the UDP reply to an announce datagram.
func EncodeAck(serverIP string, tcpPort int) ([]byte, error) {
	return json.Marshal(AckMessage{
		Type:     KindAck,
		ServerIP: serverIP,
		TCPPort:  tcpPort,
	})
}

// DecodeAnnounce decodes a UDP announce datagram.
func DecodeAnnounce(data []byte) (*AnnounceMessage, error) {
	var m AnnounceMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, m.Validate()
}

// DecodeDeviceInfo decodes a device_info frame.
func DecodeDeviceInfo(data []byte) (*DeviceInfoMessage, error) {
	var m DeviceInfoMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, m.Validate()
}

// DecodeStatusUpdate decodes a status_update frame.
func DecodeStatusUpdate(data []byte) (*StatusUpdateMessage, error) {
	var m StatusUpdateMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, m.Validate()
}

// RawFrame carries a frame's classified type alongside the original
// bytes and a generic decode of its fields, for the MessageReceived
// event and for callers that want the raw map before a typed decode.
type RawFrame struct {
	Kind MessageKind
	Data []byte
	Raw  map[string]any
}

// DecodeRaw classifies a frame and decodes it into an untyped map,
// used to publish MessageReceived before any typed decode happens.
func DecodeRaw(data []byte) (*RawFrame, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	kindVal, _ := raw["type"].(string)
	if kindVal == "" {
		return nil, errMissingType
	}
	return &RawFrame{Kind: MessageKind(kindVal), Data: data, Raw: raw}, nil
}

var errMissingType = errors.New("frame missing \"type\" field")
