package discovery

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/rvfleet/coordinator/pkg/log"
	"github.com/rvfleet/coordinator/pkg/wire"
)

func TestResponderRepliesWithAck(t *testing.T) {
	responder := NewResponder(ResponderConfig{
		Port:         0,
		ProbeAddress: func() string { return "192.168.1.10" },
		TCPPort:      5001,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := responder.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer responder.Stop()

	client, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		t.Fatalf("client listen failed: %v", err)
	}
	defer client.Close()

	announce, _ := json.Marshal(wire.AnnounceMessage{
		Type:     wire.KindAnnounce,
		TargetID: "PicoW1",
		IP:       "192.168.1.50",
	})

	if _, err := client.WriteToUDP(announce, responder.conn.LocalAddr().(*net.UDPAddr)); err != nil {
		t.Fatalf("WriteToUDP failed: %v", err)
	}

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1024)
	n, _, err := client.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("ReadFromUDP failed: %v", err)
	}

	var ack wire.AckMessage
	if err := json.Unmarshal(buf[:n], &ack); err != nil {
		t.Fatalf("unmarshal ack failed: %v", err)
	}
	if ack.Type != wire.KindAck {
		t.Errorf("Type = %q, want %q", ack.Type, wire.KindAck)
	}
	if ack.ServerIP != "192.168.1.10" {
		t.Errorf("ServerIP = %q, want %q", ack.ServerIP, "192.168.1.10")
	}
	if ack.TCPPort != 5001 {
		t.Errorf("TCPPort = %d, want 5001", ack.TCPPort)
	}
}

func TestResponderIgnoresMalformedDatagram(t *testing.T) {
	var loggedErrors int
	responder := NewResponder(ResponderConfig{
		Port:         0,
		ProbeAddress: func() string { return "192.168.1.10" },
		TCPPort:      5001,
		Logger:       countingLogger(&loggedErrors),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := responder.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer responder.Stop()

	client, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		t.Fatalf("client listen failed: %v", err)
	}
	defer client.Close()

	if _, err := client.WriteToUDP([]byte("not json at all"), responder.conn.LocalAddr().(*net.UDPAddr)); err != nil {
		t.Fatalf("WriteToUDP failed: %v", err)
	}

	// A well-formed announce sent afterward must still be answered:
	// one bad datagram never terminates the responder.
	announce, _ := json.Marshal(wire.AnnounceMessage{
		Type:     wire.KindAnnounce,
		TargetID: "PicoW1",
		IP:       "192.168.1.50",
	})
	if _, err := client.WriteToUDP(announce, responder.conn.LocalAddr().(*net.UDPAddr)); err != nil {
		t.Fatalf("WriteToUDP failed: %v", err)
	}

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1024)
	if _, _, err := client.ReadFromUDP(buf); err != nil {
		t.Fatalf("responder did not answer the valid datagram after a malformed one: %v", err)
	}
}

func TestResponderIgnoresWrongTypeDatagram(t *testing.T) {
	var loggedErrors int
	responder := NewResponder(ResponderConfig{
		Port:         0,
		ProbeAddress: func() string { return "192.168.1.10" },
		TCPPort:      5001,
		Logger:       countingLogger(&loggedErrors),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := responder.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer responder.Stop()

	client, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		t.Fatalf("client listen failed: %v", err)
	}
	defer client.Close()

	// A status_update frame happens to carry a target_id-shaped field set
	// too; the responder must not answer it as if it were an announce.
	misdirected, _ := json.Marshal(wire.StatusUpdateMessage{
		Type:  wire.KindStatusUpdate,
		Label: "PicoW1",
		State: "on",
	})
	if _, err := client.WriteToUDP(misdirected, responder.conn.LocalAddr().(*net.UDPAddr)); err != nil {
		t.Fatalf("WriteToUDP failed: %v", err)
	}

	client.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
	buf := make([]byte, 1024)
	if _, _, err := client.ReadFromUDP(buf); err == nil {
		t.Fatal("responder answered a non-announce datagram")
	}
}

func TestResponderStopClosesSocket(t *testing.T) {
	responder := NewResponder(ResponderConfig{
		Port:         0,
		ProbeAddress: func() string { return "127.0.0.1" },
		TCPPort:      5001,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := responder.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		responder.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return promptly")
	}
}

type testLogger struct {
	onLog func()
}

func countingLogger(counter *int) *testLogger {
	return &testLogger{onLog: func() { *counter++ }}
}

func (l *testLogger) Log(_ log.Event) { l.onLog() }
