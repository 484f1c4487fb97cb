package transport_test

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/rvfleet/coordinator/pkg/transport"
)

// TestServerFraming verifies the server delivers framed messages via OnFrame.
func TestServerFraming(t *testing.T) {
	var receivedFrame []byte
	var mu sync.Mutex
	frameReceived := make(chan struct{})

	server := transport.NewServer(transport.ServerConfig{
		Address: "127.0.0.1:0",
		OnFrame: func(conn *transport.ServerConn, frame []byte) {
			mu.Lock()
			receivedFrame = frame
			mu.Unlock()
			close(frameReceived)
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer server.Stop()

	conn, err := net.Dial("tcp", server.Addr().String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	framer := transport.NewFramer(conn)
	testMsg := []byte(`{"type":"heartbeat"}`)
	if err := framer.WriteFrame(testMsg); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	select {
	case <-frameReceived:
		mu.Lock()
		if string(receivedFrame) != string(testMsg) {
			t.Errorf("got %q, want %q", receivedFrame, testMsg)
		}
		mu.Unlock()
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for frame")
	}
}

// TestServerConcurrentConnections verifies the server tracks multiple
// simultaneous connections.
func TestServerConcurrentConnections(t *testing.T) {
	var connCount int
	var mu sync.Mutex

	server := transport.NewServer(transport.ServerConfig{
		Address: "127.0.0.1:0",
		OnConnect: func(_ *transport.ServerConn) {
			mu.Lock()
			connCount++
			mu.Unlock()
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer server.Stop()

	numClients := 5
	var wg sync.WaitGroup
	conns := make([]net.Conn, numClients)

	for i := 0; i < numClients; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			conn, err := net.Dial("tcp", server.Addr().String())
			if err != nil {
				t.Errorf("client %d: dial failed: %v", idx, err)
				return
			}
			conns[idx] = conn
		}(i)
	}
	wg.Wait()

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	if connCount != numClients {
		t.Errorf("expected %d connections, got %d", numClients, connCount)
	}
	mu.Unlock()

	if got := server.ConnectionCount(); got != numClients {
		t.Errorf("expected %d active connections, got %d", numClients, got)
	}

	for _, conn := range conns {
		if conn != nil {
			conn.Close()
		}
	}
}

// TestServerOnDisconnect verifies OnDisconnect fires when the peer closes
// the connection.
func TestServerOnDisconnect(t *testing.T) {
	disconnected := make(chan struct{})

	server := transport.NewServer(transport.ServerConfig{
		Address: "127.0.0.1:0",
		OnDisconnect: func(_ *transport.ServerConn) {
			close(disconnected)
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer server.Stop()

	conn, err := net.Dial("tcp", server.Addr().String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	conn.Close()

	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for disconnect callback")
	}
}

// TestServerStopClosesConnections verifies Stop closes all active
// connections and waits for their read loops to exit.
func TestServerStopClosesConnections(t *testing.T) {
	server := transport.NewServer(transport.ServerConfig{
		Address: "127.0.0.1:0",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	conn, err := net.Dial("tcp", server.Addr().String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	time.Sleep(50 * time.Millisecond)

	if err := server.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if got := server.ConnectionCount(); got != 0 {
		t.Errorf("expected 0 connections after Stop, got %d", got)
	}

	buf := make([]byte, 1)
	conn.SetReadDeadline(time.Now().Add(time.Second))
	if _, err := conn.Read(buf); err == nil {
		t.Error("expected read error after server Stop closed the connection")
	}
}

// TestServerConnSendErrWrite verifies Send wraps write failures with
// ErrWrite so callers can errors.Is against it.
func TestServerConnSendErrWrite(t *testing.T) {
	var serverConn *transport.ServerConn
	connReady := make(chan struct{})

	server := transport.NewServer(transport.ServerConfig{
		Address: "127.0.0.1:0",
		OnConnect: func(c *transport.ServerConn) {
			serverConn = c
			close(connReady)
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer server.Stop()

	conn, err := net.Dial("tcp", server.Addr().String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}

	select {
	case <-connReady:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for OnConnect")
	}

	conn.Close()
	time.Sleep(50 * time.Millisecond)

	if err := serverConn.Send([]byte(`{"type":"command"}`)); !errors.Is(err, transport.ErrWrite) {
		t.Errorf("expected ErrWrite, got %v", err)
	}
}

// TestServerOnErrorReportsReadFailures verifies OnError is invoked when a
// connection's read loop ends with an error, here io.EOF after the peer
// sends an unterminated frame and closes.
func TestServerOnErrorReportsReadFailures(t *testing.T) {
	var gotErr error
	var mu sync.Mutex
	errReceived := make(chan struct{})

	server := transport.NewServer(transport.ServerConfig{
		Address: "127.0.0.1:0",
		OnError: func(_ *transport.ServerConn, err error) {
			mu.Lock()
			defer mu.Unlock()
			if gotErr == nil {
				gotErr = err
				close(errReceived)
			}
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer server.Stop()

	conn, err := net.Dial("tcp", server.Addr().String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}

	// Send an unterminated frame, then close: the server's read loop
	// should observe an error (here, io.EOF via the framer) rather than
	// silently hanging.
	conn.Write([]byte("unterminated frame without newline"))
	conn.Close()

	select {
	case <-errReceived:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for OnError")
	}
}

// TestServerRejectsStartWhileRunning verifies a second Start call fails.
func TestServerRejectsStartWhileRunning(t *testing.T) {
	server := transport.NewServer(transport.ServerConfig{
		Address: "127.0.0.1:0",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Start(ctx); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	defer server.Stop()

	if err := server.Start(ctx); err == nil {
		t.Error("expected error starting an already-running server")
	}
}
