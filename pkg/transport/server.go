package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rvfleet/coordinator/pkg/log"
	"golang.org/x/sys/unix"
)

// ErrWrite wraps any I/O failure writing a frame to a peer, so callers
// can errors.Is against it instead of string-matching.
var ErrWrite = errors.New("transport: write failed")

// ServerConfig configures a Server.
type ServerConfig struct {
	// Address to listen on (e.g., ":5001").
	Address string

	// MaxFrameSize bounds a single frame (default: DefaultMaxFrameSize).
	MaxFrameSize int

	// KeepAlive configures per-socket TCP keep-alive. Zero value means
	// DefaultKeepAliveConfig().
	KeepAlive KeepAliveConfig

	// Logger for protocol logging (optional).
	Logger log.Logger

	// OnConnect is called when a new connection is accepted.
	OnConnect func(conn *ServerConn)

	// OnDisconnect is called when a connection's read loop ends.
	OnDisconnect func(conn *ServerConn)

	// OnFrame is called for every successfully parsed frame, before any
	// caller-side state mutation.
	OnFrame func(conn *ServerConn, frame []byte)

	// OnError is called for per-connection errors (not fatal to the
	// server). conn is nil for accept-loop errors.
	OnError func(conn *ServerConn, err error)
}

// Server accepts TCP connections and frames newline-delimited JSON
// messages from each.
type Server struct {
	config   ServerConfig
	listener *net.TCPListener

	conns   map[*ServerConn]struct{}
	connsMu sync.RWMutex

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewServer creates a new Server. It does not start listening.
func NewServer(config ServerConfig) *Server {
	if config.MaxFrameSize == 0 {
		config.MaxFrameSize = DefaultMaxFrameSize
	}
	if config.KeepAlive == (KeepAliveConfig{}) {
		config.KeepAlive = DefaultKeepAliveConfig()
	}
	return &Server{
		config: config,
		conns:  make(map[*ServerConn]struct{}),
	}
}

// Start binds the listener and begins accepting connections.
// Start returns once the listener is bound; the accept loop runs in a
// background goroutine until Stop is called.
func (s *Server) Start(ctx context.Context) error {
	if s.running.Load() {
		return fmt.Errorf("transport: server already running")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	lc := net.ListenConfig{Control: setReuseAddr}
	rawListener, err := lc.Listen(s.ctx, "tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("transport: listen: %w", err)
	}
	listener, ok := rawListener.(*net.TCPListener)
	if !ok {
		rawListener.Close()
		return fmt.Errorf("transport: listen: expected a TCP listener")
	}
	s.listener = listener
	s.running.Store(true)

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Stop stops accepting new connections and closes every active one.
func (s *Server) Stop() error {
	if !s.running.Load() {
		return nil
	}
	s.running.Store(false)
	s.cancel()

	if s.listener != nil {
		s.listener.Close()
	}

	s.connsMu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.connsMu.Unlock()

	s.wg.Wait()
	return nil
}

// Addr returns the server's listen address.
func (s *Server) Addr() net.Addr {
	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

// setReuseAddr sets SO_REUSEADDR on the listening socket so the
// server can rebind the same port immediately after a restart instead
// of waiting out TIME_WAIT.
func setReuseAddr(network, address string, c syscall.RawConn) error {
	var sockErr error
	ctrlErr := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if ctrlErr != nil {
		return ctrlErr
	}
	return sockErr
}

// ConnectionCount returns the number of active connections.
func (s *Server) ConnectionCount() int {
	s.connsMu.RLock()
	defer s.connsMu.RUnlock()
	return len(s.conns)
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for s.running.Load() {
		conn, err := s.listener.AcceptTCP()
		if err != nil {
			if s.running.Load() && s.config.OnError != nil {
				s.config.OnError(nil, fmt.Errorf("accept: %w", err))
			}
			continue
		}

		if err := s.config.KeepAlive.Configure(conn); err != nil && s.config.OnError != nil {
			s.config.OnError(nil, fmt.Errorf("keepalive: %w", err))
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()

	connID := uuid.New().String()

	framer := NewFramerWithMaxSize(conn, s.config.MaxFrameSize)
	if s.config.Logger != nil {
		framer.SetLogger(s.config.Logger, connID)
	}

	sconn := &ServerConn{
		conn:       conn,
		framer:     framer,
		server:     s,
		closeCh:    make(chan struct{}),
		remoteAddr: conn.RemoteAddr(),
		connID:     connID,
	}

	if s.config.Logger != nil {
		s.config.Logger.Log(log.Event{
			Timestamp:    time.Now(),
			ConnectionID: connID,
			Layer:        log.LayerTransport,
			Category:     log.CategoryState,
			RemoteAddr:   conn.RemoteAddr().String(),
			StateChange: &log.StateChangeEvent{
				Entity:   log.StateEntityConnection,
				NewState: "OPEN",
			},
		})
	}

	s.connsMu.Lock()
	s.conns[sconn] = struct{}{}
	s.connsMu.Unlock()

	if s.config.OnConnect != nil {
		s.config.OnConnect(sconn)
	}

	sconn.readLoop()

	s.connsMu.Lock()
	delete(s.conns, sconn)
	s.connsMu.Unlock()

	if s.config.Logger != nil {
		s.config.Logger.Log(log.Event{
			Timestamp:    time.Now(),
			ConnectionID: sconn.connID,
			Layer:        log.LayerTransport,
			Category:     log.CategoryState,
			RemoteAddr:   conn.RemoteAddr().String(),
			StateChange: &log.StateChangeEvent{
				Entity:   log.StateEntityConnection,
				OldState: "OPEN",
				NewState: "CLOSED",
			},
		})
	}

	if s.config.OnDisconnect != nil {
		s.config.OnDisconnect(sconn)
	}
}

// ServerConn represents one accepted controller connection.
type ServerConn struct {
	conn       net.Conn
	framer     *Framer
	server     *Server
	closeCh    chan struct{}
	closeOnce  sync.Once
	remoteAddr net.Addr
	connID     string

	writeMu sync.Mutex
}

// RemoteAddr returns the remote address of the peer.
func (c *ServerConn) RemoteAddr() net.Addr {
	return c.remoteAddr
}

// ConnID returns the connection's unique identifier.
func (c *ServerConn) ConnID() string {
	return c.connID
}

// Send writes one frame to the peer, terminated by '\n'.
func (c *ServerConn) Send(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.framer.WriteFrame(data); err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return nil
}

// Close closes the connection. Safe to call more than once.
func (c *ServerConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		err = c.conn.Close()
	})
	return err
}

func (c *ServerConn) readLoop() {
	for {
		select {
		case <-c.closeCh:
			return
		case <-c.server.ctx.Done():
			return
		default:
		}

		frame, err := c.framer.ReadFrame()
		if err != nil {
			if c.server.config.OnError != nil {
				select {
				case <-c.closeCh:
					// already closing; don't report
				default:
					c.server.config.OnError(c, err)
				}
			}
			return
		}

		if c.server.config.OnFrame != nil {
			c.server.config.OnFrame(c, frame)
		}
	}
}

// Compile-time interface satisfaction checks.
var (
	_ FrameReadWriter = (*Framer)(nil)
)

// FrameReadWriter provides newline-delimited frame I/O.
type FrameReadWriter interface {
	ReadFrame() ([]byte, error)
	WriteFrame(data []byte) error
}
