package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/rvfleet/coordinator/pkg/log"
	"github.com/rvfleet/coordinator/pkg/wire"
	"golang.org/x/sys/unix"
)

// readBufferSize bounds a single incoming announce datagram. UDP
// datagrams on a LAN are always far smaller than this.
const readBufferSize = 2048

// ResponderConfig configures the UDP discovery responder.
type ResponderConfig struct {
	// Port is the UDP port to bind (default 5000).
	Port int

	// ProbeAddress returns the coordinator's own IPv4 address to put
	// in the ack's server_ip field.
	ProbeAddress func() string

	// TCPPort is the coordinator's session server port, put in the
	// ack's tcp_port field.
	TCPPort int

	// Logger for protocol logging (optional).
	Logger log.Logger
}

// Responder answers UDP announce datagrams with an ack carrying the
// coordinator's IPv4 address and TCP port. It is stateless and
// idempotent: no per-peer bookkeeping is kept here.
type Responder struct {
	config ResponderConfig
	conn   *net.UDPConn

	closing bool
	mu      sync.Mutex

	wg sync.WaitGroup
}

// NewResponder creates a new discovery responder. It does not bind
// until Start is called.
func NewResponder(config ResponderConfig) *Responder {
	if config.Port == 0 {
		config.Port = 5000
	}
	return &Responder{config: config}
}

// Start binds the UDP port with address reuse and broadcast enabled,
// and begins answering announce datagrams. Bind failure is returned
// to the caller; it is fatal for this component only, never for the
// process.
func (r *Responder) Start(ctx context.Context) error {
	lc := net.ListenConfig{Control: setReuseAddrAndBroadcast}
	rawConn, err := lc.ListenPacket(ctx, "udp", fmt.Sprintf(":%d", r.config.Port))
	if err != nil {
		return fmt.Errorf("discovery: bind udp port %d: %w", r.config.Port, err)
	}
	conn, ok := rawConn.(*net.UDPConn)
	if !ok {
		rawConn.Close()
		return fmt.Errorf("discovery: bind udp port %d: expected a UDP connection", r.config.Port)
	}
	r.conn = conn

	r.wg.Add(1)
	go r.receiveLoop(ctx)
	return nil
}

// setReuseAddrAndBroadcast sets SO_REUSEADDR (so the responder can
// rebind immediately after a restart) and SO_BROADCAST (so a reply
// can be sent to a peer discovered via a broadcast announce) on the
// listening socket.
func setReuseAddrAndBroadcast(network, address string, c syscall.RawConn) error {
	var sockErr error
	ctrlErr := c.Control(func(fd uintptr) {
		if sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); sockErr != nil {
			return
		}
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	})
	if ctrlErr != nil {
		return ctrlErr
	}
	return sockErr
}

// Addr returns the responder's bound UDP address. Only meaningful
// after a successful Start.
func (r *Responder) Addr() net.Addr {
	return r.conn.LocalAddr()
}

// Stop closes the UDP socket and waits for the receive loop to exit.
func (r *Responder) Stop() error {
	r.mu.Lock()
	r.closing = true
	r.mu.Unlock()

	var err error
	if r.conn != nil {
		err = r.conn.Close()
	}
	r.wg.Wait()
	return err
}

func (r *Responder) receiveLoop(ctx context.Context) {
	defer r.wg.Done()

	buf := make([]byte, readBufferSize)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, peer, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			if r.isClosing() || errors.Is(err, net.ErrClosed) {
				return
			}
			r.logError("receive", err)
			continue
		}

		r.handleDatagram(buf[:n], peer)
	}
}

func (r *Responder) isClosing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closing
}

func (r *Responder) handleDatagram(data []byte, peer *net.UDPAddr) {
	announce, err := wire.DecodeAnnounce(data)
	if err != nil {
		r.logError("decode announce", err)
		return
	}

	ack, err := wire.EncodeAck(r.config.ProbeAddress(), r.config.TCPPort)
	if err != nil {
		r.logError("encode ack", err)
		return
	}

	if _, err := r.conn.WriteToUDP(ack, peer); err != nil {
		if r.isClosing() || errors.Is(err, net.ErrClosed) {
			return
		}
		r.logError("send ack", err)
		return
	}

	r.logAck(announce.TargetID, peer)
}

func (r *Responder) logError(context string, err error) {
	if r.config.Logger == nil {
		return
	}
	r.config.Logger.Log(log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerDiscovery,
		Category:  log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   log.LayerDiscovery,
			Message: err.Error(),
			Context: context,
		},
	})
}

func (r *Responder) logAck(targetID string, peer *net.UDPAddr) {
	if r.config.Logger == nil {
		return
	}
	r.config.Logger.Log(log.Event{
		Timestamp:  time.Now(),
		Direction:  log.DirectionOut,
		Layer:      log.LayerDiscovery,
		Category:   log.CategoryMessage,
		RemoteAddr: peer.String(),
		TargetID:   targetID,
		Message: &log.MessageEvent{
			Kind:     wire.KindAck,
			Accepted: true,
		},
	})
}
