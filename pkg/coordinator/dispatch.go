package coordinator

import (
	"time"

	"github.com/rvfleet/coordinator/pkg/events"
	"github.com/rvfleet/coordinator/pkg/log"
	"github.com/rvfleet/coordinator/pkg/registry"
	"github.com/rvfleet/coordinator/pkg/transport"
	"github.com/rvfleet/coordinator/pkg/wire"
)

func (c *Coordinator) onConnect(conn *transport.ServerConn) {
	// No registry state exists until device_info binds this
	// connection; nothing to do beyond what the transport layer
	// already logged.
}

func (c *Coordinator) onDisconnect(conn *transport.ServerConn) {
	targetID := c.targetFor(conn.ConnID())
	c.clearTarget(conn.ConnID())
	if targetID == "" {
		return
	}

	// RemoveIfSession is a no-op if a newer device_info already
	// superseded this session (Bind closed it and removed it from the
	// map already), so DeviceDisconnected still fires exactly once.
	if _, removed := c.registry.RemoveIfSession(targetID, conn); removed {
		c.bus.Publish(events.NewDeviceDisconnected(targetID))
	}
}

func (c *Coordinator) onFrame(conn *transport.ServerConn, frame []byte) {
	raw, err := wire.DecodeRaw(frame)
	if err != nil {
		c.logFrameError(conn, "decode frame", err)
		return
	}

	targetID := c.targetFor(conn.ConnID())
	c.bus.Publish(events.NewMessageReceived(targetID, raw.Kind, frame))

	// Any frame on a bound session is evidence of life, not just an
	// explicit heartbeat; a peer that only ever sends status_updates
	// would otherwise age out despite being perfectly alive.
	if targetID != "" {
		c.registry.Heartbeat(targetID)
	}

	switch raw.Kind {
	case wire.KindDeviceInfo:
		c.handleDeviceInfo(conn, frame)
	case wire.KindHeartbeat:
		c.handleHeartbeat(conn)
	case wire.KindStatusUpdate:
		c.handleStatusUpdate(conn, frame)
	default:
		c.logFrameError(conn, "dispatch frame", errUnexpectedFrameType(raw.Kind))
	}
}

func (c *Coordinator) handleDeviceInfo(conn *transport.ServerConn, frame []byte) {
	msg, err := wire.DecodeDeviceInfo(frame)
	if err != nil {
		c.logFrameError(conn, "decode device_info", err)
		return
	}

	entries := make([]*registry.DeviceEntry, len(msg.Relays))
	for i, e := range msg.Relays {
		entries[i] = &registry.DeviceEntry{
			ID:         e.ID,
			Label:      e.Label,
			DeviceType: e.DeviceType,
			State:      e.InitialState,
		}
	}

	evictedSession, hadPrior := c.registry.Bind(msg.TargetID, entries, conn)
	c.setTarget(conn.ConnID(), msg.TargetID)

	if hadPrior && evictedSession != nil {
		c.bus.Publish(events.NewDeviceDisconnected(msg.TargetID))
	}
}

func (c *Coordinator) handleHeartbeat(conn *transport.ServerConn) {
	targetID := c.targetFor(conn.ConnID())
	if targetID == "" {
		c.logFrameError(conn, "heartbeat", errNotBound)
		return
	}
	c.registry.Heartbeat(targetID)
}

func (c *Coordinator) handleStatusUpdate(conn *transport.ServerConn, frame []byte) {
	targetID := c.targetFor(conn.ConnID())
	if targetID == "" {
		c.logFrameError(conn, "status_update", errNotBound)
		return
	}

	msg, err := wire.DecodeStatusUpdate(frame)
	if err != nil {
		c.logFrameError(conn, "decode status_update", err)
		return
	}

	if ok := c.registry.UpdateStatus(targetID, msg.Label, msg.ID, msg.State); !ok {
		c.logFrameError(conn, "status_update", errNoMatchingEntry)
	}
}

func (c *Coordinator) onEvict(rec *registry.DeviceRecord) {
	c.clearTarget(rec.Session.ConnID())
	c.bus.Publish(events.NewDeviceDisconnected(rec.TargetID))
}

func (c *Coordinator) onError(conn *transport.ServerConn, err error) {
	connID := ""
	remoteAddr := ""
	if conn != nil {
		connID = conn.ConnID()
		remoteAddr = conn.RemoteAddr().String()
	}
	c.config.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Layer:        log.LayerTransport,
		Category:     log.CategoryError,
		RemoteAddr:   remoteAddr,
		Error: &log.ErrorEventData{
			Layer:   log.LayerTransport,
			Message: err.Error(),
		},
	})
}

func (c *Coordinator) logFrameError(conn *transport.ServerConn, context string, err error) {
	c.config.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: conn.ConnID(),
		Layer:        log.LayerWire,
		Category:     log.CategoryError,
		RemoteAddr:   conn.RemoteAddr().String(),
		Error: &log.ErrorEventData{
			Layer:   log.LayerWire,
			Message: err.Error(),
			Context: context,
		},
	})
}
