// Package events is the coordinator's publish/subscribe bus: the
// MessageReceived and DeviceDisconnected notifications the session
// layer and the liveness monitor raise, delivered over channels
// rather than synchronous callbacks.
//
// A synchronous delegate model would let a slow or panicking
// subscriber block the very session reader that produced the event.
// Instead, each subscriber gets its own buffered channel and worker
// goroutine; Publish never blocks on a subscriber, and a panicking
// handler is recovered and logged rather than taking down the bus.
package events
