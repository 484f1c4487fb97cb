package registry

import "errors"

// ErrNotConnected is returned by Coordinator.SendCommand when no
// session is currently bound to a target_id. Registry.Connection
// reports the same condition as a false bool.
var ErrNotConnected = errors.New("registry: not connected")
