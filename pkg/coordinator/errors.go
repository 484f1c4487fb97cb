package coordinator

import (
	"errors"
	"fmt"

	"github.com/rvfleet/coordinator/pkg/wire"
)

var (
	errNotBound        = errors.New("frame requires a bound session; device_info not yet received")
	errNoMatchingEntry = errors.New("no record bound, or no inventory entry matched label/id")
)

func errUnexpectedFrameType(kind wire.MessageKind) error {
	return fmt.Errorf("unexpected frame type %q", kind)
}
