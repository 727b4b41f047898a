package camera

import (
	"errors"
	"fmt"

	"github.com/cicerolneto/entangle/gphoto"
)

var (
	// ErrNotConnected is returned by operations that need an open device
	// when the session is disconnected
	ErrNotConnected = errors.New("camera is not connected")
)

// DeviceError is returned when the device fails an operation
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("camera %s: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// ProtocolError is returned by WaitEvents when the device reports an event
// kind the session does not handle
type ProtocolError struct {
	Event gphoto.EventType
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("unexpected camera event %s (%d)", e.Event, int(e.Event))
}
