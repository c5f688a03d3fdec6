// internal/poller/errors.go
package poller

import (
	"errors"
	"fmt"
)

var (
	ErrDeviceInit     = errors.New("poller: device initialization failed")
	ErrNoConfigPoints = errors.New("poller: device has no config points")
)

// DeviceInitError is a failed first-read hook. It is permanent: the device
// stays in this state until it is rebuilt.
type DeviceInitError struct {
	Device string
	Err    error
}

func (e *DeviceInitError) Error() string {
	return fmt.Sprintf("poller: device %q initialization failed: %v", e.Device, e.Err)
}

func (e *DeviceInitError) Unwrap() error        { return e.Err }
func (e *DeviceInitError) Is(target error) bool { return target == ErrDeviceInit }
