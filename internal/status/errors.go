// internal/status/errors.go
package status

import (
	"errors"

	"github.com/goburrow/modbus"

	"github.com/tamzrod/modbus-devices/internal/engine"
	"github.com/tamzrod/modbus-devices/internal/planner"
	"github.com/tamzrod/modbus-devices/internal/poller"
)

// ErrorCode extracts a best-effort uint16 code from a cycle error.
// Device exceptions pass through verbatim; anything else maps to a code
// above the exception range. Returns CodeGeneric if nothing matches.
func ErrorCode(err error) uint16 {
	if err == nil {
		return CodeNone
	}

	var mbErr *modbus.ModbusError
	if errors.As(err, &mbErr) {
		return uint16(mbErr.ExceptionCode)
	}
	if errors.Is(err, poller.ErrDeviceInit) {
		return CodeInitFailed
	}
	if engine.IsTimeout(err) {
		return CodeTimeout
	}
	if errors.Is(err, planner.ErrGroupTooLarge) {
		return CodeGroupTooLarge
	}

	type timeout interface{ Timeout() bool }
	var t timeout
	if errors.As(err, &t) && t.Timeout() {
		return CodeTimeout
	}

	return CodeGeneric
}
