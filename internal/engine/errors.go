// internal/engine/errors.go
package engine

import (
	"errors"
	"fmt"
)

var (
	ErrModbusRead   = errors.New("engine: modbus read failed")
	ErrModbusWrite  = errors.New("engine: modbus write failed")
	ErrReadOnly     = errors.New("engine: point is not writable")
	ErrVirtualGroup = errors.New("engine: group has no transport")
	ErrShortRead    = errors.New("engine: short read")
)

// ReadError wraps a transport or protocol failure with the group it hit.
// Key is empty for whole-group reads.
type ReadError struct {
	Group string
	Key   string
	Start uint16
	Count uint16
	Err   error
}

func (e *ReadError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("engine: read %s/%s (addr=%d qty=%d): %v", e.Group, e.Key, e.Start, e.Count, e.Err)
	}
	return fmt.Sprintf("engine: read group %s (addr=%d qty=%d): %v", e.Group, e.Start, e.Count, e.Err)
}

func (e *ReadError) Unwrap() error        { return e.Err }
func (e *ReadError) Is(target error) bool { return target == ErrModbusRead }

// WriteError wraps a transport or protocol failure with the point it hit.
type WriteError struct {
	Group   string
	Key     string
	Address uint16
	Err     error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("engine: write %s/%s (addr=%d): %v", e.Group, e.Key, e.Address, e.Err)
}

func (e *WriteError) Unwrap() error        { return e.Err }
func (e *WriteError) Is(target error) bool { return target == ErrModbusWrite }
