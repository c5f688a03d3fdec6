// internal/poller/types.go
package poller

import (
	"time"

	"github.com/tamzrod/modbus-devices/internal/codec"
	"github.com/tamzrod/modbus-devices/internal/schema"
)

// Config is the scheduling config of one device.
type Config struct {
	Name         string
	Interval     time.Duration
	FastInterval time.Duration

	// FastCycles is the number of cycles fast mode lasts after a write.
	FastCycles int

	// CycleTimeout bounds one whole poll cycle.
	CycleTimeout time.Duration

	// OnWrite, if set, observes every platform write after it completes.
	OnWrite func(key string, err error)
}

const (
	DefaultInterval     = 300 * time.Second
	DefaultFastInterval = 5 * time.Second
	DefaultFastCycles   = 5
	DefaultCycleTimeout = 20 * time.Second
)

// PollResult is the outcome of one poll cycle.
type PollResult struct {
	Device   string
	At       time.Time
	Duration time.Duration

	// First is set on the cycle that ran first-read initialization.
	First bool

	// Fast is set when the cycle ran in fast mode.
	Fast bool

	// Group names the group whose read aborted the cycle.
	Group string
	Err   error // non-nil means the poll cycle failed
}

// PointEvent announces that a point's value or type metadata changed.
type PointEvent struct {
	Group schema.GroupID
	Name  string
	Key   string
	Value codec.Value
}
