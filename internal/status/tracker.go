// internal/status/tracker.go
package status

import (
	"errors"
	"sync"

	"github.com/tamzrod/modbus-devices/internal/poller"
)

// Tracker owns the health snapshot of one device.
// Apply and Tick report whether the snapshot changed so callers only
// publish on change.
type Tracker struct {
	mu   sync.Mutex
	snap Snapshot
}

// NewTracker starts in HealthUnknown with no error.
func NewTracker() *Tracker {
	return &Tracker{snap: Snapshot{Health: HealthUnknown}}
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap
}

// Apply folds one poll result into the snapshot.
func (t *Tracker) Apply(res poller.PollResult) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.snap

	switch {
	case res.Err == nil:
		// Recovery resets the error code and the seconds counter.
		t.snap = Snapshot{Health: HealthOK}

	case errors.Is(res.Err, poller.ErrDeviceInit):
		t.snap.Health = HealthDisabled
		t.snap.LastErrorCode = ErrorCode(res.Err)

	default:
		t.snap.Health = HealthError
		t.snap.LastErrorCode = ErrorCode(res.Err)
		// seconds_in_error increments on Tick only.
	}

	return t.snap != prev
}

// Stale marks a device whose data has gone stale without an explicit error.
func (t *Tracker) Stale() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.snap.Health != HealthOK {
		return false
	}
	t.snap.Health = HealthStale
	return true
}

// Tick advances seconds-in-error by one while the device is not OK.
// Call it at 1 Hz.
func (t *Tracker) Tick() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.snap.Health == HealthOK {
		return false
	}
	if t.snap.SecondsInError >= SecondsInErrorMax {
		return false
	}
	t.snap.SecondsInError++
	return true
}
