// internal/planner/planner.go
package planner

import (
	"errors"
	"fmt"
)

// MaxRegisters is the Modbus limit for one read-registers request (FC 3/4).
const MaxRegisters = 125

// ErrGroupTooLarge is matched by *GroupTooLargeError.
var ErrGroupTooLarge = errors.New("planner: group too large")

// GroupTooLargeError names the group whose span does not fit one request.
// The schema must be split by the caller; the planner never auto-splits.
type GroupTooLargeError struct {
	Group string
	Start uint16
	Count int
	Max   int
}

func (e *GroupTooLargeError) Error() string {
	return fmt.Sprintf(
		"planner: group %q spans %d registers from %d (max %d per request)",
		e.Group, e.Count, e.Start, e.Max,
	)
}

func (e *GroupTooLargeError) Is(target error) bool { return target == ErrGroupTooLarge }

// Extent is the register geometry of one data point.
type Extent struct {
	Address uint16
	Length  int
}

// Range is one contiguous read. Count == 0 means nothing to read.
type Range struct {
	Start uint16
	Count uint16
}

// Empty reports whether the range produces no I/O.
func (r Range) Empty() bool { return r.Count == 0 }

// Offset returns the index of address inside the words returned for r.
func (r Range) Offset(address uint16) int { return int(address) - int(r.Start) }

// Plan computes the contiguous span covering all extents.
//
// Gaps between extents are part of the read. Extents must be disjoint;
// the span is min(address) .. max(address+length), not the sum of lengths.
func Plan(group string, extents []Extent, limit int) (Range, error) {
	if limit <= 0 || limit > MaxRegisters {
		limit = MaxRegisters
	}

	start := -1
	end := 0
	for _, e := range extents {
		if e.Length <= 0 {
			continue
		}
		a := int(e.Address)
		if start < 0 || a < start {
			start = a
		}
		if a+e.Length > end {
			end = a + e.Length
		}
	}

	if start < 0 {
		return Range{}, nil
	}

	count := end - start
	if count > limit {
		return Range{}, &GroupTooLargeError{
			Group: group,
			Start: uint16(start),
			Count: count,
			Max:   limit,
		}
	}

	return Range{Start: uint16(start), Count: uint16(count)}, nil
}
