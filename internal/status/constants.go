// internal/status/constants.go
package status

// ---- HEALTH CODES ----

// HealthUnknown represents an unknown or boot state.
const HealthUnknown uint16 = 0

// HealthOK represents a healthy device.
const HealthOK uint16 = 1

// HealthError represents a device error state.
const HealthError uint16 = 2

// HealthStale represents a device whose last good cycle is older than the
// stale window.
const HealthStale uint16 = 3

// HealthDisabled represents a device that failed initialization for good.
const HealthDisabled uint16 = 4

// ---- ERROR CODES ----

// Codes 1..255 are Modbus exception codes passed through from the device.
// Everything the device did not report itself lives above that range.

// CodeNone means no error.
const CodeNone uint16 = 0

// CodeGeneric is any error without a more specific code.
const CodeGeneric uint16 = 0x0100

// CodeTimeout is a request or cycle that ran out of time.
const CodeTimeout uint16 = 0x0101

// CodeGroupTooLarge is a group whose span exceeds the request limit.
const CodeGroupTooLarge uint16 = 0x0102

// CodeInitFailed is a failed first-read initialization.
const CodeInitFailed uint16 = 0x0103

// SecondsInErrorMax caps the seconds-in-error counter.
const SecondsInErrorMax uint16 = 65535

// HealthName returns the lower-case name of a health code.
func HealthName(h uint16) string {
	switch h {
	case HealthOK:
		return "ok"
	case HealthError:
		return "error"
	case HealthStale:
		return "stale"
	case HealthDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}
