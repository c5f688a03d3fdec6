// internal/status/snapshot.go
package status

// Snapshot is the current health of one device.
// It contains no logic and no memory of the past beyond current state.
type Snapshot struct {
	Health         uint16 `yaml:"health"`
	LastErrorCode  uint16 `yaml:"last_error_code"`
	SecondsInError uint16 `yaml:"seconds_in_error"`
}
