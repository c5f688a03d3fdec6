// internal/config/validate.go
package config

import (
	"errors"
	"fmt"
	"strings"
)

const (
	ModeTCP = "tcp"
	ModeRTU = "rtu"

	maxUnitID = 247
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	// ------------------------------------------------------------
	// DAEMON
	// ------------------------------------------------------------

	switch strings.ToLower(cfg.Daemon.Log.Level) {
	case "", "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("daemon.log.level %q is not one of trace|debug|info|warn|error", cfg.Daemon.Log.Level)
	}
	switch cfg.Daemon.Log.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("daemon.log.format %q is not one of console|json", cfg.Daemon.Log.Format)
	}
	if p := cfg.Daemon.Metrics.Path; p != "" && !strings.HasPrefix(p, "/") {
		return fmt.Errorf("daemon.metrics.path %q must start with /", p)
	}

	// ------------------------------------------------------------
	// DEVICES
	// ------------------------------------------------------------

	if len(cfg.Devices) == 0 {
		return errors.New("no devices configured")
	}

	names := make(map[string]int, len(cfg.Devices))

	for i, d := range cfg.Devices {
		if d.Name == "" {
			return fmt.Errorf("device #%d: name is required", i)
		}
		if prev, exists := names[d.Name]; exists {
			return fmt.Errorf("device %q: duplicate name (also device #%d)", d.Name, prev)
		}
		names[d.Name] = i

		if d.Model == "" {
			return fmt.Errorf("device %q: model is required", d.Name)
		}

		if err := validateSource(d.Source); err != nil {
			return fmt.Errorf("device %q: %w", d.Name, err)
		}
		if err := validatePoll(d.Poll); err != nil {
			return fmt.Errorf("device %q: %w", d.Name, err)
		}

		if d.MaxRegisters < 0 || d.MaxRegisters > DefaultMaxRegisters {
			return fmt.Errorf("device %q: max_registers %d outside 1..%d", d.Name, d.MaxRegisters, DefaultMaxRegisters)
		}
	}

	return nil
}

func validateSource(s SourceConfig) error {
	switch s.Mode {
	case "", ModeTCP:
		if s.Endpoint == "" {
			return errors.New("source.endpoint is required for tcp")
		}
	case ModeRTU:
		if s.Serial.Port == "" {
			return errors.New("source.serial.port is required for rtu")
		}
		switch s.Serial.Parity {
		case "", "N", "E", "O":
		default:
			return fmt.Errorf("source.serial.parity %q is not one of N|E|O", s.Serial.Parity)
		}
		if s.Serial.BaudRate < 0 || s.Serial.DataBits < 0 || s.Serial.StopBits < 0 {
			return errors.New("source.serial settings must not be negative")
		}
	default:
		return fmt.Errorf("source.mode %q is not one of tcp|rtu", s.Mode)
	}

	if s.UnitID > maxUnitID {
		return fmt.Errorf("source.unit_id %d outside 0..%d", s.UnitID, maxUnitID)
	}
	if s.TimeoutMs < 0 {
		return errors.New("source.timeout_ms must not be negative")
	}
	return nil
}

func validatePoll(p PollConfig) error {
	if p.IntervalMs < 0 || p.FastIntervalMs < 0 || p.FastCycles < 0 || p.CycleTimeoutMs < 0 {
		return errors.New("poll settings must not be negative")
	}

	// Compare the values Normalize will produce.
	interval, fast := p.IntervalMs, p.FastIntervalMs
	if interval == 0 {
		interval = DefaultIntervalMs
	}
	if fast == 0 {
		fast = DefaultFastIntervalMs
	}
	if fast >= interval {
		return fmt.Errorf("poll.fast_interval_ms %d must be below poll.interval_ms %d", fast, interval)
	}
	return nil
}
