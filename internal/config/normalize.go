// internal/config/normalize.go
package config

const (
	DefaultTimeoutMs      = 3000
	DefaultIntervalMs     = 300_000
	DefaultFastIntervalMs = 5_000
	DefaultFastCycles     = 5
	DefaultCycleTimeoutMs = 20_000
	DefaultMaxRegisters   = 125

	DefaultLogLevel    = "info"
	DefaultLogFormat   = "console"
	DefaultMetricsPath = "/metrics"
)

// Normalize applies post-validation defaults.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	d := &cfg.Daemon
	if d.Log.Level == "" {
		d.Log.Level = DefaultLogLevel
	}
	if d.Log.Format == "" {
		d.Log.Format = DefaultLogFormat
	}
	if d.Metrics.Path == "" {
		d.Metrics.Path = DefaultMetricsPath
	}

	for i := range cfg.Devices {
		dev := &cfg.Devices[i]

		// ---- source ----
		if dev.Source.Mode == "" {
			dev.Source.Mode = ModeTCP
		}
		if dev.Source.TimeoutMs == 0 {
			dev.Source.TimeoutMs = DefaultTimeoutMs
		}

		// ---- poll ----
		if dev.Poll.IntervalMs == 0 {
			dev.Poll.IntervalMs = DefaultIntervalMs
		}
		if dev.Poll.FastIntervalMs == 0 {
			dev.Poll.FastIntervalMs = DefaultFastIntervalMs
		}
		if dev.Poll.FastCycles == 0 {
			dev.Poll.FastCycles = DefaultFastCycles
		}
		if dev.Poll.CycleTimeoutMs == 0 {
			dev.Poll.CycleTimeoutMs = DefaultCycleTimeoutMs
		}

		if dev.MaxRegisters == 0 {
			dev.MaxRegisters = DefaultMaxRegisters
		}
	}
}
