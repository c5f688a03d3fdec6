// internal/config/config.go
package config

type Config struct {
	Daemon  DaemonConfig   `yaml:"daemon"`
	Devices []DeviceConfig `yaml:"devices"`
}

// ---- DAEMON ----

type DaemonConfig struct {
	// ModelsDir holds optional YAML model files registered next to the
	// built-in drivers.
	ModelsDir string `yaml:"models_dir"`

	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`

	// StatusFile, when set, receives a YAML dump of every device's health
	// snapshot on shutdown.
	StatusFile string `yaml:"status_file"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // trace|debug|info|warn|error
	Format string `yaml:"format"` // console|json
}

type MetricsConfig struct {
	Listen string `yaml:"listen"` // empty disables the endpoint
	Path   string `yaml:"path"`
}

// ---- DEVICE ----

type DeviceConfig struct {
	Name   string       `yaml:"name"`
	Model  string       `yaml:"model"` // driver id, e.g. Swegon.CASA_R4
	Source SourceConfig `yaml:"source"`
	Poll   PollConfig   `yaml:"poll"`

	// MaxRegisters caps one read request; 0 means the protocol limit.
	MaxRegisters int `yaml:"max_registers"`

	Disabled bool `yaml:"disabled"`
}

// ---- SOURCE ----

type SourceConfig struct {
	Mode      string       `yaml:"mode"` // tcp|rtu
	Endpoint  string       `yaml:"endpoint"`
	Serial    SerialConfig `yaml:"serial"`
	UnitID    uint8        `yaml:"unit_id"`
	TimeoutMs int          `yaml:"timeout_ms"`
}

type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
	DataBits int    `yaml:"data_bits"`
	Parity   string `yaml:"parity"` // N|E|O
	StopBits int    `yaml:"stop_bits"`
}

// ---- POLL ----

type PollConfig struct {
	IntervalMs     int `yaml:"interval_ms"`
	FastIntervalMs int `yaml:"fast_interval_ms"`
	FastCycles     int `yaml:"fast_cycles"`
	CycleTimeoutMs int `yaml:"cycle_timeout_ms"`
}
