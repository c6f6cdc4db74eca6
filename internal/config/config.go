// Package config provides the configuration schema and loader for the
// wake-word server.
package config

// LogLevel controls log verbosity for the server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure. It is typically loaded from a
// YAML file using [Load] or [LoadFromReader]; command-line flags override
// individual fields afterwards.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Wake   WakeConfig   `yaml:"wake"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// URI selects the listening transport: stdio://, tcp://host:port,
	// unix://path, or ws://host:port.
	URI string `yaml:"uri"`

	// DiagAddr is the address of the diagnostics HTTP server serving
	// /metrics, /healthz, and /readyz. Empty disables diagnostics.
	DiagAddr string `yaml:"diag_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// WakeConfig holds detector and keyword-discovery settings.
type WakeConfig struct {
	// AccessKey is the credential handed to the native detection library.
	AccessKey string `yaml:"access_key"`

	// Sensitivity trades miss rate against false alarms, in [0, 1].
	// Applied to every detector this server builds.
	Sensitivity float32 `yaml:"sensitivity"`

	// DataDir is the directory holding language libraries (lib/common) and
	// built-in keyword models (resources).
	DataDir string `yaml:"data_dir"`

	// CustomKeywordDirs lists extra directories scanned for custom keyword
	// model files.
	CustomKeywordDirs []string `yaml:"custom_keyword_dirs"`

	// System filters keyword models by platform tag ("linux" or
	// "raspberry-pi"). Empty means auto-detect from the machine.
	System string `yaml:"system"`
}

// Defaults returns a Config populated with the built-in defaults.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			URI:      "stdio://",
			LogLevel: LogInfo,
		},
		Wake: WakeConfig{
			Sensitivity: 0.5,
		},
	}
}
