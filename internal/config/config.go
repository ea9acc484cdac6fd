package config

import (
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server          ServerConfig   `yaml:"server"`
	Database        DatabaseConfig `yaml:"database"`
	Auth            AuthConfig     `yaml:"auth"`
	Hardware        HardwareConfig `yaml:"hardware"`
	Motion          MotionConfig   `yaml:"motion"`
	Ambient         AmbientConfig  `yaml:"ambient"`
	Camera          CameraConfig   `yaml:"camera"`
	Log             LogConfig      `yaml:"log"`
	TickInterval    Duration       `yaml:"tick_interval"`    // Timer expiry check interval
	ShutdownTimeout Duration       `yaml:"shutdown_timeout"` // General shutdown timeout for graceful stops
}

// ServerConfig contains HTTP API server settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig contains JWT and login settings
type AuthConfig struct {
	Secret      string   `yaml:"secret"`       // HS256 signing key, usually ${LAMPD_SECRET}
	TokenTTL    Duration `yaml:"token_ttl"`    // Access token lifetime
	LoginRate   float64  `yaml:"login_rate"`   // Login attempts per second per IP
	LoginBurst  int      `yaml:"login_burst"`  // Login attempt burst per IP
	MinPassword int      `yaml:"min_password"` // Minimum password length
}

// HardwareConfig contains GPIO pin assignments and mode selection.
// Mode "auto" tries real hardware first and falls back to simulation.
type HardwareConfig struct {
	Mode   string `yaml:"mode"` // auto | real | sim
	Chip   string `yaml:"chip"` // GPIO character device, e.g. gpiochip0
	LEDPin int    `yaml:"led_pin"`
	PIRPin int    `yaml:"pir_pin"`
}

// MotionConfig contains motion sensor settings
type MotionConfig struct {
	Enabled      *bool    `yaml:"enabled"`
	Timeout      Duration `yaml:"timeout"`          // Auto-off deadline after motion
	Calibration  Duration `yaml:"calibration_time"` // PIR warm-up window after start
	PollInterval Duration `yaml:"poll_interval"`
}

// IsEnabled returns whether motion automation starts enabled (default: true)
func (c *MotionConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// AmbientConfig contains ambient light sensor (ADC0834 over SPI) settings
type AmbientConfig struct {
	Enabled       bool   `yaml:"enabled"`
	SPIDev        string `yaml:"spi_dev"`        // e.g. /dev/spidev0.0, empty = first available
	DarkThreshold uint8  `yaml:"dark_threshold"` // 0-255, below = dark
}

// CameraConfig contains camera settings
type CameraConfig struct {
	Enabled bool `yaml:"enabled"`
	Index   int  `yaml:"index"` // Device index (0 = /dev/video0)
}

// LogConfig contains logging settings
type LogConfig struct {
	Level   string `yaml:"level"`
	UseJSON bool   `yaml:"json"`
	Colors  bool   `yaml:"colors"`
}

// GetLevel returns the configured log level with default
func (c *LogConfig) GetLevel() string {
	if c.Level == "" {
		return "info"
	}
	return c.Level
}

// GetShutdownTimeout returns the shutdown timeout with default
func (c *Config) GetShutdownTimeout() time.Duration {
	if c.ShutdownTimeout == 0 {
		return 5 * time.Second
	}
	return c.ShutdownTimeout.Duration()
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a configuration with all defaults applied.
// Useful for tests and for running without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}

	if c.Database.Path == "" {
		c.Database.Path = "./lampd.sqlite"
	}

	// Auth defaults
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = Duration(1 * time.Hour)
	}
	if c.Auth.LoginRate == 0 {
		c.Auth.LoginRate = 1.0
	}
	if c.Auth.LoginBurst == 0 {
		c.Auth.LoginBurst = 5
	}
	if c.Auth.MinPassword == 0 {
		c.Auth.MinPassword = 8
	}

	// Hardware defaults - BCM numbering, matches the course wiring:
	// LED on GPIO18 (pin 12), PIR on GPIO27 (pin 13)
	if c.Hardware.Mode == "" {
		c.Hardware.Mode = "auto"
	}
	if c.Hardware.Chip == "" {
		c.Hardware.Chip = "gpiochip0"
	}
	if c.Hardware.LEDPin == 0 {
		c.Hardware.LEDPin = 18
	}
	if c.Hardware.PIRPin == 0 {
		c.Hardware.PIRPin = 27
	}

	// Motion defaults
	if c.Motion.Timeout == 0 {
		c.Motion.Timeout = Duration(10 * time.Second)
	}
	if c.Motion.Calibration == 0 {
		c.Motion.Calibration = Duration(60 * time.Second)
	}
	if c.Motion.PollInterval == 0 {
		c.Motion.PollInterval = Duration(250 * time.Millisecond)
	}

	if c.Ambient.DarkThreshold == 0 {
		c.Ambient.DarkThreshold = 80
	}

	if c.TickInterval == 0 {
		c.TickInterval = Duration(1 * time.Second)
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = Duration(5 * time.Second)
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	// Match ${VAR} or ${VAR:default}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
