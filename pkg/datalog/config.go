package datalog

import (
	"flag"

	"github.com/robotalks/rovlink/pkg/env"
)

// Config defines where data logs are written.
type Config struct {
	Dir     string `yaml:"dir" env:"ROV_DATA_LOGS"`
	Disable bool   `yaml:"disable"`
}

var defaultConfig = Config{
	Dir: "data_logs",
}

func init() {
	env.MustLoad("datalog", &defaultConfig)
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.Dir, "data-logs", defaultConfig.Dir, "Directory for telemetry CSV logs.")
	flag.BoolVar(&defaultConfig.Disable, "no-data-log", defaultConfig.Disable, "Do not record telemetry to CSV.")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a config with defaults.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Open opens a new Logger, or returns nil when logging is disabled.
func (c *Config) Open(header []string) (*Logger, error) {
	if c.Disable {
		return nil, nil
	}
	return Open(c.Dir, header)
}
