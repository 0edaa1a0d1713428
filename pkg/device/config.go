package device

import (
	"flag"
	"time"

	"github.com/robotalks/rovlink/pkg/env"
)

// Config defines serial port settings shared by all links.
type Config struct {
	Baud        int           `yaml:"baud" env:"ROV_SERIAL_BAUD"`
	ReadTimeout time.Duration `yaml:"read-timeout" env:"ROV_SERIAL_TIMEOUT"`
}

var defaultConfig = Config{
	Baud:        9600,
	ReadTimeout: time.Second,
}

func init() {
	env.MustLoad("serial", &defaultConfig)
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.IntVar(&defaultConfig.Baud, "baud", defaultConfig.Baud, "Serial baud rate.")
	flag.DurationVar(&defaultConfig.ReadTimeout, "serial-timeout", defaultConfig.ReadTimeout, "Serial reply timeout.")
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

// NewLink creates a closed Link on path using the config.
func (c *Config) NewLink(path string, opener Opener) *Link {
	return NewLink(path, c.Baud, c.ReadTimeout, opener)
}
