package gamepad

import (
	"flag"

	"github.com/robotalks/rovlink/pkg/env"
)

// Config defines the gamepad device.
type Config struct {
	DeviceIndex int  `yaml:"device" env:"ROV_GAMEPAD"`
	Verbose     bool `yaml:"verbose"`
}

var defaultConfig = Config{
	DeviceIndex: -1,
}

func init() {
	env.MustLoad("gamepad", &defaultConfig)
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.IntVar(&defaultConfig.DeviceIndex, "gamepad", defaultConfig.DeviceIndex, "Gamepad device index, -1 for auto detection.")
	flag.BoolVar(&defaultConfig.Verbose, "gamepad-verbose", defaultConfig.Verbose, "Log gamepad events.")
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

// NewPoller creates a Pad with the xpad layout and its Poller.
func (c *Config) NewPoller() *Poller {
	p := NewPoller(NewPad(XpadMapping), c.DeviceIndex)
	p.Verbose = c.Verbose
	return p
}
