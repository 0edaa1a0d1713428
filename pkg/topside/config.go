package topside

import (
	"flag"
	"time"

	"github.com/robotalks/rovlink/pkg/env"
)

// Config defines the loop cadences.
type Config struct {
	ControlInterval   time.Duration `yaml:"control-interval" env:"ROV_CONTROL_INTERVAL"`
	IdleInterval      time.Duration `yaml:"idle-interval"`
	TelemetryInterval time.Duration `yaml:"telemetry-interval" env:"ROV_TELEMETRY_INTERVAL"`
}

var defaultConfig = Config{
	IdleInterval:      10 * time.Millisecond,
	TelemetryInterval: 50 * time.Millisecond,
}

func init() {
	env.MustLoad("topside", &defaultConfig)
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.DurationVar(&defaultConfig.ControlInterval, "control-interval", defaultConfig.ControlInterval, "Pause between motor commands, 0 for none.")
	flag.DurationVar(&defaultConfig.TelemetryInterval, "telemetry-interval", defaultConfig.TelemetryInterval, "Minimum time between sensor samples.")
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
