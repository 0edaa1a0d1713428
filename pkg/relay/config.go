package relay

import (
	"flag"
	"time"

	"github.com/robotalks/rovlink/pkg/env"
)

// Config defines the relay server options.
type Config struct {
	// Host is the address the listeners bind to.
	Host string `yaml:"host" env:"ROV_RELAY_HOST"`
	// Port is the motor channel port, the sensor channel uses Port+1.
	Port int `yaml:"port" env:"ROV_RELAY_PORT"`
	// Rebind enables recovering a peripheral after a failed exchange.
	Rebind bool `yaml:"rebind" env:"ROV_RELAY_REBIND"`
	// AnnounceInterval is the period of status republishing.
	AnnounceInterval time.Duration `yaml:"announce-interval"`
}

var defaultConfig = Config{
	Host:             "10.10.1.154",
	Port:             8010,
	Rebind:           true,
	AnnounceInterval: 10 * time.Second,
}

func init() {
	env.MustLoad("relay", &defaultConfig)
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.Host, "host", defaultConfig.Host, "Address to listen on.")
	flag.IntVar(&defaultConfig.Port, "port", defaultConfig.Port, "Motor channel port, sensor channel uses port+1.")
	flag.BoolVar(&defaultConfig.Rebind, "rebind", defaultConfig.Rebind, "Rebind a peripheral after a failed exchange, otherwise only reopen its port.")
	flag.DurationVar(&defaultConfig.AnnounceInterval, "announce-interval", defaultConfig.AnnounceInterval, "Interval of status republishing.")
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

// NewServer creates a Server and binds both channels.
func (c *Config) NewServer(devices Devices) (*Server, error) {
	s := NewServer(c.Host, devices)
	s.Rebind = c.Rebind
	if err := s.BindAll(c.Port); err != nil {
		return nil, err
	}
	return s, nil
}
