package overlay

import (
	"flag"

	"github.com/robotalks/rovlink/pkg/env"
)

// Config defines the overlay HTTP server.
type Config struct {
	// Addr is the listen address, the overlay is off when empty.
	Addr string `yaml:"addr" env:"ROV_OVERLAY_ADDR"`
}

var defaultConfig = Config{
	Addr: "localhost:8080",
}

func init() {
	env.MustLoad("overlay", &defaultConfig)
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.Addr, "overlay", defaultConfig.Addr, "Overlay HTTP listen address, empty to disable.")
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

// NewServer creates the overlay server, or nil when disabled.
func (c *Config) NewServer(display *Display) *Server {
	if c.Addr == "" {
		return nil
	}
	return NewServer(c.Addr, display)
}
