package registry

import (
	"flag"
	"strings"

	"github.com/robotalks/rovlink/pkg/device"
	"github.com/robotalks/rovlink/pkg/env"
)

// Config defines how candidate devices are found.
type Config struct {
	Patterns []string `yaml:"patterns" env:"ROV_SERIAL_PATTERNS" envSeparator:","`
}

var defaultConfig = Config{
	Patterns: []string{"/dev/ttyUSB*", "/dev/ttyACM*"},
}

func init() {
	env.MustLoad("registry", &defaultConfig)
}

type patternsFlag struct {
	patterns *[]string
}

func (f patternsFlag) String() string {
	if f.patterns == nil {
		return ""
	}
	return strings.Join(*f.patterns, ",")
}

func (f patternsFlag) Set(val string) error {
	*f.patterns = nil
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			*f.patterns = append(*f.patterns, item)
		}
	}
	return nil
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.Var(patternsFlag{&defaultConfig.Patterns}, "serial-patterns", "Comma separated glob patterns of candidate serial devices.")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a config with defaults.
func NewConfig() *Config {
	conf := defaultConfig
	conf.Patterns = append([]string(nil), defaultConfig.Patterns...)
	return &conf
}

// NewRegistry creates a Registry whose links use the serial config.
func (c *Config) NewRegistry(serial *device.Config, opener device.Opener) *Registry {
	return New(c.Patterns, func(path string) *device.Link {
		return serial.NewLink(path, opener)
	})
}
