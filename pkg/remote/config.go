package remote

import (
	"flag"
	"net"
	"strconv"
	"time"

	"github.com/robotalks/rovlink/pkg/env"
)

// Config defines how the topside reaches the relay.
type Config struct {
	Host          string        `yaml:"host" env:"ROV_SERVER_HOST"`
	Port          int           `yaml:"port" env:"ROV_SERVER_PORT"`
	RetryInterval time.Duration `yaml:"retry-interval"`
	ReadTimeout   time.Duration `yaml:"read-timeout" env:"ROV_REPLY_TIMEOUT"`
}

var defaultConfig = Config{
	Host:          "10.10.2.5",
	Port:          8000,
	RetryInterval: time.Second,
	ReadTimeout:   2 * time.Second,
}

func init() {
	env.MustLoad("remote", &defaultConfig)
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.Host, "server", defaultConfig.Host, "Relay server address.")
	flag.IntVar(&defaultConfig.Port, "port", defaultConfig.Port, "Relay motor channel port, sensor channel uses port+1.")
	flag.DurationVar(&defaultConfig.RetryInterval, "retry", defaultConfig.RetryInterval, "Interval between connection attempts.")
	flag.DurationVar(&defaultConfig.ReadTimeout, "reply-timeout", defaultConfig.ReadTimeout, "Relay reply timeout, 0 to wait forever.")
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

// NewLink creates a Link to the channel at port.
func (c *Config) NewLink(port int) *Link {
	l := New(net.JoinHostPort(c.Host, strconv.Itoa(port)))
	l.RetryInterval = c.RetryInterval
	l.ReadTimeout = c.ReadTimeout
	return l
}

// NewPair creates the motor and sensor channel links.
func (c *Config) NewPair() (motor, sensor *Link) {
	return c.NewLink(c.Port), c.NewLink(c.Port + 1)
}
