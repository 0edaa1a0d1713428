package mqtt

import (
	"flag"

	"github.com/robotalks/rovlink/pkg/env"
)

// Config defines the broker connection.
type Config struct {
	// BrokerURL is like mqtt://host:port/topic-prefix/.
	// MQTT features are off when empty.
	BrokerURL string `yaml:"url" env:"ROV_MQTT_URL"`
}

var defaultConfig Config

func init() {
	env.MustLoad("mqtt", &defaultConfig)
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.BrokerURL, "mqtt", defaultConfig.BrokerURL, "MQTT broker URL, e.g. mqtt://localhost:1883/kelpie/")
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

// Enabled tells if a broker is configured.
func (c *Config) Enabled() bool {
	return c.BrokerURL != ""
}

// NewQueue creates a Queue for the configured broker.
func (c *Config) NewQueue(clientID string) (*Queue, error) {
	return NewQueueFromURL(c.BrokerURL, clientID)
}
