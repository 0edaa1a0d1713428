package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/robotalks/rovlink/pkg/env"
	"github.com/robotalks/rovlink/pkg/mqtt"
	"github.com/robotalks/rovlink/pkg/relay"
	"github.com/robotalks/rovlink/pkg/telemetry"
)

func init() {
	mqtt.SetupFlags()
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	conf := mqtt.Default()
	if !conf.Enabled() {
		log.Fatalln("MQTT broker URL required, use -mqtt or ROV_MQTT_URL")
	}
	q, err := conf.NewQueue("rovmon:" + env.MachineID())
	if err != nil {
		log.Fatalln(err)
	}

	q.Sub(telemetry.Topic, func(topic string, payload []byte) {
		s, err := telemetry.Decode(payload)
		if err != nil {
			log.Printf("%s: bad sample: %v", topic, err)
			return
		}
		log.Printf("%s: %s", topic, s.String())
	})
	q.Sub(relay.StatusFilter, func(topic string, payload []byte) {
		if len(payload) == 0 {
			log.Printf("%s: offline", topic)
			return
		}
		log.Printf("%s: %s", topic, string(payload))
	})
	if err := q.ConnectRetry(context.Background(), 5*time.Second); err != nil {
		log.Fatalln(err)
	}
	<-(chan struct{})(nil)
}
