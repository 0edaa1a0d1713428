package telemetry

import (
	"context"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"

	"github.com/robotalks/rovlink/pkg/mqtt"
)

// Topic is where samples are published.
const Topic = "rov/telemetry"

// Publisher is a Sink publishing samples over MQTT. Rows are dropped
// while the broker is unreachable.
type Publisher struct {
	Queue *mqtt.Queue
	// Session tags every sample of one topside run.
	Session       string
	RetryInterval time.Duration
}

// NewPublisher creates a Publisher with a new session id.
func NewPublisher(q *mqtt.Queue) *Publisher {
	return &Publisher{Queue: q, Session: uuid.New().String(), RetryInterval: 5 * time.Second}
}

// Name implements Named.
func (p *Publisher) Name() string {
	return "telemetry-publisher"
}

// Run implements Runnable. It keeps the broker connection.
func (p *Publisher) Run(ctx context.Context) error {
	if err := p.Queue.ConnectRetry(ctx, p.RetryInterval); err != nil {
		return err
	}
	glog.Infof("publishing telemetry session %s", p.Session)
	<-ctx.Done()
	p.Queue.Close()
	return ctx.Err()
}

// Append implements Sink.
func (p *Publisher) Append(row []string) error {
	s, err := ParseRow(row)
	if err != nil {
		return err
	}
	s.Session = p.Session
	data, err := Encode(s)
	if err != nil {
		return err
	}
	if !p.Queue.Client.IsConnected() {
		glog.V(2).Info("telemetry publisher not connected, sample dropped")
		return nil
	}
	p.Queue.Pub(Topic, data)
	return nil
}
