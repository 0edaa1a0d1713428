package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/rovlink/pkg/framework"
	"github.com/robotalks/rovlink/pkg/mqtt"
	"github.com/robotalks/rovlink/pkg/registry"
)

// StatusFilter matches the status topic of every relay.
const StatusFilter = "rov/+/status"

// StatusTopic returns the status topic of the relay id.
func StatusTopic(id string) string {
	return fmt.Sprintf("rov/%s/status", id)
}

// Status is the retained relay status.
type Status struct {
	ID      string            `json:"id"`
	Host    string            `json:"host"`
	Port    int               `json:"port"`
	Motor   string            `json:"motor,omitempty"`
	Sensor  string            `json:"sensor,omitempty"`
	Clients map[string]string `json:"clients,omitempty"`
	Updated time.Time         `json:"updated"`
}

// Ready tells if both peripherals are bound.
func (s *Status) Ready() bool {
	return s.Motor != "" && s.Sensor != ""
}

// StatusOf collects the status of a running relay.
func StatusOf(id string, port int, server *Server, reg *registry.Registry) Status {
	st := Status{ID: id, Host: server.Host, Port: port, Updated: time.Now()}
	bindings := reg.Bindings()
	st.Motor, st.Sensor = bindings[registry.RoleMotor], bindings[registry.RoleSensor]
	if clients := server.Clients(); len(clients) > 0 {
		st.Clients = make(map[string]string)
		for role, addr := range clients {
			st.Clients[role.String()] = addr
		}
	}
	return st
}

// Announcer keeps the relay status retained on the broker. The status
// is cleared by the broker if the relay drops off.
type Announcer struct {
	ID     string
	Queue  *mqtt.Queue
	Status func() Status

	loop *fx.Loop
}

// NewAnnouncer creates an Announcer publishing every interval.
func NewAnnouncer(brokerURL, id string, interval time.Duration, status func() Status) (*Announcer, error) {
	opts, prefix, err := mqtt.ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	opts.SetBinaryWill(prefix+StatusTopic(id), nil, 1, true)
	if opts.ClientID == "" {
		opts.SetClientID("rov-relay:" + id)
	}
	a := &Announcer{ID: id, Status: status, Queue: mqtt.NewQueue(opts, prefix)}
	a.loop = fx.NewLoop(interval, a.publish)
	a.Queue.OnConnect = func(*mqtt.Queue) { a.Trigger() }
	return a, nil
}

// Trigger publishes the status as soon as possible.
func (a *Announcer) Trigger() {
	a.loop.TriggerNext()
}

// Name implements Named.
func (a *Announcer) Name() string {
	return "announcer"
}

// Run implements Runnable.
func (a *Announcer) Run(ctx context.Context) error {
	if err := a.Queue.ConnectRetry(ctx, a.loop.Interval); err != nil {
		return err
	}
	defer a.Queue.Close()
	err := a.loop.Run(ctx)
	a.Queue.PubWith(StatusTopic(a.ID), nil, 1, true).WaitTimeout(time.Second)
	return err
}

func (a *Announcer) publish(ctx context.Context, now time.Time) error {
	if !a.Queue.Client.IsConnected() {
		return nil
	}
	st := a.Status()
	data, err := json.Marshal(&st)
	if err != nil {
		return err
	}
	glog.V(2).Infof("announce %s", data)
	a.Queue.PubWith(StatusTopic(a.ID), data, 1, true)
	return nil
}

// Discover collects relay statuses retained on the broker for the
// duration of timeout.
func Discover(ctx context.Context, q *mqtt.Queue, timeout time.Duration) ([]Status, error) {
	resCh := make(chan Status, 16)
	sub := q.Sub(StatusFilter, func(topic string, payload []byte) {
		if len(payload) == 0 {
			return
		}
		var st Status
		if err := json.Unmarshal(payload, &st); err != nil {
			glog.Warningf("discover: invalid status on %s: %v", topic, err)
			return
		}
		if st.ID == "" {
			st.ID = strings.Split(topic, "/")[1]
		}
		select {
		case resCh <- st:
		case <-time.After(time.Second):
		}
	})
	defer sub.Close()

	found := make(map[string]Status)
	deadline := time.After(timeout)
	for {
		select {
		case st := <-resCh:
			found[st.ID] = st
		case <-deadline:
			res := make([]Status, 0, len(found))
			for _, st := range found {
				res = append(res, st)
			}
			sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
			return res, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
