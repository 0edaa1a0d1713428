// Package mqtt is a thin pub/sub layer over the paho client, with all
// topics relative to a prefix taken from the broker URL.
package mqtt

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// Handler receives a message. topic has the prefix removed.
type Handler func(topic string, payload []byte)

// Queue wraps a paho client.
type Queue struct {
	Client      paho.Client
	TopicPrefix string
	// OnConnect is invoked after every (re)connection, once
	// subscriptions are restored.
	OnConnect func(*Queue)

	lock sync.RWMutex
	subs map[string][]*Subscription
}

// Subscription is a handler registered on a topic filter.
type Subscription struct {
	queue   *Queue
	filter  string
	handler Handler
}

// MatchTopic tells if topic matches the filter with + and # wildcards.
func MatchTopic(topic, filter string) bool {
	levels, patterns := strings.Split(topic, "/"), strings.Split(filter, "/")
	for i, p := range patterns {
		if p == "#" && i == len(patterns)-1 {
			return true
		}
		if i >= len(levels) {
			return false
		}
		if p != "+" && p != levels[i] {
			return false
		}
	}
	return len(levels) == len(patterns)
}

// ClientOptionsFromURL parses mqtt://[user:pass@]host:port/prefix.
// A client-id query parameter sets the client id.
func ClientOptionsFromURL(brokerURL string) (*paho.ClientOptions, string, error) {
	u, err := url.Parse(brokerURL)
	if err != nil {
		return nil, "", errors.Wrap(err, "invalid broker URL")
	}
	if u.Host == "" {
		return nil, "", errors.Errorf("invalid broker URL %q: missing host", brokerURL)
	}
	scheme := u.Scheme
	switch scheme {
	case "", "mqtt":
		scheme = "tcp"
	case "mqtts":
		scheme = "ssl"
	}
	opts := paho.NewClientOptions().
		AddBroker(scheme + "://" + u.Host).
		SetAutoReconnect(true).
		SetCleanSession(true)
	if u.User != nil {
		opts.SetUsername(u.User.Username())
		if pwd, ok := u.User.Password(); ok {
			opts.SetPassword(pwd)
		}
	}
	if clientID := u.Query().Get("client-id"); clientID != "" {
		opts.SetClientID(clientID)
	}
	return opts, strings.TrimPrefix(u.Path, "/"), nil
}

// NewQueue creates a Queue. The connection handlers of options are
// taken over by the Queue.
func NewQueue(options *paho.ClientOptions, topicPrefix string) *Queue {
	q := &Queue{TopicPrefix: topicPrefix, subs: make(map[string][]*Subscription)}
	options.SetOnConnectHandler(q.onConnect)
	options.SetConnectionLostHandler(q.onConnectionLost)
	q.Client = paho.NewClient(options)
	return q
}

// NewQueueFromURL creates a Queue from a broker URL. clientID is used
// unless the URL specifies one.
func NewQueueFromURL(brokerURL, clientID string) (*Queue, error) {
	opts, prefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	if opts.ClientID == "" {
		opts.SetClientID(clientID)
	}
	return NewQueue(opts, prefix), nil
}

// Wait waits for token to complete or ctx to be done.
func Wait(ctx context.Context, token paho.Token) error {
	doneCh := make(chan struct{})
	go func() {
		token.Wait()
		close(doneCh)
	}()
	select {
	case <-doneCh:
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connect connects to the broker and waits for the first connection.
func (q *Queue) Connect(ctx context.Context) error {
	return errors.Wrap(Wait(ctx, q.Client.Connect()), "mqtt connect")
}

// ConnectRetry connects, retrying every interval until it succeeds
// or ctx is done.
func (q *Queue) ConnectRetry(ctx context.Context, interval time.Duration) error {
	for {
		err := q.Connect(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		glog.Warningf("%v, retry in %s", err, interval)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// Close disconnects from the broker.
func (q *Queue) Close() error {
	q.Client.Disconnect(250)
	return nil
}

// Sub registers handler on a topic filter.
func (q *Queue) Sub(filter string, handler Handler) *Subscription {
	sub := &Subscription{queue: q, filter: filter, handler: handler}
	q.lock.Lock()
	first := len(q.subs[filter]) == 0
	q.subs[filter] = append(q.subs[filter], sub)
	q.lock.Unlock()
	if first {
		glog.V(2).Infof("SUB %q", q.TopicPrefix+filter)
		q.Client.Subscribe(q.TopicPrefix+filter, 0, q.dispatch)
	}
	return sub
}

// Pub publishes at QoS 0.
func (q *Queue) Pub(topic string, payload []byte) paho.Token {
	return q.PubWith(topic, payload, 0, false)
}

// PubWith publishes with QoS and retain flag.
func (q *Queue) PubWith(topic string, payload []byte, qos byte, retain bool) paho.Token {
	glog.V(3).Infof("PUB %q %d bytes", q.TopicPrefix+topic, len(payload))
	return q.Client.Publish(q.TopicPrefix+topic, qos, retain, payload)
}

// Resubscribe subscribes all registered filters again.
func (q *Queue) Resubscribe() paho.Token {
	filters := make(map[string]byte)
	q.lock.RLock()
	for filter := range q.subs {
		filters[q.TopicPrefix+filter] = 0
	}
	q.lock.RUnlock()
	if len(filters) == 0 {
		return &paho.DummyToken{}
	}
	return q.Client.SubscribeMultiple(filters, q.dispatch)
}

func (q *Queue) onConnect(paho.Client) {
	glog.Info("mqtt connected")
	q.Resubscribe()
	if fn := q.OnConnect; fn != nil {
		fn(q)
	}
}

func (q *Queue) onConnectionLost(_ paho.Client, err error) {
	glog.Warningf("mqtt connection lost: %v", err)
}

func (q *Queue) dispatch(_ paho.Client, msg paho.Message) {
	q.deliver(msg.Topic(), msg.Payload())
}

// deliver calls the handlers matching a full topic.
func (q *Queue) deliver(fullTopic string, payload []byte) {
	if !strings.HasPrefix(fullTopic, q.TopicPrefix) {
		return
	}
	topic := fullTopic[len(q.TopicPrefix):]
	glog.V(3).Infof("RCV %q", fullTopic)
	var handlers []Handler
	q.lock.RLock()
	for filter, subs := range q.subs {
		if MatchTopic(topic, filter) {
			for _, sub := range subs {
				handlers = append(handlers, sub.handler)
			}
		}
	}
	q.lock.RUnlock()
	for _, h := range handlers {
		h(topic, payload)
	}
}

// Close removes the handler, unsubscribing the filter when it was the
// last one.
func (s *Subscription) Close() error {
	q := s.queue
	q.lock.Lock()
	subs := q.subs[s.filter]
	for i, sub := range subs {
		if sub == s {
			subs = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	last := len(subs) == 0
	if last {
		delete(q.subs, s.filter)
	} else {
		q.subs[s.filter] = subs
	}
	q.lock.Unlock()
	if !last || !q.Client.IsConnected() {
		return nil
	}
	glog.V(2).Infof("UNSUB %q", q.TopicPrefix+s.filter)
	token := q.Client.Unsubscribe(q.TopicPrefix + s.filter)
	token.Wait()
	return token.Error()
}
