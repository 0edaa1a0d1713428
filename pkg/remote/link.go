// Package remote is the topside end of the relay channels.
package remote

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/robotalks/rovlink/pkg/wire"
)

// DialFunc dials a TCP address.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Link is a request/response session with one relay channel.
type Link struct {
	Addr          string
	RetryInterval time.Duration
	ReadTimeout   time.Duration
	Dial          DialFunc

	lock sync.Mutex
	conn net.Conn
	rw   *wire.LineReadWriter
}

// New creates an unconnected Link.
func New(addr string) *Link {
	var d net.Dialer
	return &Link{
		Addr:          addr,
		RetryInterval: time.Second,
		ReadTimeout:   2 * time.Second,
		Dial:          d.DialContext,
	}
}

// Connect dials the relay, retrying every RetryInterval until it
// succeeds or ctx is done.
func (l *Link) Connect(ctx context.Context) error {
	glog.Infof("attempting to establish connection with %s", l.Addr)
	for attempt := 1; ; attempt++ {
		err := l.dial(ctx)
		if err == nil {
			return nil
		}
		glog.Warningf("connect %s attempt %d failed: %v", l.Addr, attempt, err)
		if err := l.wait(ctx); err != nil {
			return err
		}
	}
}

func (l *Link) dial(ctx context.Context) error {
	l.Close()
	conn, err := l.Dial(ctx, "tcp", l.Addr)
	if err != nil {
		return err
	}
	l.lock.Lock()
	l.conn, l.rw = conn, wire.New(conn)
	l.lock.Unlock()
	glog.Infof("connected to %s", l.Addr)
	return nil
}

func (l *Link) wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(l.RetryInterval):
		return nil
	}
}

// IsConnected tells if the link holds a connection.
func (l *Link) IsConnected() bool {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.conn != nil
}

// Exchange sends cmd and waits for one reply line.
// Any failure closes the connection.
func (l *Link) Exchange(cmd string) (reply string, err error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.conn == nil {
		return "", ErrNotConnected
	}
	defer func() {
		if err != nil {
			glog.Errorf("%s: exchange %q failed: %v", l.Addr, cmd, err)
			l.closeLocked()
		}
	}()
	if l.ReadTimeout > 0 {
		l.conn.SetDeadline(time.Now().Add(l.ReadTimeout))
	} else {
		l.conn.SetDeadline(time.Time{})
	}
	if err = l.rw.WriteLine(cmd); err != nil {
		return "", errors.Wrap(err, "send")
	}
	reply, err = l.rw.ReadLine()
	switch {
	case err == nil:
		glog.V(2).Infof("%s: %q -> %q", l.Addr, cmd, reply)
		return reply, nil
	case err == io.EOF || err == io.ErrUnexpectedEOF:
		return "", ErrDisconnected
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return "", ErrTimeout
	}
	return "", errors.Wrap(err, "receive")
}

// Close closes the connection. It's safe to call on a closed link.
func (l *Link) Close() error {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.closeLocked()
}

func (l *Link) closeLocked() error {
	if l.conn == nil {
		return nil
	}
	glog.Infof("closing socket for %s", l.Addr)
	err := l.conn.Close()
	l.conn, l.rw = nil, nil
	return err
}

// ConnectPair connects both channels. It only returns nil when both
// are connected. The motor channel is released while the sensor
// channel is retried.
func ConnectPair(ctx context.Context, motor, sensor *Link) error {
	glog.Info("starting sockets")
	for attempt := 1; ; attempt++ {
		if err := motor.Connect(ctx); err != nil {
			return errors.Wrap(err, "motor channel")
		}
		err := sensor.dial(ctx)
		if err == nil {
			return nil
		}
		motor.Close()
		glog.Warningf("connect %s attempt %d failed: %v", sensor.Addr, attempt, err)
		if err := sensor.wait(ctx); err != nil {
			return errors.Wrap(err, "sensor channel")
		}
	}
}
