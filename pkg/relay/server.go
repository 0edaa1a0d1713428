// Package relay forwards TCP commands to the bound serial peripherals.
//
// The server owns one listener per role. Each channel serves a single
// client at a time; a client leaving puts the channel back to accept
// without touching the peripheral link.
package relay

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	fx "github.com/robotalks/rovlink/pkg/framework"
	"github.com/robotalks/rovlink/pkg/registry"
	"github.com/robotalks/rovlink/pkg/wire"
)

// Command prefixes and fixed replies of the TCP protocol.
const (
	CmdMotor  = "MOT"
	CmdSensor = "SEN"
	CmdStop   = "STOP"

	// SensorPoll is sent to the sensor controller for every SEN request.
	SensorPoll = "GET"

	ReplyInvalid  = "INVALID COMMAND"
	ReplyError    = "ERROR"
	ReplyStopping = "STOPPING"
)

// ErrStopRequested is returned by Serve after a client sent STOP.
var ErrStopRequested = errors.New("stop requested")

// Devices is the peripheral side of the relay.
type Devices interface {
	Send(role registry.Role, cmd string) (string, error)
	Rebind(role registry.Role) error
	Reopen(role registry.Role) error
	CloseAll()
}

// Server relays the motor and sensor channels.
type Server struct {
	Host    string
	Devices Devices
	// Rebind recovers a peripheral after a failed exchange.
	Rebind bool
	// OnClientChange is invoked when a channel client connects or leaves.
	OnClientChange func()

	lock     sync.Mutex
	channels map[registry.Role]*channel
}

type channel struct {
	server   *Server
	role     registry.Role
	listener net.Listener

	lock   sync.Mutex
	client net.Conn
	closed bool
}

// NewServer creates a Server without listeners.
func NewServer(host string, devices Devices) *Server {
	return &Server{
		Host:     host,
		Devices:  devices,
		channels: make(map[registry.Role]*channel),
	}
}

// Bind listens on port for role.
func (s *Server) Bind(role registry.Role, port int) error {
	addr := net.JoinHostPort(s.Host, strconv.Itoa(port))
	glog.Infof("starting %s channel on %s", role, addr)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "unable to start %s channel", role)
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	if old := s.channels[role]; old != nil {
		old.Close()
	}
	s.channels[role] = &channel{server: s, role: role, listener: ln}
	return nil
}

// BindAll binds the motor channel on port and the sensor channel on port+1.
func (s *Server) BindAll(port int) error {
	if err := s.Bind(registry.RoleMotor, port); err != nil {
		return err
	}
	if err := s.Bind(registry.RoleSensor, port+1); err != nil {
		s.closeChannels()
		return err
	}
	return nil
}

// Addr returns the listening address of the role's channel.
func (s *Server) Addr(role registry.Role) net.Addr {
	s.lock.Lock()
	defer s.lock.Unlock()
	if ch := s.channels[role]; ch != nil {
		return ch.listener.Addr()
	}
	return nil
}

// Clients returns the remote address of the client of each channel.
func (s *Server) Clients() map[registry.Role]string {
	s.lock.Lock()
	channels := make([]*channel, 0, len(s.channels))
	for _, ch := range s.channels {
		channels = append(channels, ch)
	}
	s.lock.Unlock()
	clients := make(map[registry.Role]string)
	for _, ch := range channels {
		if addr := ch.clientAddr(); addr != "" {
			clients[ch.role] = addr
		}
	}
	return clients
}

// Serve runs all channels until ctx is canceled or a client sends
// STOP. All peripheral links and listeners are closed on return.
func (s *Server) Serve(ctx context.Context) error {
	s.lock.Lock()
	runner := fx.NewRunnerWith(ctx).WithStopOnError(true)
	for _, role := range registry.Roles {
		if ch := s.channels[role]; ch != nil {
			runner.Go(fx.NamedRun(role.String(), ch))
		}
	}
	s.lock.Unlock()

	err := runner.Wait()
	glog.Warning("stopping all services")
	s.Devices.CloseAll()
	s.closeChannels()
	if fx.IsOrContains(err, ErrStopRequested) {
		return ErrStopRequested
	}
	return err
}

// Dispatch routes one command and returns the reply. stop is set for
// the STOP command.
func (s *Server) Dispatch(cmd string) (reply string, stop bool) {
	reply, stop, _ = s.dispatch(cmd)
	return
}

func (s *Server) dispatch(cmd string) (reply string, stop bool, failed registry.Role) {
	var role registry.Role
	var payload string
	switch {
	case strings.HasPrefix(cmd, CmdMotor):
		role, payload = registry.RoleMotor, cmd[len(CmdMotor):]
	case strings.HasPrefix(cmd, CmdSensor):
		role, payload = registry.RoleSensor, SensorPoll
	case strings.HasPrefix(cmd, CmdStop):
		glog.Warning("received stop command")
		return ReplyStopping, true, registry.RoleUnknown
	default:
		return ReplyInvalid, false, registry.RoleUnknown
	}
	reply, err := s.Devices.Send(role, payload)
	if err != nil {
		glog.Errorf("%s controller: %v", role, err)
		return ReplyError, false, role
	}
	return reply, false, registry.RoleUnknown
}

// recoverDevice runs after a failed exchange, which leaves the link closed.
// Without Rebind the same port gets one reopen attempt.
func (s *Server) recoverDevice(prefix string, role registry.Role) {
	if s.Rebind {
		if err := s.Devices.Rebind(role); err != nil {
			glog.Errorf("%s: rebind %s controller: %v", prefix, role, err)
		}
		return
	}
	if err := s.Devices.Reopen(role); err != nil {
		glog.Errorf("%s: reopen %s controller: %v", prefix, role, err)
	}
}

func (s *Server) closeChannels() {
	s.lock.Lock()
	defer s.lock.Unlock()
	for _, ch := range s.channels {
		ch.Close()
	}
}

func (s *Server) clientChanged() {
	if fn := s.OnClientChange; fn != nil {
		fn()
	}
}

// Name implements Named.
func (c *channel) Name() string {
	return c.role.String()
}

// Run implements Runnable.
func (c *channel) Run(ctx context.Context) error {
	return fx.RunWithContextCloser(ctx, c, func() error {
		for {
			conn, err := c.listener.Accept()
			if err != nil {
				if c.isClosed() {
					return nil
				}
				if ne, ok := err.(net.Error); ok && ne.Temporary() {
					glog.Warningf("%s channel: accept: %v", c.role, err)
					continue
				}
				return errors.Wrapf(err, "%s channel accept", c.role)
			}
			if err := c.serveClient(conn); err != nil {
				return err
			}
		}
	})
}

// Close closes the listener and the current client.
func (c *channel) Close() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.client != nil {
		c.client.Close()
	}
	return c.listener.Close()
}

func (c *channel) isClosed() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.closed
}

func (c *channel) clientAddr() string {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.client == nil {
		return ""
	}
	return c.client.RemoteAddr().String()
}

func (c *channel) setClient(conn net.Conn) bool {
	c.lock.Lock()
	if c.closed {
		c.lock.Unlock()
		return false
	}
	c.client = conn
	c.lock.Unlock()
	c.server.clientChanged()
	return true
}

func (c *channel) resetClient() {
	c.lock.Lock()
	conn := c.client
	c.client = nil
	c.lock.Unlock()
	if conn != nil {
		conn.Close()
		c.server.clientChanged()
	}
}

// serveClient handles requests until the client leaves. Only a STOP
// request returns an error.
func (c *channel) serveClient(conn net.Conn) error {
	if !c.setClient(conn) {
		conn.Close()
		return nil
	}
	defer c.resetClient()

	id := uuid.New().String()[:8]
	prefix := fmt.Sprintf("%s channel [%s]", c.role, id)
	glog.Infof("%s: connection from %s", prefix, conn.RemoteAddr())

	rw := wire.New(conn)
	for {
		cmd, err := rw.ReadLine()
		var reply string
		var stop bool
		failed := registry.RoleUnknown
		switch err {
		case nil:
			glog.V(2).Infof("%s: recv %q", prefix, cmd)
			reply, stop, failed = c.server.dispatch(cmd)
		case wire.ErrLineTooLong, wire.ErrInvalidUTF8:
			glog.Warningf("%s: %v", prefix, err)
			reply = ReplyInvalid
		case io.EOF, io.ErrUnexpectedEOF:
			glog.Infof("%s: client disconnected", prefix)
			return nil
		default:
			if !c.isClosed() {
				glog.Errorf("%s: socket error: %v", prefix, err)
			}
			return nil
		}

		if err := rw.WriteLine(reply); err != nil {
			glog.Errorf("%s: socket error: %v", prefix, err)
			return nil
		}
		if stop {
			return ErrStopRequested
		}
		if failed != registry.RoleUnknown {
			c.server.recoverDevice(prefix, failed)
		}
	}
}
