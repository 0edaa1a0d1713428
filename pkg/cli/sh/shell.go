// Package sh is the interactive operator shell talking to a relay.
package sh

import (
	"context"
	"encoding/json"
	"flag"
	"net"
	"strconv"
	"time"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/robotalks/rovlink/pkg/mqtt"
	"github.com/robotalks/rovlink/pkg/registry"
	"github.com/robotalks/rovlink/pkg/relay"
	"github.com/robotalks/rovlink/pkg/remote"
)

// ErrNotConnected is reported by commands requiring a relay.
var ErrNotConnected = errors.New("not connected")

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive     bool
	OutputJSON      bool
	ConnectTimeout  time.Duration
	DiscoverTimeout time.Duration

	Shell  *ishell.Shell
	Remote *remote.Config
	MQTT   *mqtt.Config

	addr   string
	motor  *remote.Link
	sensor *remote.Link
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
)

var (
	evalOnly   bool
	outputJSON bool

	commands = []*ishell.Cmd{
		&DiscoverCmd,
		&ConnectCmd,
		&DisconnectCmd,
		&MotorCmd,
		&SensorCmd,
		&RawCmd,
		&StopCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other command providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(remoteConf *remote.Config, mqttConf *mqtt.Config) *Shell {
	s := &Shell{
		Interactive:     !evalOnly,
		OutputJSON:      outputJSON,
		ConnectTimeout:  5 * time.Second,
		DiscoverTimeout: time.Second,
		Shell:           ishell.New(),
		Remote:          remoteConf,
		MQTT:            mqttConf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeConnected wraps command func requires a connection.
func MustBeConnected(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if !ShellFrom(c).Connected() {
			c.Err(ErrNotConnected)
			return
		}
		fn(c)
	}
}

// Connected tells if both channels are connected.
func (s *Shell) Connected() bool {
	return s.motor != nil && s.sensor != nil
}

// Addr returns the relay address, empty when not connected.
func (s *Shell) Addr() string {
	return s.addr
}

// Connect connects both channels of the relay at host:port, giving up
// after ConnectTimeout.
func (s *Shell) Connect(host string, port int) error {
	s.Disconnect()
	conf := *s.Remote
	conf.Host, conf.Port = host, port
	motor, sensor := conf.NewPair()
	ctx, cancel := context.WithTimeout(context.Background(), s.ConnectTimeout)
	defer cancel()
	if err := remote.ConnectPair(ctx, motor, sensor); err != nil {
		return err
	}
	s.motor, s.sensor = motor, sensor
	s.addr = net.JoinHostPort(host, strconv.Itoa(port))
	s.setPrompt(s.addr + " > ")
	return nil
}

// Disconnect closes both channels.
func (s *Shell) Disconnect() {
	if s.motor != nil {
		s.motor.Close()
		s.sensor.Close()
		s.motor, s.sensor, s.addr = nil, nil, ""
		s.setPrompt(unconnectedPrompt)
	}
}

func (s *Shell) setPrompt(prompt string) {
	if s.Shell != nil {
		s.Shell.SetPrompt(prompt)
	}
}

// Send exchanges cmd on the channel of role.
func (s *Shell) Send(role registry.Role, cmd string) (string, error) {
	if !s.Connected() {
		return "", ErrNotConnected
	}
	link := s.motor
	if role == registry.RoleSensor {
		link = s.sensor
	}
	return link.Exchange(cmd)
}

// Discover lists relays announcing on the broker.
func (s *Shell) Discover() ([]relay.Status, error) {
	if !s.MQTT.Enabled() {
		return nil, errors.New("MQTT broker not configured, use -mqtt")
	}
	q, err := s.MQTT.NewQueue("rovcli:" + strconv.FormatInt(time.Now().UnixNano(), 36))
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.ConnectTimeout)
	defer cancel()
	if err := q.Connect(ctx); err != nil {
		return nil, err
	}
	defer q.Close()
	return relay.Discover(ctx, q, s.DiscoverTimeout)
}

// SelectRelay discovers relays and asks for a choice when more than
// one is found.
func (s *Shell) SelectRelay() (*relay.Status, error) {
	found, err := s.Discover()
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, errors.New("no relay discovered")
	}
	var index int
	if len(found) > 1 {
		if !s.Interactive {
			return nil, errors.New("more than 1 relays discovered in non-interactive mode")
		}
		items := make([]string, len(found))
		for n := range found {
			items[n] = FormatStatus(&found[n])
		}
		index = s.Shell.MultiChoice(items, "Which one to connect?")
		if index < 0 {
			return nil, errors.New("canceled")
		}
	}
	return &found[index], nil
}

// Print prints v as JSON or with its string form.
func (s *Shell) Print(c *ishell.Context, v interface{}) {
	if s.OutputJSON {
		out, err := json.Marshal(v)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	c.Println(v)
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	defer s.Disconnect()
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			glog.Exit(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	glog.Exit("command expected")
}

// Main is a helper to provide a single call in main.
func Main() {
	remote.SetupFlags()
	mqtt.SetupFlags()
	flag.Parse()
	New(remote.Default(), mqtt.Default()).Run(flag.Args()...)
}
