package sh

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/rovlink/pkg/registry"
	"github.com/robotalks/rovlink/pkg/relay"
)

var (
	// DiscoverCmd lists relays announced on the broker.
	DiscoverCmd = ishell.Cmd{
		Name:    "discover",
		Aliases: []string{"list", "l"},
		Help:    "discover relays",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			found, err := s.Discover()
			if err != nil {
				c.Err(err)
				return
			}
			if s.OutputJSON {
				s.Print(c, found)
				return
			}
			for n := range found {
				c.Println(FormatStatus(&found[n]))
			}
		},
	}

	// ConnectCmd connects to a relay.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "[HOST [PORT]]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			host, port := s.Remote.Host, s.Remote.Port
			switch {
			case len(c.Args) > 0:
				host = c.Args[0]
				if len(c.Args) > 1 {
					val, err := strconv.Atoi(c.Args[1])
					if err != nil || val <= 0 || val > 65534 {
						c.Err(fmt.Errorf("invalid PORT: %s", c.Args[1]))
						return
					}
					port = val
				}
			case s.MQTT.Enabled():
				st, err := s.SelectRelay()
				if err != nil {
					c.Err(err)
					return
				}
				host, port = st.Host, st.Port
			}
			if s.Interactive {
				c.Printf("Connecting %s:%d ...\n", host, port)
			}
			if err := s.Connect(host, port); err != nil {
				c.Err(err)
			}
		},
	}

	// DisconnectCmd disconnects from the relay.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "disconnect from the relay",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}

	// MotorCmd sends a motor command.
	MotorCmd = ishell.Cmd{
		Name: "mot",
		Help: "LX,LY RX,RY LT,RT,LB,RB (groups are sent tab separated)",
		Func: MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("PAYLOAD required"))
				return
			}
			DoCommand(c, registry.RoleMotor, relay.CmdMotor+strings.Join(c.Args, "\t"))
		}),
	}

	// SensorCmd requests a telemetry sample.
	SensorCmd = ishell.Cmd{
		Name:    "sen",
		Aliases: []string{"s"},
		Help:    "request a telemetry sample",
		Func: MustBeConnected(func(c *ishell.Context) {
			DoCommand(c, registry.RoleSensor, relay.CmdSensor)
		}),
	}

	// RawCmd sends a line as is.
	RawCmd = ishell.Cmd{
		Name: "raw",
		Help: "motor|sensor LINE",
		Func: MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("CHANNEL and LINE required"))
				return
			}
			role := registry.RoleMotor
			switch c.Args[0] {
			case "motor":
			case "sensor":
				role = registry.RoleSensor
			default:
				c.Err(fmt.Errorf("unknown channel %q", c.Args[0]))
				return
			}
			DoCommand(c, role, strings.Join(c.Args[1:], " "))
		}),
	}

	// StopCmd asks the relay to shut down.
	StopCmd = ishell.Cmd{
		Name: "stop",
		Help: "stop the relay",
		Func: MustBeConnected(func(c *ishell.Context) {
			if DoCommand(c, registry.RoleMotor, relay.CmdStop) == nil {
				ShellFrom(c).Disconnect()
			}
		}),
	}
)

// Reply is the printed result of a command.
type Reply struct {
	Command string `json:"command"`
	Reply   string `json:"reply"`
}

// String implements Stringer.
func (r Reply) String() string {
	return r.Reply
}

// DoCommand sends a command and prints the reply.
func DoCommand(c *ishell.Context, role registry.Role, cmd string) error {
	s := ShellFrom(c)
	reply, err := s.Send(role, cmd)
	if err != nil {
		c.Err(err)
		// a failed exchange drops the link.
		s.Disconnect()
		return err
	}
	s.Print(c, Reply{Command: cmd, Reply: reply})
	return nil
}

// FormatStatus prints a relay status into friendly string for display.
func FormatStatus(st *relay.Status) string {
	var w bytes.Buffer
	fmt.Fprintf(&w, "%s %s:%d", st.ID, st.Host, st.Port)
	if st.Ready() {
		w.WriteString(" ready")
	} else {
		w.WriteString(" waiting for peripherals")
	}
	if len(st.Clients) > 0 {
		fmt.Fprintf(&w, " (%d clients)", len(st.Clients))
	}
	return w.String()
}
