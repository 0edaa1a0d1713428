// Package gamepad adds shell commands using a local gamepad.
package gamepad

import (
	"context"
	"fmt"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/rovlink/pkg/cli/sh"
	"github.com/robotalks/rovlink/pkg/gamepad"
	"github.com/robotalks/rovlink/pkg/registry"
	"github.com/robotalks/rovlink/pkg/relay"
	"github.com/robotalks/rovlink/pkg/topside"
)

const (
	defaultDuration = 5 * time.Second
	sampleInterval  = 250 * time.Millisecond
)

var (
	// PadStatusCmd prints the local gamepad state.
	PadStatusCmd = ishell.Cmd{
		Name:    "pad",
		Aliases: []string{"p"},
		Help:    "[DURATION] print gamepad state",
		Func: func(c *ishell.Context) {
			withPad(c, func(pad *gamepad.Pad) error {
				c.Printf("buttons %v sticks %v triggers %v\n",
					pad.ReadButtons(), pad.ReadSticks(), pad.ReadTriggers())
				return nil
			})
		},
	}

	// PadDriveCmd drives the motor channel from the local gamepad.
	PadDriveCmd = ishell.Cmd{
		Name:    "pad.drive",
		Aliases: []string{"pd"},
		Help:    "[DURATION] send motor commands from gamepad",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			withPad(c, func(pad *gamepad.Pad) error {
				cmd := relay.CmdMotor + topside.FormatMotorCommand(pad.ReadSticks(), pad.ReadTriggers())
				reply, err := s.Send(registry.RoleMotor, cmd)
				if err != nil {
					s.Disconnect()
					return err
				}
				c.Printf("%s => %s\n", cmd, reply)
				return nil
			})
		}),
	}
)

func withPad(c *ishell.Context, fn func(*gamepad.Pad) error) {
	duration := defaultDuration
	if len(c.Args) > 0 {
		val, err := time.ParseDuration(c.Args[0])
		if err != nil {
			c.Err(fmt.Errorf("invalid DURATION: %v", err))
			return
		}
		duration = val
	}
	poller := gamepad.Default().NewPoller()
	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()
	go poller.Run(ctx)

	ticker := time.NewTicker(sampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := fn(poller.Pad); err != nil {
				c.Err(err)
				return
			}
		}
	}
}

func init() {
	sh.AddCmds(
		&PadStatusCmd,
		&PadDriveCmd,
	)
}
