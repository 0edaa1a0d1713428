// Package topside runs the operator side: a control loop turning
// gamepad state into motor commands and a telemetry loop sampling the
// sensor controller.
package topside

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrMalformedCommand is returned by ParseMotorCommand.
var ErrMalformedCommand = errors.New("malformed motor command")

// MotorCommand holds the controls carried by a motor command.
type MotorCommand struct {
	LeftX, LeftY   float64
	RightX, RightY float64
	// Triggers are LT, RT, LB, RB.
	Triggers [4]float64
}

// NewMotorCommand picks the controls from gamepad readings laid out
// as gamepad.Source returns them.
func NewMotorCommand(sticks, triggers []float64) MotorCommand {
	var c MotorCommand
	c.LeftX, c.LeftY = at(sticks, 1), at(sticks, 2)
	c.RightX, c.RightY = at(sticks, 4), at(sticks, 5)
	for i := range c.Triggers {
		c.Triggers[i] = at(triggers, i)
	}
	return c
}

func at(vals []float64, i int) float64 {
	if i < len(vals) {
		return vals[i]
	}
	return 0
}

func formatNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// String renders "LX,LY\tRX,RY\tLT,RT,LB,RB".
func (c MotorCommand) String() string {
	var sb strings.Builder
	sb.WriteString(formatNum(c.LeftX) + "," + formatNum(c.LeftY))
	sb.WriteString("\t" + formatNum(c.RightX) + "," + formatNum(c.RightY) + "\t")
	for i, v := range c.Triggers {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(formatNum(v))
	}
	return sb.String()
}

// FormatMotorCommand formats the motor payload from gamepad readings.
func FormatMotorCommand(sticks, triggers []float64) string {
	return NewMotorCommand(sticks, triggers).String()
}

// ParseMotorCommand parses a payload produced by FormatMotorCommand.
func ParseMotorCommand(payload string) (MotorCommand, error) {
	var c MotorCommand
	groups := strings.Split(payload, "\t")
	if len(groups) != 3 {
		return c, errors.Wrapf(ErrMalformedCommand, "%d groups", len(groups))
	}
	targets := [][]*float64{
		{&c.LeftX, &c.LeftY},
		{&c.RightX, &c.RightY},
		{&c.Triggers[0], &c.Triggers[1], &c.Triggers[2], &c.Triggers[3]},
	}
	for i, group := range groups {
		fields := strings.Split(group, ",")
		if len(fields) != len(targets[i]) {
			return c, errors.Wrapf(ErrMalformedCommand, "group %d has %d values", i, len(fields))
		}
		for j, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return c, errors.Wrapf(ErrMalformedCommand, "%q", field)
			}
			*targets[i][j] = v
		}
	}
	return c, nil
}
