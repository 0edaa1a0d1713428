package registry

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrRoleUnbound indicates no link is bound for the role.
var ErrRoleUnbound = errors.New("role not bound")

// UnreachableDeviceError is returned when a candidate can't be opened.
// It aborts discovery.
type UnreachableDeviceError struct {
	Path string
	Err  error
}

// Error implements error.
func (e *UnreachableDeviceError) Error() string {
	return fmt.Sprintf("unable to connect to device at %s: %v", e.Path, e.Err)
}

// Unwrap returns the open error.
func (e *UnreachableDeviceError) Unwrap() error { return e.Err }

// MissingRoles tells which roles discovery failed to bind.
type MissingRoles int

// Missing role combinations.
const (
	MissingNone MissingRoles = iota
	MissingMotor
	MissingSensor
	MissingBoth
)

// UnassignedRoleError is returned when discovery completes without
// binding both roles.
type UnassignedRoleError struct {
	Motor  bool
	Sensor bool
}

// Kind tells which roles are missing.
func (e *UnassignedRoleError) Kind() MissingRoles {
	switch {
	case e.Motor && e.Sensor:
		return MissingBoth
	case e.Motor:
		return MissingMotor
	case e.Sensor:
		return MissingSensor
	}
	return MissingNone
}

// Error implements error.
func (e *UnassignedRoleError) Error() string {
	switch e.Kind() {
	case MissingBoth:
		return "neither motor nor sensor controller found"
	case MissingMotor:
		return "motor controller not found"
	case MissingSensor:
		return "sensor controller not found"
	}
	return "all roles assigned"
}
