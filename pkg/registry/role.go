package registry

import "strings"

// Role is the logical identity of a peripheral.
type Role int

// Roles
const (
	RoleUnknown Role = iota
	RoleMotor
	RoleSensor
)

// ProbeCommand asks a peripheral for its type.
const ProbeCommand = "TYPE"

// Roles lists the roles a registry binds, in binding report order.
var Roles = []Role{RoleMotor, RoleSensor}

// RoleFromReply classifies the trimmed reply to ProbeCommand.
func RoleFromReply(reply string) Role {
	switch strings.TrimSpace(reply) {
	case "MOTOR":
		return RoleMotor
	case "SENSOR":
		return RoleSensor
	}
	return RoleUnknown
}

// String implements fmt.Stringer.
func (r Role) String() string {
	switch r {
	case RoleMotor:
		return "motor"
	case RoleSensor:
		return "sensor"
	}
	return "unknown"
}
