package env

import (
	"os"

	"github.com/denisbrodbeck/machineid"
)

// MachineID retrieves the unique ID identifying the machine.
// The ID is hashed with the application name so the raw machine ID
// is never published. Falls back to the hostname.
func MachineID() string {
	id, err := machineid.ProtectedID("rovlink")
	if err == nil {
		return id[:12]
	}
	if host, err := os.Hostname(); err == nil {
		return host
	}
	return "unknown"
}
