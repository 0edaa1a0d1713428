// Package registry discovers the serial peripherals and binds each one
// to its role.
package registry

import (
	"path/filepath"
	"sort"
	"sync"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/robotalks/rovlink/pkg/device"
)

// LinkFactory creates a closed link on a device path.
type LinkFactory func(path string) *device.Link

// Registry holds at most one bound link per role.
type Registry struct {
	// Patterns are the glob patterns of candidate device paths.
	Patterns []string
	// Lister overrides Patterns to list candidate paths.
	Lister func() ([]string, error)
	// OnChange is invoked with the current bindings after they change.
	OnChange func(bindings map[Role]string)

	newLink LinkFactory
	lock    sync.Mutex
	links   map[Role]*device.Link

	// rebindLock keeps concurrent recoveries off the same candidate.
	rebindLock sync.Mutex
}

// ProbeResult is the outcome of probing one device path.
type ProbeResult struct {
	Path  string
	Role  Role
	Reply string
	Err   error
}

// New creates a Registry.
func New(patterns []string, newLink LinkFactory) *Registry {
	return &Registry{
		Patterns: patterns,
		newLink:  newLink,
		links:    make(map[Role]*device.Link),
	}
}

// Candidates lists candidate device paths in a stable order.
func (r *Registry) Candidates() ([]string, error) {
	if r.Lister != nil {
		paths, err := r.Lister()
		if err != nil {
			return nil, err
		}
		paths = append([]string(nil), paths...)
		sort.Strings(paths)
		return paths, nil
	}
	seen := make(map[string]bool)
	var paths []string
	for _, pattern := range r.Patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, errors.Wrapf(err, "pattern %q", pattern)
		}
		for _, path := range matches {
			if !seen[path] {
				seen[path] = true
				paths = append(paths, path)
			}
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// Discover assigns every candidate path. It stops at the first
// unreachable device and fails with *UnassignedRoleError if a role is
// left unbound.
func (r *Registry) Discover() error {
	paths, err := r.Candidates()
	if err != nil {
		return err
	}
	glog.Infof("%d candidate serial ports found", len(paths))
	for _, path := range paths {
		if _, err := r.Assign(path); err != nil {
			return err
		}
	}
	return r.CheckAssigned()
}

// CheckAssigned fails with *UnassignedRoleError unless both roles are bound.
func (r *Registry) CheckAssigned() error {
	r.lock.Lock()
	missing := &UnassignedRoleError{
		Motor:  r.links[RoleMotor] == nil,
		Sensor: r.links[RoleSensor] == nil,
	}
	r.lock.Unlock()
	if missing.Kind() != MissingNone {
		return missing
	}
	return nil
}

// Assign opens path, probes it and binds the link to the reported
// role. A link with an unknown role is closed and RoleUnknown is
// returned without error.
func (r *Registry) Assign(path string) (Role, error) {
	r.release(path)
	link := r.newLink(path)
	if err := link.Open(); err != nil {
		return RoleUnknown, &UnreachableDeviceError{Path: path, Err: err}
	}
	role, reply := probe(link)
	if role == RoleUnknown {
		glog.Infof("unknown serial device at %s: %q", path, reply)
		link.Close()
		return RoleUnknown, nil
	}
	glog.Infof("%s controller at %s", role, path)
	r.bind(role, link)
	return role, nil
}

// Rebind recovers a role after its link failed. The bound link is
// reconnected and probed again first; if that fails every unbound
// candidate is probed.
func (r *Registry) Rebind(role Role) error {
	r.rebindLock.Lock()
	defer r.rebindLock.Unlock()
	if link := r.Link(role); link != nil {
		if err := link.Reconnect(); err == nil {
			if got, _ := probe(link); got == role {
				glog.Infof("%s controller recovered at %s", role, link.Path())
				return nil
			}
		}
		link.Close()
		r.unbind(role, link)
	}

	paths, err := r.Candidates()
	if err != nil {
		return err
	}
	for _, path := range paths {
		if r.isBound(path) {
			continue
		}
		link := r.newLink(path)
		if err := link.Open(); err != nil {
			continue
		}
		got, _ := probe(link)
		switch {
		case got == role:
			glog.Infof("%s controller rebound at %s", role, path)
			r.bind(role, link)
			return nil
		case got != RoleUnknown && r.Link(got) == nil:
			r.bind(got, link)
		default:
			link.Close()
		}
	}
	return &UnassignedRoleError{Motor: role == RoleMotor, Sensor: role == RoleSensor}
}

// Reopen makes one attempt to reopen the link bound to role, without
// probing or rebinding.
func (r *Registry) Reopen(role Role) error {
	link := r.Link(role)
	if link == nil {
		return errors.Wrap(ErrRoleUnbound, role.String())
	}
	return link.Open()
}

// Probe reports the role of each path without binding anything.
func (r *Registry) Probe(paths []string) []ProbeResult {
	results := make([]ProbeResult, 0, len(paths))
	for _, path := range paths {
		res := ProbeResult{Path: path}
		link := r.newLink(path)
		if res.Err = link.Open(); res.Err == nil {
			res.Reply, res.Err = link.Exchange(ProbeCommand)
			res.Role = RoleFromReply(res.Reply)
			link.Close()
		}
		results = append(results, res)
	}
	return results
}

// SendMotorCommand forwards cmd to the motor controller.
func (r *Registry) SendMotorCommand(cmd string) (string, error) {
	return r.Send(RoleMotor, cmd)
}

// SendSensorCommand forwards cmd to the sensor controller.
func (r *Registry) SendSensorCommand(cmd string) (string, error) {
	return r.Send(RoleSensor, cmd)
}

// Send forwards cmd verbatim to the link bound to role.
func (r *Registry) Send(role Role, cmd string) (string, error) {
	link := r.Link(role)
	if link == nil {
		return "", errors.Wrap(ErrRoleUnbound, role.String())
	}
	return link.Exchange(cmd)
}

// Link returns the link bound to role, or nil.
func (r *Registry) Link(role Role) *device.Link {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.links[role]
}

// Bindings returns the device path bound to each role.
func (r *Registry) Bindings() map[Role]string {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.bindingsLocked()
}

// CloseAll closes and unbinds all links.
func (r *Registry) CloseAll() {
	for _, role := range Roles {
		link := r.Link(role)
		if link == nil {
			glog.V(1).Infof("%s controller not bound, nothing to close", role)
			continue
		}
		if err := link.Close(); err != nil {
			glog.Warningf("close %s controller at %s: %v", role, link.Path(), err)
		}
		r.unbind(role, link)
	}
}

func probe(link *device.Link) (Role, string) {
	reply, err := link.Exchange(ProbeCommand)
	if err != nil {
		return RoleUnknown, ""
	}
	return RoleFromReply(reply), reply
}

func (r *Registry) bind(role Role, link *device.Link) {
	r.lock.Lock()
	old := r.links[role]
	r.links[role] = link
	bindings := r.bindingsLocked()
	r.lock.Unlock()
	if old != nil && old != link {
		glog.Warningf("%s controller at %s replaced by %s", role, old.Path(), link.Path())
		old.Close()
	}
	r.notify(bindings)
}

func (r *Registry) unbind(role Role, link *device.Link) {
	r.lock.Lock()
	if r.links[role] != link {
		r.lock.Unlock()
		return
	}
	delete(r.links, role)
	bindings := r.bindingsLocked()
	r.lock.Unlock()
	r.notify(bindings)
}

// release unbinds and closes any link already open on path.
func (r *Registry) release(path string) {
	for _, role := range Roles {
		if link := r.Link(role); link != nil && link.Path() == path {
			link.Close()
			r.unbind(role, link)
		}
	}
}

func (r *Registry) isBound(path string) bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	for _, link := range r.links {
		if link.Path() == path {
			return true
		}
	}
	return false
}

func (r *Registry) bindingsLocked() map[Role]string {
	bindings := make(map[Role]string, len(r.links))
	for role, link := range r.links {
		bindings[role] = link.Path()
	}
	return bindings
}

func (r *Registry) notify(bindings map[Role]string) {
	if fn := r.OnChange; fn != nil {
		fn(bindings)
	}
}
