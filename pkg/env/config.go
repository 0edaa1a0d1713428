// Package env layers configuration sources for the rovlink binaries.
//
// Each package keeps its own defaultConfig and registers flags in
// SetupFlags. Before that, the package calls Load in its init func so
// the defaults it exposes already include, in order:
//
//   - the section named after the package from the YAML file pointed
//     by $ROV_CONFIG;
//   - environment variables declared with `env` struct tags.
//
// Command line flags are parsed last and win.
package env

import (
	"io/ioutil"
	"os"
	"sync"

	envparse "github.com/caarlos0/env/v6"
	"github.com/golang/glog"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// ConfigFileEnv is the environment variable naming the YAML config file.
const ConfigFileEnv = "ROV_CONFIG"

// File is a parsed YAML config file made of named sections.
type File struct {
	Path     string
	sections map[string]interface{}
}

var (
	defaultFile     *File
	defaultFileErr  error
	defaultFileOnce sync.Once
)

// ReadFile parses a YAML config file.
func ReadFile(path string) (*File, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	f := &File{Path: path}
	if err := yaml.Unmarshal(data, &f.sections); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	return f, nil
}

// Decode decodes a section into target. A missing section leaves
// target untouched.
func (f *File) Decode(section string, target interface{}) error {
	if f == nil {
		return nil
	}
	val, ok := f.sections[section]
	if !ok || val == nil {
		return nil
	}
	out, err := yaml.Marshal(val)
	if err != nil {
		return errors.Wrapf(err, "section %q", section)
	}
	if err := yaml.UnmarshalStrict(out, target); err != nil {
		return errors.Wrapf(err, "%s: section %q", f.Path, section)
	}
	return nil
}

// DefaultFile returns the file named by $ROV_CONFIG, or nil if unset.
func DefaultFile() (*File, error) {
	defaultFileOnce.Do(func() {
		if path := os.Getenv(ConfigFileEnv); path != "" {
			defaultFile, defaultFileErr = ReadFile(path)
		}
	})
	return defaultFile, defaultFileErr
}

// LoadFrom applies the file section and then environment variables.
func LoadFrom(f *File, section string, target interface{}) error {
	if err := f.Decode(section, target); err != nil {
		return err
	}
	if err := envparse.Parse(target); err != nil {
		return errors.Wrapf(err, "environment for %q", section)
	}
	return nil
}

// Load applies the default file section and environment variables.
func Load(section string, target interface{}) error {
	f, err := DefaultFile()
	if err != nil {
		return err
	}
	return LoadFrom(f, section, target)
}

// MustLoad is Load for init funcs, it exits on error.
func MustLoad(section string, target interface{}) {
	if err := Load(section, target); err != nil {
		glog.Exitf("load %s config: %v", section, err)
	}
}
