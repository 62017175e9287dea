// Package config persists the small set of session defaults that
// survive restarts: the active project, zone, and last viewed
// resource. State lives in a yaml file under the user config dir.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	appDir   = "cloudtop"
	fileName = "config.yaml"
)

type Config struct {
	Project      string `yaml:"project,omitempty"`
	Zone         string `yaml:"zone,omitempty"`
	LastResource string `yaml:"last_resource,omitempty"`

	path string
}

// Path returns the config file location. CLOUDTOP_CONFIG_DIR
// overrides the user config dir when set.
func Path() (string, error) {
	if dir := os.Getenv("CLOUDTOP_CONFIG_DIR"); dir != "" {
		return filepath.Join(dir, fileName), nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, appDir, fileName), nil
}

// Load reads the persisted config. A missing file is not an error;
// it yields an empty config that Save will create.
func Load() (*Config, error) {
	p, err := Path()
	if err != nil {
		return &Config{}, err
	}
	c := &Config{path: p}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return c, nil
		}
		return c, err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return &Config{path: p}, err
	}
	return c, nil
}

func (c *Config) Save() error {
	if c.path == "" {
		p, err := Path()
		if err != nil {
			return err
		}
		c.path = p
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0o600)
}

func (c *Config) SetProject(p string) {
	c.Project = p
}

func (c *Config) SetZone(z string) {
	c.Zone = z
}

func (c *Config) SetLastResource(key string) {
	c.LastResource = key
}
