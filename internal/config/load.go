// internal/config/load.go
package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Load reads a YAML or TOML (by .toml extension) config file and applies
// MONITOR_* environment overrides. It does not validate.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}

	cfg, err := Parse(data, strings.EqualFold(filepath.Ext(path), ".toml"))
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes data as TOML or YAML. Unknown YAML keys are rejected.
func Parse(data []byte, isTOML bool) (*Config, error) {
	cfg := &Config{}

	if isTOML {
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, errors.Errorf("unknown key %q", undecoded[0].String())
		}
		return cfg, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("MONITOR_PORT"); v != "" {
		c.Connection.Port = v
	}
	if v := os.Getenv("MONITOR_BAUD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(err, "MONITOR_BAUD")
		}
		c.Connection.BaudRate = n
	}
	if v := os.Getenv("MONITOR_INTERVAL_MS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(err, "MONITOR_INTERVAL_MS")
		}
		c.Poll.IntervalMs = n
	}
	if v := os.Getenv("MONITOR_LISTEN"); v != "" {
		c.Server.ListenAddr = v
	}
	if v := os.Getenv("MONITOR_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}
