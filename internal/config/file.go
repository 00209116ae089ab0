package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk configuration shape. The format is selected by
// file extension: .toml, or .yaml/.yml.
type fileConfig struct {
	Host          string `toml:"host" yaml:"host"`
	APIVersion    string `toml:"api_version" yaml:"api_version"`
	User          string `toml:"user" yaml:"user"`
	Password      string `toml:"password" yaml:"password"`
	Zone          string `toml:"zone" yaml:"zone"`
	Record        string `toml:"record" yaml:"record"`
	Address       string `toml:"ip" yaml:"ip"`
	Verify        *bool  `toml:"verify" yaml:"verify"`
	Timeout       string `toml:"timeout" yaml:"timeout"`
	Interval      string `toml:"interval" yaml:"interval"`
	TLSSkipVerify *bool  `toml:"tls_skip_verify" yaml:"tls_skip_verify"`
	LogLevel      string `toml:"log_level" yaml:"log_level"`
	LogFormat     string `toml:"log_format" yaml:"log_format"`
	HealthPort    *int   `toml:"health_port" yaml:"health_port"`
}

// applyFile reads the config file at path and overlays its values onto cfg.
// Environment variables applied afterwards still win.
func applyFile(cfg *Config, path string) error {
	fc, err := loadFile(path)
	if err != nil {
		return err
	}

	if fc.Host != "" {
		cfg.Host = fc.Host
	}
	if fc.APIVersion != "" {
		cfg.APIVersion = fc.APIVersion
	}
	if fc.User != "" {
		cfg.User = fc.User
	}
	if fc.Password != "" {
		cfg.Password = fc.Password
	}
	if fc.Zone != "" {
		cfg.Zone = fc.Zone
	}
	if fc.Record != "" {
		cfg.Record = fc.Record
	}
	if fc.Address != "" {
		cfg.Address = fc.Address
	}
	if fc.Verify != nil {
		cfg.Verify = *fc.Verify
	}
	if fc.TLSSkipVerify != nil {
		cfg.TLSSkipVerify = *fc.TLSSkipVerify
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = fc.LogLevel
	}
	if fc.LogFormat != "" {
		cfg.LogFormat = fc.LogFormat
	}
	if fc.HealthPort != nil {
		cfg.HealthPort = *fc.HealthPort
	}

	if fc.Timeout != "" {
		d, err := time.ParseDuration(fc.Timeout)
		if err != nil {
			return fmt.Errorf("timeout: invalid duration %q", fc.Timeout)
		}
		cfg.Timeout = d
	}
	if fc.Interval != "" {
		d, err := time.ParseDuration(fc.Interval)
		if err != nil {
			return fmt.Errorf("interval: invalid duration %q", fc.Interval)
		}
		cfg.Interval = d
	}

	return nil
}

// loadFile parses a TOML or YAML config file.
func loadFile(path string) (*fileConfig, error) {
	var fc fileConfig

	switch ext := filepath.Ext(path); ext {
	case ".toml":
		if _, err := toml.DecodeFile(path, &fc); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file extension %q", ext)
	}

	return &fc, nil
}
