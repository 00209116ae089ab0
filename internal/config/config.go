// Package config handles loading and validation of ipadns configuration
// from environment variables and an optional config file.
package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Configuration defaults.
const (
	DefaultAPIVersion = "2.156"
	DefaultRecord     = "ipadns-smoke"
	DefaultAddress    = "203.0.113.10" // TEST-NET-3, safe throwaway value
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "text"
	DefaultTimeout    = 30 * time.Second
)

var apiVersionRe = regexp.MustCompile(`^[.0-9]+$`)

// Config holds the application configuration. All settings use the IPADNS_
// prefix; IPA_HOST, IPA_TEST_DOMAIN and USER are honored as fallbacks for
// compatibility with the original operator script.
type Config struct {
	// FreeIPA connection
	Host          string        // IPADNS_HOST
	APIVersion    string        // IPADNS_API_VERSION
	User          string        // IPADNS_USER
	Password      string        // IPADNS_PASSWORD or IPADNS_PASSWORD_FILE
	Timeout       time.Duration // IPADNS_TIMEOUT
	TLSSkipVerify bool          // IPADNS_TLS_SKIP_VERIFY

	// Smoke-test record
	Zone    string // IPADNS_ZONE
	Record  string // IPADNS_RECORD
	Address string // IPADNS_IP
	Verify  bool   // IPADNS_VERIFY: confirm changes with a DNS query

	// Canary mode: rerun the round trip on this interval. Zero runs once.
	Interval time.Duration // IPADNS_INTERVAL

	// Observability
	LogLevel   string // IPADNS_LOG_LEVEL
	LogFormat  string // IPADNS_LOG_FORMAT
	HealthPort int    // IPADNS_HEALTH_PORT, 0 disables the server
}

// Load builds the configuration from the optional config file pointed to by
// IPADNS_CONFIG_FILE, then overlays environment variables. Validation errors
// are aggregated so a broken deployment reports everything at once.
func Load() (*Config, error) {
	cfg := &Config{
		APIVersion: DefaultAPIVersion,
		Record:     DefaultRecord,
		Address:    DefaultAddress,
		LogLevel:   DefaultLogLevel,
		LogFormat:  DefaultLogFormat,
		Timeout:    DefaultTimeout,
	}

	var errs []string

	if path := getEnv("IPADNS_CONFIG_FILE"); path != "" {
		if err := applyFile(cfg, path); err != nil {
			errs = append(errs, fmt.Sprintf("IPADNS_CONFIG_FILE: %v", err))
		}
	}

	applyEnv(cfg, &errs)
	errs = append(errs, validate(cfg)...)

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration:\n - %s", strings.Join(errs, "\n - "))
	}

	return cfg, nil
}

// applyEnv overlays environment variables onto cfg.
func applyEnv(cfg *Config, errs *[]string) {
	if v := firstEnv("IPADNS_HOST", "IPA_HOST"); v != "" {
		cfg.Host = v
	}
	if v := getEnv("IPADNS_API_VERSION"); v != "" {
		cfg.APIVersion = v
	}
	if v := firstEnv("IPADNS_USER", "USER"); v != "" {
		cfg.User = v
	}
	if v := getEnvOrFile("IPADNS_PASSWORD", "IPADNS_PASSWORD_FILE"); v != "" {
		cfg.Password = v
	}
	if v := firstEnv("IPADNS_ZONE", "IPA_TEST_DOMAIN"); v != "" {
		cfg.Zone = v
	}
	if v := getEnv("IPADNS_RECORD"); v != "" {
		cfg.Record = v
	}
	if v := getEnv("IPADNS_IP"); v != "" {
		cfg.Address = v
	}
	if v := getEnv("IPADNS_VERIFY"); v != "" {
		cfg.Verify = parseBool(v, false)
	}
	if v := getEnv("IPADNS_TLS_SKIP_VERIFY"); v != "" {
		cfg.TLSSkipVerify = parseBool(v, false)
	}
	if v := getEnv("IPADNS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := getEnv("IPADNS_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	if v := getEnv("IPADNS_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Sprintf("IPADNS_TIMEOUT: invalid duration %q", v))
		} else {
			cfg.Timeout = d
		}
	}
	if v := getEnv("IPADNS_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Sprintf("IPADNS_INTERVAL: invalid duration %q", v))
		} else {
			cfg.Interval = d
		}
	}
	if v := getEnv("IPADNS_HEALTH_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Sprintf("IPADNS_HEALTH_PORT: invalid integer %q", v))
		} else {
			cfg.HealthPort = port
		}
	}
}

// validate returns a list of validation problems (may be empty).
func validate(cfg *Config) []string {
	var errs []string

	if cfg.Host == "" {
		errs = append(errs, "IPADNS_HOST: required but not set")
	}
	if cfg.Zone == "" {
		errs = append(errs, "IPADNS_ZONE: required but not set")
	}
	if !apiVersionRe.MatchString(cfg.APIVersion) {
		errs = append(errs, fmt.Sprintf("IPADNS_API_VERSION: invalid value %q (digits and dots only)", cfg.APIVersion))
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("IPADNS_LOG_LEVEL: invalid value %q (must be debug, info, warn, or error)", cfg.LogLevel))
	}

	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	switch cfg.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Sprintf("IPADNS_LOG_FORMAT: invalid value %q (must be json or text)", cfg.LogFormat))
	}

	if cfg.Timeout <= 0 {
		errs = append(errs, "IPADNS_TIMEOUT: must be positive")
	}
	if cfg.Interval < 0 {
		errs = append(errs, "IPADNS_INTERVAL: must not be negative")
	}
	if cfg.HealthPort < 0 || cfg.HealthPort > 65535 {
		errs = append(errs, fmt.Sprintf("IPADNS_HEALTH_PORT: %d is out of range", cfg.HealthPort))
	}

	return errs
}
