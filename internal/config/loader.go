package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
)

// validSchemes lists the connection URI schemes the server can listen on.
var validSchemes = map[string]bool{
	"stdio": true,
	"tcp":   true,
	"unix":  true,
	"ws":    true,
}

// validSystems lists the recognised platform tags for keyword models.
var validSystems = map[string]bool{
	"linux":        true,
	"raspberry-pi": true,
}

// Load reads the YAML configuration file at path, applied on top of
// [Defaults], and returns a validated [Config].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r on top of [Defaults] and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Defaults()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Server.URI != "" {
		u, err := url.Parse(cfg.Server.URI)
		if err != nil {
			errs = append(errs, fmt.Errorf("server.uri %q is not a valid URI: %v", cfg.Server.URI, err))
		} else if !validSchemes[u.Scheme] {
			errs = append(errs, fmt.Errorf("server.uri scheme %q is invalid; valid schemes: stdio, tcp, unix, ws", u.Scheme))
		}
	}

	if cfg.Wake.Sensitivity < 0 || cfg.Wake.Sensitivity > 1 {
		errs = append(errs, fmt.Errorf("wake.sensitivity %.2f is out of range [0, 1]", cfg.Wake.Sensitivity))
	}

	if cfg.Wake.System != "" && !validSystems[cfg.Wake.System] {
		errs = append(errs, fmt.Errorf("wake.system %q is invalid; valid values: linux, raspberry-pi", cfg.Wake.System))
	}

	return errors.Join(errs...)
}
