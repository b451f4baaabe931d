package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultTick      = 100 * time.Millisecond
	DefaultAdminAddr = "127.0.0.1:9464"

	// MaxTick keeps the loop responsive relative to the finest schedules.
	MaxTick = 10 * time.Second
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Driver: "file",
			Path:   filepath.Join("~", ".cronhub", "cron", "jobs.json"),
		},
		Logging: LoggingConfig{Level: "info", Console: true},
	}
}

// Load reads path (JSON, or YAML by extension) over the defaults, applies
// CRONHUB_* env overrides and validates the result. An empty path skips the
// file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := decodeInto(path, b, cfg); err != nil {
			return nil, err
		}
	}
	applyEnvOverrides(cfg, os.Getenv)
	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decodeInto strictly decodes data over cfg: unknown fields and trailing
// documents are rejected.
func decodeInto(path string, data []byte, cfg *Config) error {
	jb, format, err := coerceToJSONBytes(path, data)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("parse %s config %s: %w", format, path, err)
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return fmt.Errorf("invalid config %s: trailing data", path)
		}
		return err
	}
	return nil
}

// Validate checks every duration and required field.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Store.Path) == "" {
		errs = append(errs, errors.New("store.path is required"))
	}
	switch strings.ToLower(strings.TrimSpace(c.Store.Driver)) {
	case "", "file", "json", "sqlite", "sqlite3":
	default:
		errs = append(errs, fmt.Errorf("store.driver: unknown driver %q", c.Store.Driver))
	}
	if _, err := ParseDurationField("store.busy_timeout", c.Store.BusyTimeout); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.TickInterval(); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurationField("handler.timeout", c.Handler.Timeout); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// TickInterval is the resolved scheduler tick.
func (c *Config) TickInterval() (time.Duration, error) {
	d, err := ParseDurationOrDefault("scheduler.tick", c.Scheduler.Tick, DefaultTick)
	if err != nil {
		return 0, err
	}
	if d > MaxTick {
		return 0, fmt.Errorf("scheduler.tick: %s exceeds %s", d, MaxTick)
	}
	return d, nil
}

// WatchEnabled reports whether the store watcher should run.
func (c *Config) WatchEnabled() bool {
	return c.Scheduler.Watch == nil || *c.Scheduler.Watch
}

// AdminAddr is the resolved admin listen address.
func (c *Config) AdminAddr() string {
	if a := strings.TrimSpace(c.Admin.Addr); a != "" {
		return a
	}
	return DefaultAdminAddr
}

func (c *Config) expandPaths() error {
	var err error
	if c.Store.Path, err = expandHome(c.Store.Path); err != nil {
		return err
	}
	c.Logging.File.Path, err = expandHome(c.Logging.File.Path)
	return err
}

// expandHome expands a leading ~ in path.
func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, "~"+string(filepath.Separator)) {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand %q: %w", path, err)
	}
	return filepath.Join(home, path[1:]), nil
}
