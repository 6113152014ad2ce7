// Package config provides configuration management for netbloom.
//
// One config file describes one monitored data source: its identity (used to
// namespace persisted positions), the hub address, the snapshot sources, the
// layout policy and where positions are stored.
//
// Config file locations (priority order):
//  1. $NETBLOOM_CONFIG
//  2. ./netbloom.yaml
//  3. $XDG_CONFIG_HOME/netbloom/config.yaml
//  4. ~/.config/netbloom/config.yaml
//  5. /etc/netbloom/config.yaml
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"netbloom/internal/forcesim"
	"netbloom/internal/layout"
	"netbloom/internal/topology"
)

// Defaults
const (
	DefaultHub            = "192.168.1.1"
	DefaultUpdateInterval = 5 * time.Second
	DefaultTickInterval   = 16 * time.Millisecond
	DefaultAddr           = ":8080"
	DefaultSQLitePath     = "./netbloom.db"
	DefaultViewportWidth  = 1200
	DefaultViewportHeight = 800
)

// HubAuto asks for the hub to be detected from the default route
const HubAuto = "auto"

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		// No config found - return defaults
		return DefaultConfig(), "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, path, err
	}

	return cfg, path, nil
}

// Parse decodes YAML config data and applies defaults
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	return cfg, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults. DataSource is left empty; it must
// be supplied by the file or the command line.
func DefaultConfig() *Config {
	cfg := &Config{
		Version: 1,
	}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Hub == "" {
		c.Hub = DefaultHub
	}
	if c.UpdateInterval == 0 {
		c.UpdateInterval = Duration(DefaultUpdateInterval)
	}
	if c.Viewport.Width == 0 {
		c.Viewport.Width = DefaultViewportWidth
	}
	if c.Viewport.Height == 0 {
		c.Viewport.Height = DefaultViewportHeight
	}

	if c.Layout.TickInterval == 0 {
		c.Layout.TickInterval = Duration(DefaultTickInterval)
	}
	def := layout.DefaultConfig()
	if c.Layout.NudgeAmount == 0 {
		c.Layout.NudgeAmount = def.NudgeAmount
	}
	if c.Layout.NudgeCeiling == 0 {
		c.Layout.NudgeCeiling = def.NudgeCeiling
	}
	if c.Layout.DragAlphaTarget == 0 {
		c.Layout.DragAlphaTarget = def.DragAlphaTarget
	}
	if c.Layout.SettleThreshold == 0 {
		c.Layout.SettleThreshold = def.SettleThreshold
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Storage.SQLite.Path == "" {
		c.Storage.SQLite.Path = DefaultSQLitePath
	}

	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultAddr
	}

	for i := range c.Sources {
		if c.Sources[i].Interval == 0 {
			c.Sources[i].Interval = c.UpdateInterval
		}
		if c.Sources[i].Name == "" {
			c.Sources[i].Name = c.Sources[i].Type
		}
	}
}

// ApplyDefaults re-applies defaults after command line overrides
func (c *Config) ApplyDefaults() {
	c.applyDefaults()
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the config. A missing data source identity is an error.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return c.validateStorage()
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func (c *Config) validateStorage() error {
	switch c.Storage.Driver {
	case "postgres":
		// empty DSN falls back to the driver default
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return errors.New("invalid config: storage.s3.bucket is required for the s3 driver")
		}
	}
	return nil
}

// ForceConfig returns the simulation parameters
func (c *Config) ForceConfig() forcesim.Config {
	return c.Layout.Force
}

// Policy returns the stabilizer policy
func (c *Config) Policy() layout.Config {
	return c.Layout.Config
}

// ViewportSize returns the layout viewport
func (c *Config) ViewportSize() topology.Viewport {
	return c.Viewport
}

// Summary returns a human-readable config summary
func (c *Config) Summary() string {
	summary := fmt.Sprintf("Data source: %s, Hub: %s\n", c.DataSource, c.Hub)
	summary += fmt.Sprintf("Update interval: %s, Tick: %s, Viewport: %.0fx%.0f\n",
		c.UpdateInterval.Duration(), c.Layout.TickInterval.Duration(), c.Viewport.Width, c.Viewport.Height)
	summary += fmt.Sprintf("Storage: %s, Listen: %s\n", c.Storage.Driver, c.HTTP.Addr)
	summary += fmt.Sprintf("Sources (%d):", len(c.Sources))
	for _, s := range c.Sources {
		summary += fmt.Sprintf(" %s[%s]", s.Name, s.Type)
	}

	return summary
}
