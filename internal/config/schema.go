package config

import (
	"time"

	"netbloom/internal/forcesim"
	"netbloom/internal/layout"
	"netbloom/internal/topology"
)

// Config is the root configuration structure
type Config struct {
	Version int `yaml:"version"`
	// DataSource identifies the monitored connection feed and namespaces the
	// persisted positions
	DataSource     string            `yaml:"data_source" validate:"required"`
	Hub            string            `yaml:"hub" validate:"required,ip|eq=auto"`
	UpdateInterval Duration          `yaml:"update_interval" validate:"gt=0"`
	Viewport       topology.Viewport `yaml:"viewport"`
	Layout         LayoutConfig      `yaml:"layout"`
	Storage        StorageConfig     `yaml:"storage"`
	HTTP           HTTPConfig        `yaml:"http"`
	Log            LogConfig         `yaml:"log"`
	Sources        []SourceConfig    `yaml:"sources,omitempty" validate:"dive"`
}

// LayoutConfig holds the stabilizer policy and force parameters
type LayoutConfig struct {
	layout.Config `yaml:",inline"`
	TickInterval  Duration        `yaml:"tick_interval" validate:"gt=0"`
	Force         forcesim.Config `yaml:"force"`
}

// StorageConfig selects the position store
type StorageConfig struct {
	Driver    string         `yaml:"driver" validate:"oneof=memory sqlite postgres s3"`
	KeyPrefix string         `yaml:"key_prefix,omitempty"`
	SQLite    SQLiteConfig   `yaml:"sqlite"`
	Postgres  PostgresConfig `yaml:"postgres"`
	S3        S3Config       `yaml:"s3"`
}

// SQLiteConfig holds SQLite settings
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// PostgresConfig holds Postgres settings
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// S3Config holds bucket settings. Credentials come from the AWS chain.
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region,omitempty"`
	Prefix    string `yaml:"prefix,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty"`
	PathStyle bool   `yaml:"path_style,omitempty"`
}

// HTTPConfig holds server settings
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig holds logging settings
type LogConfig struct {
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty"`
}

// Source types
const (
	SourceFile         = "file"
	SourceSockets      = "sockets"
	SourceConntrack    = "conntrack"
	SourceSSHConntrack = "ssh-conntrack"
)

// SourceConfig describes one snapshot source
type SourceConfig struct {
	Name     string   `yaml:"name"`
	Type     string   `yaml:"type" validate:"oneof=file sockets conntrack ssh-conntrack"`
	Interval Duration `yaml:"interval,omitempty"`
	// Path is the snapshot file (file) or conntrack table (conntrack, ssh-conntrack)
	Path string `yaml:"path,omitempty" validate:"required_if=Type file"`
	// Kind filters socket kinds for the sockets source (tcp, udp, inet...)
	Kind string     `yaml:"kind,omitempty"`
	SSH  *SSHConfig `yaml:"ssh,omitempty" validate:"required_if=Type ssh-conntrack"`
}

// SSHConfig holds SSH connection settings (paths, not secret values)
type SSHConfig struct {
	Host           string   `yaml:"host" validate:"required"`
	Port           int      `yaml:"port,omitempty"`
	User           string   `yaml:"user" validate:"required"`
	KeyPath        string   `yaml:"key_path,omitempty"`
	KnownHostsPath string   `yaml:"known_hosts_path,omitempty"`
	Timeout        Duration `yaml:"timeout,omitempty"`
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
