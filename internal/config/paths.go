package config

import (
	"os"
	"path/filepath"

	"github.com/samber/lo"
)

const (
	// EnvConfigPath names an explicit config file
	EnvConfigPath = "NETBLOOM_CONFIG"
	// ConfigFileName is looked up in the working directory
	ConfigFileName = "netbloom.yaml"
	// ConfigDirName is the directory under each config root
	ConfigDirName = "netbloom"
)

// SearchPaths returns the config file candidates in priority order. Roots
// whose variable is unset are left out.
func SearchPaths() []string {
	var paths []string
	if p := os.Getenv(EnvConfigPath); p != "" {
		paths = append(paths, p)
	}
	paths = append(paths, ConfigFileName)
	paths = append(paths, userConfigPaths()...)
	return append(paths, filepath.Join("/etc", ConfigDirName, "config.yaml"))
}

func userConfigPaths() []string {
	var paths []string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, ConfigDirName, "config.yaml"))
	}
	if home := os.Getenv("HOME"); home != "" {
		paths = append(paths, filepath.Join(home, ".config", ConfigDirName, "config.yaml"))
	}
	return paths
}

// FindConfigPath returns the first existing search path, made absolute when
// it is relative, or "" when there is none
func FindConfigPath() string {
	path, ok := lo.Find(SearchPaths(), fileExists)
	if !ok {
		return ""
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// DefaultConfigPath is where a new config file goes: the first user config
// root, or the working directory
func DefaultConfigPath() string {
	if paths := userConfigPaths(); len(paths) > 0 {
		return paths[0]
	}
	return ConfigFileName
}

// EnsureConfigDir creates the directory holding configPath
func EnsureConfigDir(configPath string) error {
	return os.MkdirAll(filepath.Dir(configPath), 0o755)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
