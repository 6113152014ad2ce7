package adapter

import (
	"fmt"
	"log/slog"

	"netbloom/internal/config"
)

// FromConfig builds the adapter for one configured source
func FromConfig(src config.SourceConfig, logger *slog.Logger) (Adapter, AdapterConfig, error) {
	ac := AdapterConfig{
		Enabled:      true,
		PollInterval: src.Interval.Duration(),
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("adapter", src.Name)

	switch src.Type {
	case config.SourceFile:
		a, err := NewFileAdapter(src.Name, src.Path, logger)
		if err != nil {
			return nil, ac, err
		}
		return a, ac, nil

	case config.SourceSockets:
		return NewSocketAdapter(src.Name, src.Kind, logger), ac, nil

	case config.SourceConntrack:
		return NewConntrackAdapter(src.Name, src.Path, logger), ac, nil

	case config.SourceSSHConntrack:
		if src.SSH == nil {
			return nil, ac, fmt.Errorf("source %s: ssh settings required", src.Name)
		}
		target := SSHTarget{
			Host:           src.SSH.Host,
			Port:           src.SSH.Port,
			User:           src.SSH.User,
			KeyPath:        src.SSH.KeyPath,
			KnownHostsPath: src.SSH.KnownHostsPath,
			Timeout:        src.SSH.Timeout.Duration(),
		}
		return NewSSHConntrackAdapter(src.Name, target, src.Path, logger), ac, nil

	default:
		return nil, ac, fmt.Errorf("source %s: unknown type %q", src.Name, src.Type)
	}
}
