package adapter

import (
	"context"
	"fmt"
	"log/slog"

	gnet "github.com/shirou/gopsutil/v3/net"

	"netbloom/internal/domain"
)

// ConnectionLister lists sockets of the given kind (tcp, udp, inet...)
type ConnectionLister func(ctx context.Context, kind string) ([]gnet.ConnectionStat, error)

// SocketAdapter reports the local machine's established connections
type SocketAdapter struct {
	name   string
	kind   string
	list   ConnectionLister
	logger *slog.Logger
}

// NewSocketAdapter creates an adapter over the local socket table. An empty
// kind means "inet" (tcp and udp, v4 and v6).
func NewSocketAdapter(name, kind string, logger *slog.Logger) *SocketAdapter {
	if kind == "" {
		kind = "inet"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SocketAdapter{
		name:   name,
		kind:   kind,
		list:   gnet.ConnectionsWithContext,
		logger: logger,
	}
}

// WithLister replaces the socket source
func (s *SocketAdapter) WithLister(list ConnectionLister) *SocketAdapter {
	s.list = list
	return s
}

// Name returns the adapter identifier
func (s *SocketAdapter) Name() string {
	return s.name
}

// Type returns the adapter type
func (s *SocketAdapter) Type() AdapterType {
	return AdapterTypePolling
}

// Start initializes the adapter
func (s *SocketAdapter) Start(ctx context.Context) error {
	s.logger.Debug("socket adapter started", "kind", s.kind)
	return nil
}

// Stop shuts down the adapter
func (s *SocketAdapter) Stop() error {
	return nil
}

// Sync lists sockets and turns each connected one into a tuple. Connections
// accepted on a listening port are reported remote -> local on that port,
// all others local -> remote on the remote port.
func (s *SocketAdapter) Sync(ctx context.Context) ([]domain.Connection, error) {
	stats, err := s.list(ctx, s.kind)
	if err != nil {
		return nil, fmt.Errorf("list sockets: %w", err)
	}
	return SocketConnections(stats), nil
}

// SocketConnections converts socket stats to connection tuples
func SocketConnections(stats []gnet.ConnectionStat) []domain.Connection {
	listening := make(map[uint32]struct{})
	for _, st := range stats {
		if st.Status == "LISTEN" {
			listening[st.Laddr.Port] = struct{}{}
		}
	}

	conns := make([]domain.Connection, 0, len(stats))
	for _, st := range stats {
		if st.Raddr.IP == "" || st.Raddr.Port == 0 {
			continue
		}
		if st.Status != "" && st.Status != "ESTABLISHED" && st.Status != "NONE" {
			continue
		}

		if _, ok := listening[st.Laddr.Port]; ok {
			conns = append(conns, domain.Connection{
				Source: st.Raddr.IP,
				Target: st.Laddr.IP,
				Port:   int(st.Laddr.Port),
			})
			continue
		}
		conns = append(conns, domain.Connection{
			Source: st.Laddr.IP,
			Target: st.Raddr.IP,
			Port:   int(st.Raddr.Port),
		})
	}
	return conns
}
