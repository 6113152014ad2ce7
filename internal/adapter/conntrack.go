package adapter

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"netbloom/internal/domain"
)

// DefaultConntrackPath is the kernel connection tracking table
const DefaultConntrackPath = "/proc/net/nf_conntrack"

// closedStates are tracked entries that no longer carry traffic
var closedStates = map[string]struct{}{
	"TIME_WAIT":  {},
	"CLOSE":      {},
	"CLOSE_WAIT": {},
	"LAST_ACK":   {},
	"FIN_WAIT":   {},
}

// ParseConntrack reads conntrack table lines (the /proc format or the output
// of conntrack -L) and returns the original-direction tuple of every live
// entry. Lines without addresses or a destination port are skipped.
func ParseConntrack(r io.Reader) ([]domain.Connection, error) {
	conns := make([]domain.Connection, 0)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		c, ok := parseConntrackLine(scanner.Text())
		if ok {
			conns = append(conns, c)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read conntrack: %w", err)
	}
	return conns, nil
}

func parseConntrackLine(line string) (domain.Connection, bool) {
	var c domain.Connection
	var haveSrc, haveDst, havePort, finished bool

	for _, field := range strings.Fields(line) {
		if _, closed := closedStates[field]; closed {
			return c, false
		}
		key, value, ok := strings.Cut(field, "=")
		if !ok || finished {
			continue
		}
		switch key {
		case "src":
			if haveSrc {
				// reply direction starts
				finished = true
				continue
			}
			c.Source, haveSrc = value, true
		case "dst":
			if !haveDst {
				c.Target, haveDst = value, true
			}
		case "dport":
			if !havePort {
				port, err := strconv.Atoi(value)
				if err != nil {
					return c, false
				}
				c.Port, havePort = port, true
			}
		}
	}

	return c, haveSrc && haveDst && havePort
}

// ConntrackAdapter reads the local connection tracking table
type ConntrackAdapter struct {
	name   string
	path   string
	logger *slog.Logger
}

// NewConntrackAdapter creates an adapter reading path (DefaultConntrackPath
// when empty)
func NewConntrackAdapter(name, path string, logger *slog.Logger) *ConntrackAdapter {
	if path == "" {
		path = DefaultConntrackPath
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ConntrackAdapter{name: name, path: path, logger: logger}
}

// Name returns the adapter identifier
func (a *ConntrackAdapter) Name() string {
	return a.name
}

// Type returns the adapter type
func (a *ConntrackAdapter) Type() AdapterType {
	return AdapterTypePolling
}

// Start checks that the table is readable
func (a *ConntrackAdapter) Start(ctx context.Context) error {
	f, err := os.Open(a.path)
	if err != nil {
		return fmt.Errorf("conntrack table: %w", err)
	}
	f.Close()
	a.logger.Debug("conntrack adapter started", "path", a.path)
	return nil
}

// Stop shuts down the adapter
func (a *ConntrackAdapter) Stop() error {
	return nil
}

// Sync reads and parses the table
func (a *ConntrackAdapter) Sync(ctx context.Context) ([]domain.Connection, error) {
	f, err := os.Open(a.path)
	if err != nil {
		return nil, fmt.Errorf("open conntrack table: %w", err)
	}
	defer f.Close()
	return ParseConntrack(f)
}
