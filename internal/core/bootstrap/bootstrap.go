package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	gnet "github.com/shirou/gopsutil/v3/net"

	"netbloom/internal/adapter"
	"netbloom/internal/config"
)

// Options selects what the probes read. Zero values use the host defaults.
type Options struct {
	RoutePath     string
	ConntrackPath string
	Sockets       adapter.ConnectionLister
}

// Result contains all bootstrap findings
type Result struct {
	Duration time.Duration
	Evidence *EvidenceSet
}

// Run executes every probe
func Run(ctx context.Context, opts Options, logger *slog.Logger) *Result {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.RoutePath == "" {
		opts.RoutePath = DefaultRoutePath
	}
	if opts.ConntrackPath == "" {
		opts.ConntrackPath = adapter.DefaultConntrackPath
	}
	if opts.Sockets == nil {
		opts.Sockets = gnet.ConnectionsWithContext
	}

	start := time.Now()
	evidence := NewEvidenceSet()
	evidence.AddAll(DetectGateway(opts.RoutePath)...)
	evidence.AddAll(DetectLocalAddrs()...)
	evidence.AddAll(ProbeConntrack(opts.ConntrackPath)...)
	evidence.AddAll(ProbeSockets(ctx, opts.Sockets)...)

	r := &Result{Duration: time.Since(start), Evidence: evidence}
	logger.Debug("bootstrap complete", "evidence", evidence.Count(), "duration", r.Duration)
	for _, e := range evidence.All() {
		logger.Debug("bootstrap evidence",
			"property", e.Property,
			"value", e.Value,
			"confidence", e.Confidence,
			"method", e.Method)
	}
	return r
}

// Hub returns the detected gateway address
func (r *Result) Hub() (string, float64, bool) {
	return r.Evidence.String(CategoryNetwork, "gateway")
}

// Source recommends a data source for this host. A readable conntrack table
// sees every forwarded connection and wins over the local socket table.
func (r *Result) Source() (config.SourceConfig, bool) {
	switch {
	case r.Evidence.Bool(CategoryCapability, "conntrack_readable"):
		return config.SourceConfig{Name: "conntrack", Type: config.SourceConntrack}, true
	case r.Evidence.Bool(CategoryCapability, "sockets_listable"):
		return config.SourceConfig{Name: "sockets", Type: config.SourceSockets}, true
	default:
		return config.SourceConfig{}, false
	}
}

// Apply fills detected values into cfg: the hub when it is "auto", and with
// sources set a data source when none is configured. It returns one note per
// change. An undetectable hub falls back to the default.
func (r *Result) Apply(cfg *config.Config, sources bool) []string {
	var notes []string

	if cfg.Hub == config.HubAuto {
		if hub, conf, ok := r.Hub(); ok {
			cfg.Hub = hub
			notes = append(notes, fmt.Sprintf("hub %s from default route (confidence %.0f%%)", hub, conf*100))
		} else {
			cfg.Hub = config.DefaultHub
			notes = append(notes, fmt.Sprintf("no default route found, hub falls back to %s", config.DefaultHub))
		}
	}

	if sources && len(cfg.Sources) == 0 {
		if src, ok := r.Source(); ok {
			cfg.Sources = append(cfg.Sources, src)
			notes = append(notes, fmt.Sprintf("data source %s detected", src.Type))
		}
	}

	cfg.ApplyDefaults()
	return notes
}
