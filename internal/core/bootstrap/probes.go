package bootstrap

import (
	"context"
	"os"

	"netbloom/internal/adapter"
)

// ProbeConntrack reports whether the connection tracking table at path can
// be read
func ProbeConntrack(path string) []Evidence {
	f, err := os.Open(path)
	if err != nil {
		return []Evidence{NewEvidence(
			CategoryCapability,
			"conntrack_readable",
			false,
			0.9,
			"probe",
			"open "+path+": "+err.Error(),
		)}
	}
	f.Close()

	return []Evidence{NewEvidence(
		CategoryCapability,
		"conntrack_readable",
		true,
		0.95,
		"probe",
		"open "+path+" succeeded",
	)}
}

// ProbeSockets reports whether the local socket table can be listed
func ProbeSockets(ctx context.Context, list adapter.ConnectionLister) []Evidence {
	stats, err := list(ctx, "inet")
	if err != nil {
		return []Evidence{NewEvidence(
			CategoryCapability,
			"sockets_listable",
			false,
			0.9,
			"gopsutil",
			"list sockets: "+err.Error(),
		)}
	}

	return []Evidence{NewEvidence(
		CategoryCapability,
		"sockets_listable",
		true,
		0.9,
		"gopsutil",
		"list sockets succeeded",
	).WithRaw(map[string]any{"sockets": len(stats)})}
}
