// Package snapshot cleans raw connection snapshots and diffs them against the
// previously accepted snapshot.
package snapshot

import (
	"net/netip"

	"netbloom/internal/domain"
)

// MaxPort is the highest valid port number
const MaxPort = 65535

// Result is the outcome of normalizing one raw snapshot
type Result struct {
	Accepted []domain.Connection
	Loopback int // tuples dropped because an endpoint is a loopback address
	Rejected int // malformed tuples
}

// Normalize drops loopback and malformed tuples. Order of the remaining
// tuples is preserved.
func Normalize(raw []domain.Connection) Result {
	res := Result{Accepted: make([]domain.Connection, 0, len(raw))}

	for _, c := range raw {
		src, srcErr := netip.ParseAddr(c.Source)
		dst, dstErr := netip.ParseAddr(c.Target)
		if srcErr != nil || dstErr != nil || c.Port < 0 || c.Port > MaxPort {
			res.Rejected++
			continue
		}
		if src.IsLoopback() || dst.IsLoopback() {
			res.Loopback++
			continue
		}
		res.Accepted = append(res.Accepted, c)
	}

	return res
}

// IsLoopback reports whether addr parses as a loopback address
func IsLoopback(addr string) bool {
	a, err := netip.ParseAddr(addr)
	return err == nil && a.IsLoopback()
}
