package bootstrap

import (
	"bufio"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"net/netip"
	"os"
	"sort"
	"strings"
)

// DefaultRoutePath is the kernel IPv4 routing table
const DefaultRoutePath = "/proc/net/route"

// DetectGateway reads the routing table at path and reports the gateway of
// every default route. Lower metrics get higher confidence.
func DetectGateway(path string) []Evidence {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	routes, err := ParseDefaultRoutes(f)
	if err != nil {
		return nil
	}

	evidence := make([]Evidence, 0, len(routes))
	for i, r := range routes {
		conf := 0.95 - 0.05*float64(i)
		evidence = append(evidence, NewEvidence(
			CategoryNetwork,
			"gateway",
			r.Gateway.String(),
			conf,
			"procfs",
			path+" default route",
		).WithRaw(map[string]any{
			"interface": r.Interface,
			"metric":    r.Metric,
		}))
	}
	return evidence
}

// DefaultRoute is one 0.0.0.0/0 entry of the routing table
type DefaultRoute struct {
	Interface string
	Gateway   netip.Addr
	Metric    int
}

// ParseDefaultRoutes reads /proc/net/route and returns the default routes
// with a gateway, lowest metric first
func ParseDefaultRoutes(r io.Reader) ([]DefaultRoute, error) {
	var routes []DefaultRoute
	scanner := bufio.NewScanner(r)

	first := true
	for scanner.Scan() {
		if first {
			first = false
			continue
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) < 7 || fields[1] != "00000000" {
			continue
		}
		gw, err := parseHexIPv4(fields[2])
		if err != nil || gw.IsUnspecified() {
			continue
		}
		var metric int
		fmt.Sscanf(fields[6], "%d", &metric)
		routes = append(routes, DefaultRoute{Interface: fields[0], Gateway: gw, Metric: metric})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read routes: %w", err)
	}

	sort.SliceStable(routes, func(i, j int) bool {
		return routes[i].Metric < routes[j].Metric
	})
	return routes, nil
}

// parseHexIPv4 decodes the little-endian hex form used by /proc/net/route
func parseHexIPv4(s string) (netip.Addr, error) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 4 {
		return netip.Addr{}, fmt.Errorf("bad address %q", s)
	}
	var a [4]byte
	binary.BigEndian.PutUint32(a[:], binary.LittleEndian.Uint32(b))
	return netip.AddrFrom4(a), nil
}

// DetectLocalAddrs reports the host's non-loopback unicast addresses
func DetectLocalAddrs() []Evidence {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil
	}

	var evidence []Evidence
	for _, a := range addrs {
		prefix, err := netip.ParsePrefix(a.String())
		if err != nil {
			continue
		}
		ip := prefix.Addr()
		if ip.IsLoopback() || ip.IsLinkLocalUnicast() {
			continue
		}
		evidence = append(evidence, NewEvidence(
			CategoryNetwork,
			"local_prefix",
			prefix.Masked().String(),
			0.9,
			"syscall",
			"net.InterfaceAddrs",
		).WithRaw(map[string]any{"address": ip.String()}))
	}
	return evidence
}
