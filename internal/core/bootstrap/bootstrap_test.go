package bootstrap

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	gnet "github.com/shirou/gopsutil/v3/net"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netbloom/internal/config"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

const routeTable = `Iface	Destination	Gateway 	Flags	RefCnt	Use	Metric	Mask		MTU	Window	IRTT
wlan0	00000000	FE01A8C0	0003	0	0	600	00000000	0	0	0
eth0	00000000	0101A8C0	0003	0	0	100	00000000	0	0	0
eth0	0001A8C0	00000000	0001	0	0	100	00FFFFFF	0	0	0
tun0	00000000	00000000	0001	0	0	50	00000000	0	0	0
`

func TestParseDefaultRoutes(t *testing.T) {
	routes, err := ParseDefaultRoutes(strings.NewReader(routeTable))
	require.NoError(t, err)
	require.Len(t, routes, 2)

	assert.Equal(t, "eth0", routes[0].Interface)
	assert.Equal(t, "192.168.1.1", routes[0].Gateway.String())
	assert.Equal(t, 100, routes[0].Metric)
	assert.Equal(t, "192.168.1.254", routes[1].Gateway.String())
}

func TestParseHexIPv4(t *testing.T) {
	ip, err := parseHexIPv4("0101A8C0")
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.1", ip.String())

	_, err = parseHexIPv4("zz")
	assert.Error(t, err)
	_, err = parseHexIPv4("0101A8C0FF")
	assert.Error(t, err)
}

func TestEvidenceSetBest(t *testing.T) {
	es := NewEvidenceSet()
	es.AddAll(
		NewEvidence(CategoryNetwork, "gateway", "10.0.0.1", 0.7, "test", "low"),
		NewEvidence(CategoryNetwork, "gateway", "10.0.0.2", 0.9, "test", "high"),
		NewEvidence(CategoryNetwork, "gateway", "10.0.0.3", 0.9, "test", "tie"),
		NewEvidence(CategoryCapability, "conntrack_readable", true, 0.95, "test", "probe"),
	)

	gw, conf, ok := es.String(CategoryNetwork, "gateway")
	require.True(t, ok)
	assert.Equal(t, "10.0.0.2", gw)
	assert.Equal(t, 0.9, conf)

	assert.True(t, es.Bool(CategoryCapability, "conntrack_readable"))
	assert.False(t, es.Bool(CategoryCapability, "sockets_listable"))
	assert.Len(t, es.ByProperty(CategoryNetwork, "gateway"), 3)
	assert.Equal(t, 4, es.Count())

	_, _, ok = es.String(CategoryCapability, "conntrack_readable")
	assert.False(t, ok, "non-string values are not strings")
}

func fixtures(t *testing.T, routes string, conntrack bool) Options {
	t.Helper()
	dir := t.TempDir()
	routePath := filepath.Join(dir, "route")
	require.NoError(t, os.WriteFile(routePath, []byte(routes), 0o644))

	ctPath := filepath.Join(dir, "nf_conntrack")
	if conntrack {
		require.NoError(t, os.WriteFile(ctPath, nil, 0o644))
	}

	return Options{
		RoutePath:     routePath,
		ConntrackPath: ctPath,
		Sockets: func(ctx context.Context, kind string) ([]gnet.ConnectionStat, error) {
			return nil, errors.New("not permitted")
		},
	}
}

func TestRunAndApply(t *testing.T) {
	r := Run(context.Background(), fixtures(t, routeTable, true), quiet)

	hub, _, ok := r.Hub()
	require.True(t, ok)
	assert.Equal(t, "192.168.1.1", hub)

	cfg := config.DefaultConfig()
	cfg.DataSource = "lab"
	cfg.Hub = config.HubAuto

	notes := r.Apply(cfg, true)
	assert.Len(t, notes, 2)
	assert.Equal(t, "192.168.1.1", cfg.Hub)
	require.Len(t, cfg.Sources, 1)
	assert.Equal(t, config.SourceConntrack, cfg.Sources[0].Type)
	assert.Equal(t, cfg.UpdateInterval, cfg.Sources[0].Interval)
	require.NoError(t, cfg.Validate())
}

func TestApplyKeepsExplicitSettings(t *testing.T) {
	r := Run(context.Background(), fixtures(t, routeTable, true), quiet)

	cfg := config.DefaultConfig()
	cfg.DataSource = "lab"
	cfg.Hub = "10.9.8.7"

	assert.Empty(t, r.Apply(cfg, false))
	assert.Equal(t, "10.9.8.7", cfg.Hub)
	assert.Empty(t, cfg.Sources)
}

func TestApplyWithoutRouteOrSources(t *testing.T) {
	r := Run(context.Background(), fixtures(t, "Iface\tDestination\tGateway\n", false), quiet)

	cfg := config.DefaultConfig()
	cfg.Hub = config.HubAuto

	notes := r.Apply(cfg, true)
	assert.Len(t, notes, 1)
	assert.Equal(t, config.DefaultHub, cfg.Hub)
	assert.Empty(t, cfg.Sources, "nothing usable was detected")
}

func TestProbeSockets(t *testing.T) {
	ev := ProbeSockets(context.Background(), func(ctx context.Context, kind string) ([]gnet.ConnectionStat, error) {
		assert.Equal(t, "inet", kind)
		return []gnet.ConnectionStat{{Status: "ESTABLISHED"}}, nil
	})
	require.Len(t, ev, 1)
	assert.Equal(t, true, ev[0].Value)
	assert.Equal(t, 1, ev[0].Raw["sockets"])
}
