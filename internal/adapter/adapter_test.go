package adapter

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	gnet "github.com/shirou/gopsutil/v3/net"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"netbloom/internal/config"
	"netbloom/internal/domain"
)

const conntrackTable = `ipv4     2 tcp      6 431999 ESTABLISHED src=192.168.1.10 dst=8.8.8.8 sport=50412 dport=443 src=8.8.8.8 dst=203.0.113.7 sport=443 dport=50412 [ASSURED] mark=0 zone=0 use=2
ipv4     2 udp      17 29 src=192.168.1.11 dst=1.1.1.1 sport=53000 dport=53 [UNREPLIED] src=1.1.1.1 dst=192.168.1.11 sport=53 dport=53000 mark=0 zone=0 use=2
ipv4     2 tcp      6 100 TIME_WAIT src=192.168.1.12 dst=9.9.9.9 sport=40000 dport=80 src=9.9.9.9 dst=192.168.1.12 sport=80 dport=40000 [ASSURED] mark=0 zone=0 use=2
ipv4     2 icmp     1 29 src=192.168.1.13 dst=8.8.4.4 type=8 code=0 id=1 src=8.8.4.4 dst=192.168.1.13 type=0 code=0 id=1 mark=0 use=1
tcp      6 86399 ESTABLISHED src=10.0.0.5 dst=140.82.112.3 sport=51234 dport=22 src=140.82.112.3 dst=10.0.0.5 sport=22 dport=51234 [ASSURED] mark=0 use=1
garbage line
`

func TestParseConntrack(t *testing.T) {
	conns, err := ParseConntrack(strings.NewReader(conntrackTable))
	require.NoError(t, err)

	assert.Equal(t, []domain.Connection{
		{Source: "192.168.1.10", Target: "8.8.8.8", Port: 443},
		{Source: "192.168.1.11", Target: "1.1.1.1", Port: 53},
		{Source: "10.0.0.5", Target: "140.82.112.3", Port: 22},
	}, conns)
}

func TestParseConntrackEmpty(t *testing.T) {
	conns, err := ParseConntrack(strings.NewReader(""))
	require.NoError(t, err)
	assert.NotNil(t, conns, "an empty table is an empty snapshot")
	assert.Empty(t, conns)
}

func TestConntrackAdapter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nf_conntrack")
	require.NoError(t, os.WriteFile(path, []byte(conntrackTable), 0644))

	a := NewConntrackAdapter("gw", path, nil)
	require.NoError(t, a.Start(context.Background()))
	conns, err := a.Sync(context.Background())
	require.NoError(t, err)
	assert.Len(t, conns, 3)

	missing := NewConntrackAdapter("gw", filepath.Join(t.TempDir(), "none"), nil)
	assert.Error(t, missing.Start(context.Background()))
}

func TestSocketConnections(t *testing.T) {
	stats := []gnet.ConnectionStat{
		{Status: "LISTEN", Laddr: gnet.Addr{IP: "0.0.0.0", Port: 22}},
		{Status: "ESTABLISHED", Laddr: gnet.Addr{IP: "192.168.1.20", Port: 22}, Raddr: gnet.Addr{IP: "192.168.1.50", Port: 60000}},
		{Status: "ESTABLISHED", Laddr: gnet.Addr{IP: "192.168.1.20", Port: 51000}, Raddr: gnet.Addr{IP: "8.8.8.8", Port: 443}},
		{Status: "TIME_WAIT", Laddr: gnet.Addr{IP: "192.168.1.20", Port: 51001}, Raddr: gnet.Addr{IP: "8.8.8.8", Port: 443}},
		{Status: "NONE", Laddr: gnet.Addr{IP: "192.168.1.20", Port: 53001}, Raddr: gnet.Addr{IP: "1.1.1.1", Port: 53}},
		{Status: "NONE", Laddr: gnet.Addr{IP: "0.0.0.0", Port: 5353}},
	}

	assert.Equal(t, []domain.Connection{
		{Source: "192.168.1.50", Target: "192.168.1.20", Port: 22},
		{Source: "192.168.1.20", Target: "8.8.8.8", Port: 443},
		{Source: "192.168.1.20", Target: "1.1.1.1", Port: 53},
	}, SocketConnections(stats))
}

func TestSocketAdapterSync(t *testing.T) {
	var gotKind string
	a := NewSocketAdapter("local", "", nil).WithLister(func(ctx context.Context, kind string) ([]gnet.ConnectionStat, error) {
		gotKind = kind
		return []gnet.ConnectionStat{
			{Status: "ESTABLISHED", Laddr: gnet.Addr{IP: "10.0.0.5", Port: 40000}, Raddr: gnet.Addr{IP: "8.8.8.8", Port: 443}},
		}, nil
	})

	conns, err := a.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "inet", gotKind)
	assert.Len(t, conns, 1)

	failing := NewSocketAdapter("local", "tcp", nil).WithLister(func(context.Context, string) ([]gnet.ConnectionStat, error) {
		return nil, errors.New("permission denied")
	})
	_, err = failing.Sync(context.Background())
	assert.Error(t, err)
}

func TestFileAdapter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.yaml")

	a, err := NewFileAdapter("file", path, nil)
	require.NoError(t, err)

	conns, err := a.Sync(context.Background())
	require.NoError(t, err)
	assert.Nil(t, conns, "missing file means no data yet")

	require.NoError(t, os.WriteFile(path, []byte("- {source: 10.0.0.5, target: 8.8.8.8, port: 443}\n"), 0644))
	conns, err = a.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.Connection{{Source: "10.0.0.5", Target: "8.8.8.8", Port: 443}}, conns)

	require.NoError(t, os.WriteFile(path, []byte("{{{"), 0644))
	_, err = a.Sync(context.Background())
	assert.Error(t, err)

	_, err = NewFileAdapter("file", filepath.Join(dir, "snapshot.csv"), nil)
	assert.Error(t, err)
}

func writeKey(t *testing.T) string {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	block, err := ssh.MarshalPrivateKey(priv, "")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0600))
	return path
}

func TestSSHConntrackAdapterSync(t *testing.T) {
	var gotCmd string
	a := NewSSHConntrackAdapter("router", SSHTarget{Host: "192.168.1.1", User: "root"}, "", nil).
		WithRunner(func(ctx context.Context, cmd string) (string, error) {
			gotCmd = cmd
			return conntrackTable, nil
		})

	conns, err := a.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cat "+DefaultConntrackPath, gotCmd)
	assert.Len(t, conns, 3)

	a.WithRunner(func(context.Context, string) (string, error) {
		return "", errors.New("connection refused")
	})
	_, err = a.Sync(context.Background())
	assert.ErrorContains(t, err, "192.168.1.1")
}

func TestSSHConfig(t *testing.T) {
	key := writeKey(t)

	a := NewSSHConntrackAdapter("router", SSHTarget{Host: "192.168.1.1", User: "root", KeyPath: key}, "", nil)
	cfg, err := a.buildSSHConfig()
	require.NoError(t, err)
	assert.Equal(t, "root", cfg.User)
	assert.Equal(t, DefaultSSHTimeout, cfg.Timeout)
	assert.Equal(t, 22, a.target.Port)

	tests := []struct {
		name   string
		target SSHTarget
	}{
		{"no user", SSHTarget{Host: "h", KeyPath: key}},
		{"no key", SSHTarget{Host: "h", User: "root"}},
		{"missing key file", SSHTarget{Host: "h", User: "root", KeyPath: "/nonexistent/key"}},
		{"missing known_hosts", SSHTarget{Host: "h", User: "root", KeyPath: key, KnownHostsPath: "/nonexistent/known_hosts"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSSHConntrackAdapter("r", tt.target, "", nil).buildSSHConfig()
			assert.Error(t, err)
		})
	}
}

func TestFromConfig(t *testing.T) {
	tests := []struct {
		src      config.SourceConfig
		wantType interface{}
		wantErr  bool
	}{
		{src: config.SourceConfig{Name: "f", Type: config.SourceFile, Path: "/tmp/s.json"}, wantType: &FileAdapter{}},
		{src: config.SourceConfig{Name: "s", Type: config.SourceSockets}, wantType: &SocketAdapter{}},
		{src: config.SourceConfig{Name: "c", Type: config.SourceConntrack}, wantType: &ConntrackAdapter{}},
		{src: config.SourceConfig{Name: "r", Type: config.SourceSSHConntrack, SSH: &config.SSHConfig{Host: "gw", User: "root"}}, wantType: &SSHConntrackAdapter{}},
		{src: config.SourceConfig{Name: "r", Type: config.SourceSSHConntrack}, wantErr: true},
		{src: config.SourceConfig{Name: "x", Type: "pcap"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.src.Name+"/"+tt.src.Type, func(t *testing.T) {
			a, ac, err := FromConfig(tt.src, nil)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, a)
			assert.True(t, ac.Enabled)
			assert.Equal(t, tt.src.Name, a.Name())
		})
	}
}

type fakeAdapter struct {
	name    string
	mu      sync.Mutex
	conns   []domain.Connection
	err     error
	syncs   int
	started bool
	stopped bool
}

func (f *fakeAdapter) Name() string      { return f.name }
func (f *fakeAdapter) Type() AdapterType { return AdapterTypePolling }

func (f *fakeAdapter) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
	return nil
}

func (f *fakeAdapter) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return nil
}

func (f *fakeAdapter) Sync(context.Context) ([]domain.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncs++
	return f.conns, f.err
}

type collector struct {
	mu    sync.Mutex
	snaps [][]domain.Connection
}

func (c *collector) submit(_ context.Context, conns []domain.Connection) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snaps = append(c.snaps, conns)
	return nil
}

func (c *collector) last() []domain.Connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.snaps) == 0 {
		return nil
	}
	return c.snaps[len(c.snaps)-1]
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.snaps)
}

func TestRegistryMergesSources(t *testing.T) {
	col := &collector{}
	r := NewRegistry(col.submit, nil)

	b := &fakeAdapter{name: "b", conns: []domain.Connection{{Source: "10.0.0.2", Target: "1.1.1.1", Port: 53}}}
	a := &fakeAdapter{name: "a", conns: []domain.Connection{{Source: "10.0.0.1", Target: "8.8.8.8", Port: 443}}}
	require.NoError(t, r.Register(b, AdapterConfig{Enabled: true}))
	require.NoError(t, r.Register(a, AdapterConfig{Enabled: true}))
	assert.Error(t, r.Register(a, AdapterConfig{Enabled: true}), "duplicate name")

	ctx := context.Background()
	require.NoError(t, r.TriggerSync(ctx, "b"))
	require.NoError(t, r.TriggerSync(ctx, "a"))

	assert.Equal(t, []domain.Connection{
		{Source: "10.0.0.1", Target: "8.8.8.8", Port: 443},
		{Source: "10.0.0.2", Target: "1.1.1.1", Port: 53},
	}, col.last(), "merged in adapter name order")

	infos := r.ListAdapters()
	require.Len(t, infos, 2)
	assert.Equal(t, "a", infos[0].Name)
	assert.Equal(t, 1, infos[0].Connections)

	assert.Error(t, r.TriggerSync(ctx, "missing"))
}

func TestRegistrySkipsNilSnapshots(t *testing.T) {
	col := &collector{}
	r := NewRegistry(col.submit, nil)

	a := &fakeAdapter{name: "a"}
	require.NoError(t, r.Register(a, AdapterConfig{Enabled: true}))

	require.NoError(t, r.TriggerSync(context.Background(), "a"))
	assert.Equal(t, 0, col.count())

	a.conns = []domain.Connection{}
	require.NoError(t, r.TriggerSync(context.Background(), "a"))
	require.Equal(t, 1, col.count())
	assert.NotNil(t, col.last())
	assert.Empty(t, col.last())
}

func TestRegistrySyncError(t *testing.T) {
	col := &collector{}
	r := NewRegistry(col.submit, nil)

	a := &fakeAdapter{name: "a", err: errors.New("boom")}
	require.NoError(t, r.Register(a, AdapterConfig{Enabled: true}))
	assert.Error(t, r.TriggerSync(context.Background(), "a"))

	d := &fakeAdapter{name: "d"}
	require.NoError(t, r.Register(d, AdapterConfig{Enabled: false}))
	assert.Error(t, r.TriggerSync(context.Background(), "d"))
}

func TestRegistryPolling(t *testing.T) {
	col := &collector{}
	r := NewRegistry(col.submit, nil)

	a := &fakeAdapter{name: "a", conns: []domain.Connection{{Source: "10.0.0.1", Target: "8.8.8.8", Port: 443}}}
	off := &fakeAdapter{name: "off"}
	require.NoError(t, r.Register(a, AdapterConfig{Enabled: true, PollInterval: 10 * time.Millisecond}))
	require.NoError(t, r.Register(off, AdapterConfig{Enabled: false}))

	require.NoError(t, r.Start(context.Background()))
	require.Eventually(t, func() bool { return col.count() >= 3 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, r.Stop())

	assert.True(t, a.started)
	assert.True(t, a.stopped)
	assert.False(t, off.started)
}

func TestRegistryWatchesFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, os.WriteFile(path, []byte("[]"), 0644))

	col := &collector{}
	r := NewRegistry(col.submit, nil)
	fa, err := NewFileAdapter("file", path, nil)
	require.NoError(t, err)
	require.NoError(t, r.Register(fa, AdapterConfig{Enabled: true, PollInterval: time.Hour}))

	require.NoError(t, r.Start(context.Background()))
	defer r.Stop()

	// initial sync
	require.Eventually(t, func() bool { return col.count() >= 1 }, 2*time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte(`[{"source":"10.0.0.5","target":"8.8.8.8","port":443}]`), 0644)
		return len(col.last()) == 1
	}, 5*time.Second, 100*time.Millisecond)
}
