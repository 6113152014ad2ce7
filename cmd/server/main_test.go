package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestOutputFormat(t *testing.T) {
	tests := []struct {
		format, output, want string
		wantErr              bool
	}{
		{"", "", "svg", false},
		{"", "graph.dot", "dot", false},
		{"", "graph.GV", "dot", false},
		{"", "graph.svg", "svg", false},
		{"DOT", "graph.svg", "dot", false},
		{"png", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.format+"|"+tt.output, func(t *testing.T) {
			got, err := outputFormat(tt.format, tt.output)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "netbloom.yaml", "data_source: lab\nhub: 10.0.0.1\n")

	cfg, got, err := loadConfig(&options{
		configPath: path,
		hub:        "10.0.0.254",
		storage:    "sqlite",
		addr:       ":9090",
	})
	require.NoError(t, err)
	assert.Equal(t, path, got)
	assert.Equal(t, "lab", cfg.DataSource)
	assert.Equal(t, "10.0.0.254", cfg.Hub)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	require.NoError(t, cfg.Validate())

	ec := engineConfig(cfg)
	assert.Equal(t, "lab", ec.DataSource)
	assert.Equal(t, "10.0.0.254", ec.Hub)
	assert.Equal(t, cfg.UpdateInterval.Duration(), ec.UpdateInterval)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, _, err := loadConfig(&options{configPath: filepath.Join(t.TempDir(), "nope.yaml")})
	assert.Error(t, err)
}

func TestCheckConfig(t *testing.T) {
	dir := t.TempDir()
	valid := writeFile(t, dir, "valid.yaml", "data_source: lab\n")
	invalid := writeFile(t, dir, "invalid.yaml", "hub: not-an-ip\n")

	require.NoError(t, Run(context.Background(), []string{"netbloom", "--brief", "--config", valid, "check-config"}))
	assert.Error(t, Run(context.Background(), []string{"netbloom", "--brief", "--config", invalid, "check-config"}))
}

func TestVerboseAndBriefConflict(t *testing.T) {
	err := Run(context.Background(), []string{"netbloom", "--verbose", "--brief", "check-config"})
	assert.Error(t, err)
}

func TestRenderDOT(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "netbloom.yaml", "hub: 192.168.1.1\n")
	snap := writeFile(t, dir, "lab.yaml", `connections:
  - {source: 192.168.1.10, target: 8.8.8.8, port: 443}
  - {source: 192.168.1.11, target: 1.1.1.1, port: 53}
`)
	out := filepath.Join(dir, "lab.dot")

	err := Run(context.Background(), []string{
		"netbloom", "--brief", "--config", cfgPath,
		"render", "--input", snap, "--output", out, "--steps", "50",
	})
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "port-443")
	assert.Contains(t, string(data), "8.8.8.8")
}

func TestRenderRejectsBadInput(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "netbloom.yaml", "data_source: lab\n")
	snap := writeFile(t, dir, "lab.txt", "whatever")

	err := Run(context.Background(), []string{
		"netbloom", "--brief", "--config", cfgPath,
		"render", "--input", snap, "--output", filepath.Join(dir, "out.svg"),
	})
	assert.Error(t, err)
}

func TestInitConfig(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "conf", "netbloom.yaml")

	args := []string{"netbloom", "--brief", "--data-source", "office", "--hub", "10.1.1.1", "init-config", "--output", out}
	require.NoError(t, Run(context.Background(), args))

	cfg, _, err := loadConfig(&options{configPath: out})
	require.NoError(t, err)
	assert.Equal(t, "office", cfg.DataSource)
	assert.Equal(t, "10.1.1.1", cfg.Hub)
	require.NoError(t, cfg.Validate())

	assert.Error(t, Run(context.Background(), args), "existing file needs --force")
	require.NoError(t, Run(context.Background(), append(args, "--force")))
}
