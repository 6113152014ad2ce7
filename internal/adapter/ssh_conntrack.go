package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"netbloom/internal/domain"
)

// DefaultSSHTimeout bounds connection setup and the remote command
const DefaultSSHTimeout = 10 * time.Second

// SSHTarget describes the remote gateway. Key material is read from files;
// no secret values live in configuration.
type SSHTarget struct {
	Host           string
	Port           int
	User           string
	KeyPath        string
	Passphrase     string
	KnownHostsPath string
	Timeout        time.Duration
}

// CommandRunner runs a command on the remote host and returns its output
type CommandRunner func(ctx context.Context, cmd string) (string, error)

// SSHConntrackAdapter reads a gateway's connection tracking table over SSH
type SSHConntrackAdapter struct {
	name    string
	target  SSHTarget
	path    string
	run     CommandRunner
	logger  *slog.Logger
	timeout time.Duration
}

// NewSSHConntrackAdapter creates an adapter reading path on the target
// (DefaultConntrackPath when empty)
func NewSSHConntrackAdapter(name string, target SSHTarget, path string, logger *slog.Logger) *SSHConntrackAdapter {
	if target.Port == 0 {
		target.Port = 22
	}
	if target.Timeout == 0 {
		target.Timeout = DefaultSSHTimeout
	}
	if path == "" {
		path = DefaultConntrackPath
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &SSHConntrackAdapter{
		name:    name,
		target:  target,
		path:    path,
		logger:  logger,
		timeout: target.Timeout,
	}
	a.run = a.sshRun
	return a
}

// WithRunner replaces the SSH command runner
func (a *SSHConntrackAdapter) WithRunner(run CommandRunner) *SSHConntrackAdapter {
	a.run = run
	return a
}

// Name returns the adapter identifier
func (a *SSHConntrackAdapter) Name() string {
	return a.name
}

// Type returns the adapter type
func (a *SSHConntrackAdapter) Type() AdapterType {
	return AdapterTypePolling
}

// Start initializes the adapter
func (a *SSHConntrackAdapter) Start(ctx context.Context) error {
	a.logger.Debug("ssh conntrack adapter started",
		"host", a.target.Host, "port", a.target.Port, "path", a.path)
	return nil
}

// Stop shuts down the adapter
func (a *SSHConntrackAdapter) Stop() error {
	return nil
}

// Sync reads the remote table
func (a *SSHConntrackAdapter) Sync(ctx context.Context) ([]domain.Connection, error) {
	out, err := a.run(ctx, "cat "+a.path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.target.Host, err)
	}
	return ParseConntrack(strings.NewReader(out))
}

// sshRun connects, runs one command and disconnects
func (a *SSHConntrackAdapter) sshRun(ctx context.Context, cmd string) (string, error) {
	client, err := a.connect(ctx)
	if err != nil {
		return "", err
	}
	defer client.Close()
	return a.runCommand(ctx, client, cmd)
}

// connect establishes an SSH connection to the target
func (a *SSHConntrackAdapter) connect(ctx context.Context) (*ssh.Client, error) {
	config, err := a.buildSSHConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to build SSH config: %w", err)
	}

	addr := net.JoinHostPort(a.target.Host, strconv.Itoa(a.target.Port))

	dialer := &net.Dialer{
		Timeout: a.timeout,
	}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial: %w", err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to establish SSH connection: %w", err)
	}

	return ssh.NewClient(sshConn, chans, reqs), nil
}

// buildSSHConfig creates the client config for key-based auth
func (a *SSHConntrackAdapter) buildSSHConfig() (*ssh.ClientConfig, error) {
	if a.target.User == "" {
		return nil, errors.New("ssh user is required")
	}
	if a.target.KeyPath == "" {
		return nil, errors.New("ssh key_path is required")
	}

	keyData, err := os.ReadFile(a.target.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}

	var signer ssh.Signer
	if a.target.Passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(keyData, []byte(a.target.Passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(keyData)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	hostKeyCallback, err := a.hostKeyCallback()
	if err != nil {
		return nil, err
	}

	return &ssh.ClientConfig{
		User: a.target.User,
		Auth: []ssh.AuthMethod{
			ssh.PublicKeys(signer),
		},
		HostKeyCallback: hostKeyCallback,
		Timeout:         a.timeout,
	}, nil
}

func (a *SSHConntrackAdapter) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if a.target.KnownHostsPath == "" {
		a.logger.Warn("no known_hosts configured, host key not verified", "host", a.target.Host)
		return ssh.InsecureIgnoreHostKey(), nil
	}
	cb, err := knownhosts.New(a.target.KnownHostsPath)
	if err != nil {
		return nil, fmt.Errorf("load known_hosts: %w", err)
	}
	return cb, nil
}

// runCommand executes a command over SSH and returns the output
func (a *SSHConntrackAdapter) runCommand(ctx context.Context, client *ssh.Client, cmd string) (string, error) {
	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()

	type result struct {
		out []byte
		err error
	}
	done := make(chan result, 1)

	go func() {
		out, err := session.Output(cmd)
		done <- result{out: out, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return "", fmt.Errorf("command failed: %w", res.err)
		}
		return string(res.out), nil
	case <-time.After(a.timeout):
		session.Signal(ssh.SIGKILL)
		return "", errors.New("command timeout")
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		return "", ctx.Err()
	}
}
