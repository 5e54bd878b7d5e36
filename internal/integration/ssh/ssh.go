// Package ssh runs one-off commands on client routers.
//
// Credentials come from the system settings (one shared login for all
// routers). Host keys are checked against a known_hosts file. Without one,
// commands are refused unless unverified host keys were explicitly allowed.
//
// Import Path: supportportal.io/portal/internal/integration/ssh
package ssh

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"
	gossh "golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"supportportal.io/portal/internal/domain"
	"supportportal.io/portal/internal/pkg/logger"
	"supportportal.io/portal/internal/pkg/secret"
)

const (
	defaultPort           = "22"
	defaultDialTimeout    = 10 * time.Second
	defaultCommandTimeout = 30 * time.Second
)

var (
	// ErrNotConfigured is returned when the SSH login is not set.
	ErrNotConfigured = errors.New("ssh: credentials are not configured")
	// ErrTimeout is returned when the command outlives the command timeout.
	ErrTimeout = errors.New("ssh: command timed out")
	// ErrHostKeysNotConfigured is returned by Run when there is no
	// known_hosts file and unverified host keys are not allowed.
	ErrHostKeysNotConfigured = errors.New("ssh: known_hosts file is not configured")
)

// Credentials is the shared router login.
type Credentials struct {
	User     string
	Password string
}

// CredentialsFromSettings opens the stored SSH login.
func CredentialsFromSettings(s domain.SystemSettings, box *secret.Box) (Credentials, error) {
	if strings.TrimSpace(s.SSHUser) == "" || s.SSHPasswordSealed == "" {
		return Credentials{}, ErrNotConfigured
	}
	password, err := box.Open(s.SSHPasswordSealed)
	if err != nil {
		return Credentials{}, fmt.Errorf("open ssh password: %w", err)
	}
	return Credentials{User: strings.TrimSpace(s.SSHUser), Password: password}, nil
}

// Result is the outcome of a command that ran to completion.
// A non-zero exit status is not an error.
type Result struct {
	Output     string `json:"output"`
	ExitStatus int    `json:"exit_status"`
}

// Options configures a Runner.
type Options struct {
	DialTimeout    time.Duration
	CommandTimeout time.Duration

	// KnownHostsFile enables host key verification.
	KnownHostsFile string
	// InsecureIgnoreHostKey accepts any host key when KnownHostsFile is
	// empty. Development only.
	InsecureIgnoreHostKey bool
}

// Runner executes commands over SSH.
type Runner struct {
	dialTimeout    time.Duration
	commandTimeout time.Duration
	hostKey        gossh.HostKeyCallback
}

// NewRunner creates a Runner. It fails when the known_hosts file cannot be read.
func NewRunner(opts Options) (*Runner, error) {
	r := &Runner{
		dialTimeout:    opts.DialTimeout,
		commandTimeout: opts.CommandTimeout,
	}
	if r.dialTimeout <= 0 {
		r.dialTimeout = defaultDialTimeout
	}
	if r.commandTimeout <= 0 {
		r.commandTimeout = defaultCommandTimeout
	}
	if opts.KnownHostsFile == "" {
		if opts.InsecureIgnoreHostKey {
			logger.Warn("SSH host key verification disabled by ssh.insecure_ignore_host_key; do not use in production")
			r.hostKey = gossh.InsecureIgnoreHostKey() //nolint:gosec
			return r, nil
		}
		logger.Warn("SSH commands disabled: set ssh.known_hosts_file to enable them")
		return r, nil
	}
	cb, err := knownhosts.New(opts.KnownHostsFile)
	if err != nil {
		return nil, fmt.Errorf("load known hosts %s: %w", opts.KnownHostsFile, err)
	}
	r.hostKey = cb
	return r, nil
}

// Run executes command on host. Host may carry a port; 22 is assumed otherwise.
func (r *Runner) Run(ctx context.Context, host string, cred Credentials, command string) (*Result, error) {
	if r.hostKey == nil {
		return nil, ErrHostKeysNotConfigured
	}
	if cred.User == "" {
		return nil, ErrNotConfigured
	}
	addr := host
	if _, _, err := net.SplitHostPort(host); err != nil {
		addr = net.JoinHostPort(host, defaultPort)
	}

	dialCtx, cancel := context.WithTimeout(ctx, r.dialTimeout)
	defer cancel()
	conn, err := (&net.Dialer{}).DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	cfg := &gossh.ClientConfig{
		User:            cred.User,
		Auth:            []gossh.AuthMethod{gossh.Password(cred.Password)},
		HostKeyCallback: r.hostKey,
		Timeout:         r.dialTimeout,
	}
	_ = conn.SetDeadline(time.Now().Add(r.dialTimeout))
	sc, chans, reqs, err := gossh.NewClientConn(conn, addr, cfg)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ssh handshake %s: %w", addr, err)
	}
	_ = conn.SetDeadline(time.Time{})
	client := gossh.NewClient(sc, chans, reqs)
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	defer session.Close()

	type outcome struct {
		out []byte
		err error
	}
	done := make(chan outcome, 1)
	go func() { //nolint:naked-goroutine // ends when the session closes
		out, err := session.CombinedOutput(command)
		done <- outcome{out: out, err: err}
	}()

	timer := time.NewTimer(r.commandTimeout)
	defer timer.Stop()

	select {
	case o := <-done:
		res := &Result{Output: string(o.out)}
		var exitErr *gossh.ExitError
		switch {
		case o.err == nil:
		case errors.As(o.err, &exitErr):
			res.ExitStatus = exitErr.ExitStatus()
		default:
			return nil, fmt.Errorf("run command: %w", o.err)
		}
		logger.Info("ssh command finished",
			zap.String("host", addr),
			zap.Int("exit_status", res.ExitStatus),
		)
		return res, nil
	case <-timer.C:
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
