package device

import (
	"bytes"
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
)

// =============================================================================
// Target
// =============================================================================

// Target identifies an appliance and the credentials used to reach it.
type Target struct {
	Name     string
	Host     string
	Port     int
	User     string
	Password string
	KeyFile  string
}

// Address returns the target's SSH address in host:port form.
func (t Target) Address() string {
	port := t.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(t.Host, strconv.Itoa(port))
}

// Key returns the name used to cache connections to the target.
func (t Target) Key() string {
	if t.Name != "" {
		return t.Name
	}
	if t.Host == "" {
		return ""
	}
	return t.Address()
}

// Validate checks that the target can be dialed.
func (t Target) Validate() error {
	if strings.TrimSpace(t.Host) == "" {
		return NewDeviceError("Validate", t.Name, "host is required", ErrInvalidTarget)
	}
	if strings.TrimSpace(t.User) == "" {
		return NewDeviceError("Validate", t.Address(), "user is required", ErrInvalidTarget)
	}
	if t.Port < 0 || t.Port > 65535 {
		return NewDeviceError("Validate", t.Host, "port out of range", ErrInvalidTarget)
	}
	return nil
}

// =============================================================================
// Executor
// =============================================================================

// Executor runs a batch of commands on a device and returns its raw output.
type Executor interface {
	Execute(ctx context.Context, batch string) (string, error)
	Close() error
}

// SSHConfig configures SSH executors.
type SSHConfig struct {
	ConnectTimeout time.Duration // Default: 10 seconds
	CommandTimeout time.Duration // Default: 5 minutes

	// HostKeyCallback verifies the device host key. Nil accepts any key.
	HostKeyCallback ssh.HostKeyCallback
}

// DefaultSSHConfig returns the default configuration.
func DefaultSSHConfig() SSHConfig {
	return SSHConfig{
		ConnectTimeout: 10 * time.Second,
		CommandTimeout: 5 * time.Minute,
	}
}

// SSHExecutor implements Executor by writing the batch into an interactive
// CLI shell on the appliance.
type SSHExecutor struct {
	target    Target
	auth      []ssh.AuthMethod
	config    SSHConfig
	sshClient *ssh.Client
	mu        sync.Mutex // Protects sshClient
}

// NewSSHExecutor creates an executor for target. privateKey may be nil when
// the target carries a password.
func NewSSHExecutor(target Target, privateKey []byte, config SSHConfig) (*SSHExecutor, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}

	var auth []ssh.AuthMethod
	if len(privateKey) > 0 {
		signer, err := ssh.ParsePrivateKey(privateKey)
		if err != nil {
			return nil, NewDeviceError("NewSSHExecutor", target.Address(), "parse SSH private key: "+err.Error(), ErrAuthConfig)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if target.Password != "" {
		password := target.Password
		auth = append(auth,
			ssh.Password(password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		)
	}
	if len(auth) == 0 {
		return nil, NewDeviceError("NewSSHExecutor", target.Address(), "set a password or key file", ErrAuthConfig)
	}

	defaults := DefaultSSHConfig()
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = defaults.ConnectTimeout
	}
	if config.CommandTimeout == 0 {
		config.CommandTimeout = defaults.CommandTimeout
	}

	return &SSHExecutor{
		target: target,
		auth:   auth,
		config: config,
	}, nil
}

// =============================================================================
// Connection Management
// =============================================================================

// connect establishes the SSH connection if not already connected.
func (e *SSHExecutor) connect(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sshClient != nil {
		// Check if connection is still alive
		_, _, err := e.sshClient.SendRequest("keepalive@nsorder", true, nil)
		if err == nil {
			return nil
		}
		e.sshClient.Close()
		e.sshClient = nil
	}

	hostKeyCallback := e.config.HostKeyCallback
	if hostKeyCallback == nil {
		hostKeyCallback = ssh.InsecureIgnoreHostKey()
	}

	clientConfig := &ssh.ClientConfig{
		User:            e.target.User,
		Auth:            e.auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         e.config.ConnectTimeout,
	}

	addr := e.target.Address()
	dialer := net.Dialer{Timeout: e.config.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return NewDeviceError("connect", addr, err.Error(), ErrDialFailed)
	}

	c, chans, reqs, err := ssh.NewClientConn(conn, addr, clientConfig)
	if err != nil {
		conn.Close()
		return NewDeviceError("connect", addr, err.Error(), ErrDialFailed)
	}

	e.sshClient = ssh.NewClient(c, chans, reqs)
	return nil
}

// Close closes the SSH connection.
func (e *SSHExecutor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sshClient != nil {
		err := e.sshClient.Close()
		e.sshClient = nil
		return err
	}
	return nil
}

// =============================================================================
// Execution
// =============================================================================

// Execute writes batch to a CLI shell followed by "exit" and returns
// everything the device printed. Output gathered before a failure is
// returned alongside the error.
func (e *SSHExecutor) Execute(ctx context.Context, batch string) (string, error) {
	addr := e.target.Address()
	if strings.TrimSpace(batch) == "" {
		return "", NewDeviceError("Execute", addr, "nothing to send", ErrEmptyBatch)
	}

	if err := e.connect(ctx); err != nil {
		return "", err
	}

	e.mu.Lock()
	session, err := e.sshClient.NewSession()
	e.mu.Unlock()
	if err != nil {
		return "", NewDeviceError("Execute", addr, "create SSH session: "+err.Error(), ErrSessionFailed)
	}
	defer session.Close()

	var out lockedBuffer
	session.Stdin = strings.NewReader(batch + "\nexit\n")
	session.Stdout = &out
	session.Stderr = &out

	if err := session.Shell(); err != nil {
		return "", NewDeviceError("Execute", addr, "start shell: "+err.Error(), ErrSessionFailed)
	}

	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
	}()

	select {
	case <-ctx.Done():
		return out.String(), ctx.Err()
	case <-time.After(e.config.CommandTimeout):
		return out.String(), NewDeviceError("Execute", addr, "no exit after "+e.config.CommandTimeout.String(), ErrCommandTimeout)
	case err := <-done:
		if err != nil {
			return out.String(), NewDeviceError("Execute", addr, err.Error(), ErrSessionFailed)
		}
		return out.String(), nil
	}
}

// lockedBuffer lets stdout and stderr copiers share one buffer.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
