package ssh

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"github.com/skeema/knownhosts"
	"github.com/sweetstyle/opsrun/internal/constants"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// Client represents an SSH client connection
type Client struct {
	Host    string
	User    string
	Port    int
	KeyPath string

	opts      clientOptions
	client    *ssh.Client
	sftp      *sftp.Client
	agentConn net.Conn
}

// NewClient creates a new SSH client
func NewClient(host, user string, port int, keyPath string, opts ...ClientOption) *Client {
	if port == 0 {
		port = 22
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Client{
		Host:    host,
		User:    user,
		Port:    port,
		KeyPath: keyPath,
		opts:    o,
	}
}

// Addr returns host:port of the target.
func (c *Client) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Connect establishes an SSH connection. The dial and the handshake are both
// bounded by the configured timeout and by ctx's deadline.
func (c *Client) Connect(ctx context.Context) error {
	addr := c.Addr()

	auth, err := c.authMethods()
	if err != nil {
		return &Error{Kind: FailureAuth, Op: "auth", Addr: addr, Err: err}
	}

	hostKeyCallback, algorithms, err := c.hostKeyCallback(addr)
	if err != nil {
		return &Error{Kind: FailureHostKey, Op: "known_hosts", Addr: addr, Err: err}
	}

	config := &ssh.ClientConfig{
		User:              c.User,
		Auth:              auth,
		HostKeyCallback:   hostKeyCallback,
		HostKeyAlgorithms: algorithms,
		Timeout:           c.opts.timeout,
	}

	dialer := net.Dialer{Timeout: c.opts.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return classifyDialError("dial", addr, err)
	}

	deadline := time.Now().Add(c.opts.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return classifyDialError("handshake", addr, err)
	}
	_ = conn.SetDeadline(time.Time{})

	c.client = ssh.NewClient(sshConn, chans, reqs)
	return nil
}

// Close closes the SSH connection
func (c *Client) Close() error {
	if c.sftp != nil {
		_ = c.sftp.Close()
		c.sftp = nil
	}
	if c.agentConn != nil {
		_ = c.agentConn.Close()
		c.agentConn = nil
	}
	if c.client != nil {
		err := c.client.Close()
		c.client = nil
		return err
	}
	return nil
}

// IsConnected returns true if the client is connected
func (c *Client) IsConnected() bool {
	return c.client != nil
}

// NewSession creates a new SSH session
func (c *Client) NewSession() (*ssh.Session, error) {
	if c.client == nil {
		return nil, ErrNotConnected
	}
	session, err := c.client.NewSession()
	if err != nil {
		return nil, &Error{Kind: FailureConnection, Op: "session", Addr: c.Addr(), Err: err}
	}
	return session, nil
}

// authMethods collects agent, key and password methods, in that order.
func (c *Client) authMethods() ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if c.opts.useAgent {
		if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
			if conn, err := net.Dial("unix", sock); err == nil {
				c.agentConn = conn
				methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
			}
		}
	}

	signer, err := c.loadPrivateKey()
	switch {
	case err == nil && signer != nil:
		methods = append(methods, ssh.PublicKeys(signer))
	case err != nil && (c.KeyPath != "" || os.Getenv(constants.EnvSSHKey) != ""):
		// an explicitly configured key that cannot be used is fatal
		return nil, err
	}

	if c.opts.password != "" {
		methods = append(methods, ssh.Password(c.opts.password))
	}

	if len(methods) == 0 {
		return nil, fmt.Errorf("no authentication method available (configure a key, a password env var, or set %s)", constants.EnvSSHKey)
	}
	return methods, nil
}

// loadPrivateKey loads the SSH private key. It returns (nil, nil) when no key
// was configured and none was found in the usual locations.
func (c *Client) loadPrivateKey() (ssh.Signer, error) {
	// CI/CD: key content in the environment wins
	if envKey := os.Getenv(constants.EnvSSHKey); envKey != "" {
		signer, err := ssh.ParsePrivateKey([]byte(envKey))
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", constants.EnvSSHKey, err)
		}
		return signer, nil
	}

	keyPath := expandHome(c.KeyPath)
	if keyPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, nil
		}
		for _, name := range []string{"id_ed25519", "id_rsa"} {
			p := filepath.Join(homeDir, ".ssh", name)
			if _, err := os.Stat(p); err == nil {
				keyPath = p
				break
			}
		}
		if keyPath == "" {
			return nil, nil
		}
	}

	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key %s: %w", keyPath, err)
	}

	return signer, nil
}

// hostKeyCallback returns the host key callback and the preferred host key
// algorithms for addr.
// SECURITY: a known_hosts source is required unless verification is
// explicitly disabled with OPSRUN_SKIP_HOST_KEY_CHECK=true.
func (c *Client) hostKeyCallback(addr string) (ssh.HostKeyCallback, []string, error) {
	if c.opts.hostKeyCallback != nil {
		return c.opts.hostKeyCallback, nil, nil
	}

	// CI/CD: known_hosts content in the environment
	if content := os.Getenv(constants.EnvKnownHosts); content != "" {
		tmpFile, err := os.CreateTemp("", "known_hosts")
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create temp known_hosts: %w", err)
		}
		defer os.Remove(tmpFile.Name())

		if _, err := tmpFile.WriteString(content); err != nil {
			tmpFile.Close()
			return nil, nil, fmt.Errorf("failed to write temp known_hosts: %w", err)
		}
		tmpFile.Close()

		db, err := knownhosts.NewDB(tmpFile.Name())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse %s: %w", constants.EnvKnownHosts, err)
		}
		return db.HostKeyCallback(), db.HostKeyAlgorithms(addr), nil
	}

	if os.Getenv(constants.EnvSkipHostKeyCheck) == "true" {
		return ssh.InsecureIgnoreHostKey(), nil, nil
	}

	knownHostsPath := c.opts.knownHostsPath
	if knownHostsPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, nil, fmt.Errorf("cannot determine home directory: %w", err)
		}
		knownHostsPath = filepath.Join(homeDir, ".ssh", "known_hosts")
	}

	if _, err := os.Stat(knownHostsPath); os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("SSH known_hosts file not found at %s. "+
			"Connect once manually with: ssh %s@%s -p %d\n"+
			"For CI/CD, set %s or %s=true",
			knownHostsPath, c.User, c.Host, c.Port, constants.EnvKnownHosts, constants.EnvSkipHostKeyCheck)
	}

	db, err := knownhosts.NewDB(knownHostsPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read known_hosts: %w", err)
	}

	return db.HostKeyCallback(), db.HostKeyAlgorithms(addr), nil
}

func expandHome(p string) string {
	if strings.HasPrefix(p, "~/") {
		if homeDir, err := os.UserHomeDir(); err == nil {
			return filepath.Join(homeDir, p[2:])
		}
	}
	return p
}
