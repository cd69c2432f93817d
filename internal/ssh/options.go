package ssh

import (
	"time"

	"golang.org/x/crypto/ssh"
)

// DefaultTimeout bounds the TCP dial and the SSH handshake.
const DefaultTimeout = 30 * time.Second

type clientOptions struct {
	timeout         time.Duration
	password        string
	useAgent        bool
	hostKeyCallback ssh.HostKeyCallback
	knownHostsPath  string
}

func defaultOptions() clientOptions {
	return clientOptions{
		timeout: DefaultTimeout,
	}
}

// ClientOption configures a Client.
type ClientOption func(*clientOptions)

// WithTimeout sets the connect timeout. Zero or negative keeps the default.
func WithTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithPassword enables password authentication.
func WithPassword(password string) ClientOption {
	return func(o *clientOptions) {
		o.password = password
	}
}

// WithAgent enables ssh-agent authentication through SSH_AUTH_SOCK.
func WithAgent(enabled bool) ClientOption {
	return func(o *clientOptions) {
		o.useAgent = enabled
	}
}

// WithHostKeyCallback overrides known_hosts verification.
func WithHostKeyCallback(cb ssh.HostKeyCallback) ClientOption {
	return func(o *clientOptions) {
		o.hostKeyCallback = cb
	}
}

// WithKnownHostsFile verifies host keys against the given file instead of ~/.ssh/known_hosts.
func WithKnownHostsFile(path string) ClientOption {
	return func(o *clientOptions) {
		o.knownHostsPath = path
	}
}
