package ssh

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/pkg/sftp"
	"github.com/sweetstyle/opsrun/internal/constants"
	"golang.org/x/crypto/ssh"
)

const (
	testUser     = "deploy"
	testPassword = "correct-horse"
)

// execHandler runs one "exec" request. killed is closed when the client
// sends a KILL signal or drops the channel.
type execHandler func(command string, stdout, stderr io.Writer, killed <-chan struct{}) uint32

// testServer is an in-process SSH server that answers exec requests through
// a handler and serves the sftp subsystem on the local filesystem.
type testServer struct {
	addr    string
	hostKey ssh.Signer
	handler execHandler

	mu       sync.Mutex
	commands []string
	signals  []string
}

func newTestServer(t *testing.T, handler execHandler) *testServer {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	hostKey, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("NewSignerFromKey: %v", err)
	}

	config := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if c.User() == testUser && string(pass) == testPassword {
				return nil, nil
			}
			return nil, fmt.Errorf("password rejected for %q", c.User())
		},
	}
	config.AddHostKey(hostKey)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	s := &testServer{
		addr:    listener.Addr().String(),
		hostKey: hostKey,
		handler: handler,
	}

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go s.serveConn(conn, config)
		}
	}()

	return s
}

func (s *testServer) serveConn(nConn net.Conn, config *ssh.ServerConfig) {
	_, chans, reqs, err := ssh.NewServerConn(nConn, config)
	if err != nil {
		nConn.Close()
		return
	}
	go ssh.DiscardRequests(reqs)

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			_ = newChannel.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		ch, requests, err := newChannel.Accept()
		if err != nil {
			continue
		}
		go s.serveSession(ch, requests)
	}
}

func (s *testServer) serveSession(ch ssh.Channel, requests <-chan *ssh.Request) {
	killed := make(chan struct{})
	var once sync.Once
	kill := func() { once.Do(func() { close(killed) }) }
	defer kill()

	for req := range requests {
		switch req.Type {
		case "exec":
			var payload struct{ Command string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
				_ = req.Reply(false, nil)
				continue
			}
			s.mu.Lock()
			s.commands = append(s.commands, payload.Command)
			s.mu.Unlock()
			_ = req.Reply(true, nil)

			go func() {
				status := s.handler(payload.Command, ch, ch.Stderr(), killed)
				_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{status}))
				_ = ch.Close()
			}()

		case "subsystem":
			var payload struct{ Name string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil || payload.Name != "sftp" {
				_ = req.Reply(false, nil)
				continue
			}
			_ = req.Reply(true, nil)

			go func() {
				server, err := sftp.NewServer(ch)
				if err != nil {
					_ = ch.Close()
					return
				}
				_ = server.Serve()
				_ = server.Close()
			}()

		case "signal":
			var payload struct{ Signal string }
			_ = ssh.Unmarshal(req.Payload, &payload)
			s.mu.Lock()
			s.signals = append(s.signals, payload.Signal)
			s.mu.Unlock()
			if payload.Signal == string(ssh.SIGKILL) {
				kill()
			}
			if req.WantReply {
				_ = req.Reply(true, nil)
			}

		default:
			if req.WantReply {
				_ = req.Reply(false, nil)
			}
		}
	}
}

func (s *testServer) receivedSignals() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.signals...)
}

func (s *testServer) hostPort(t *testing.T) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(s.addr)
	if err != nil {
		t.Fatalf("SplitHostPort: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("Atoi: %v", err)
	}
	return host, port
}

// isolateEnv keeps the developer's keys, agent and known_hosts out of the test.
func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SSH_AUTH_SOCK", "")
	t.Setenv(constants.EnvSSHKey, "")
	t.Setenv(constants.EnvKnownHosts, "")
	t.Setenv(constants.EnvSkipHostKeyCheck, "")
}

// dial connects to s with the given password, trusting s's host key unless
// opts override it.
func (s *testServer) dial(t *testing.T, password string, opts ...ClientOption) (*Client, error) {
	t.Helper()
	isolateEnv(t)

	host, port := s.hostPort(t)
	base := []ClientOption{
		WithPassword(password),
		WithHostKeyCallback(ssh.FixedHostKey(s.hostKey.PublicKey())),
		WithTimeout(5 * time.Second),
	}
	client := NewClient(host, testUser, port, "", append(base, opts...)...)
	err := client.Connect(context.Background())
	t.Cleanup(func() { client.Close() })
	return client, err
}

// echoHandler answers a few fixed commands.
func echoHandler(command string, stdout, stderr io.Writer, killed <-chan struct{}) uint32 {
	switch command {
	case "hello":
		io.WriteString(stdout, "line one\nline two\n")
		io.WriteString(stderr, "warn: something\n")
		return 0
	case "fail":
		io.WriteString(stderr, "boom\n")
		return 3
	case "hang":
		io.WriteString(stdout, "partial\n")
		<-killed
		return 137
	default:
		io.WriteString(stdout, command)
		return 0
	}
}
