package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sweetstyle/opsrun/internal/config"
	"github.com/sweetstyle/opsrun/internal/constants"
	"github.com/sweetstyle/opsrun/internal/security"
	"github.com/sweetstyle/opsrun/internal/ssh"
)

// ServerConnection holds a connected SSH client along with project and server config.
type ServerConnection struct {
	Client  *ssh.Client
	Project *config.ProjectConfig
	Server  *config.ServerConfig
	// ProjectDir is the directory holding opsrun.yaml
	ProjectDir string
}

// Close closes the SSH connection.
func (c *ServerConnection) Close() {
	if err := c.Client.Close(); err != nil {
		PrintVerbose("close: %v", err)
	}
}

// serverArg returns the server named on the command line, or OPSRUN_SERVER.
func serverArg(args []string) (string, error) {
	name := ""
	if len(args) > 0 {
		name = args[0]
	}
	if name == "" {
		name = os.Getenv(constants.EnvServer)
	}
	if name == "" {
		return "", fmt.Errorf("no server given (pass it as an argument or set %s)", constants.EnvServer)
	}
	if err := security.ValidateServerName(name); err != nil {
		return "", fmt.Errorf("invalid server name: %w", err)
	}
	return name, nil
}

// loadProject finds and loads opsrun.yaml. --config wins over the search.
func loadProject() (*config.ProjectConfig, string, error) {
	path := GetConfigFile()
	if path == "" {
		found, err := config.FindProjectConfig()
		if err != nil {
			return nil, "", err
		}
		path = found
	}
	cfg, err := config.LoadProjectConfig(path)
	if err != nil {
		return nil, "", err
	}
	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, "", err
	}
	return cfg, dir, nil
}

// clientOptions builds the SSH options for a server: connect timeout, agent
// and password.
func clientOptions(server *config.ServerConfig, global *config.GlobalConfig) ([]ssh.ClientOption, error) {
	var opts []ssh.ClientOption

	timeout, err := server.ConnectTimeout()
	if err != nil {
		return nil, err
	}
	if timeout == 0 && global.SSHTimeout > 0 {
		timeout = time.Duration(global.SSHTimeout) * time.Second
	}
	if timeout > 0 {
		opts = append(opts, ssh.WithTimeout(timeout))
	}

	if server.UseAgent {
		opts = append(opts, ssh.WithAgent(true))
	}

	password := config.ResolvePassword(server)
	if password == "" && askPassword && IsInteractive() {
		password, err = PromptPassword(fmt.Sprintf("Password for %s@%s: ", server.User, server.Host))
		if err != nil {
			return nil, err
		}
	}
	if password != "" {
		opts = append(opts, ssh.WithPassword(password))
	}
	return opts, nil
}

// connectServer loads the global config and connects to the named server.
// The caller must Close the connection.
func connectServer(ctx context.Context, serverName string, extra ...ssh.ClientOption) (*ServerConnection, error) {
	globalCfg, err := config.LoadGlobalConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load global config: %w", err)
	}

	serverCfg, err := globalCfg.GetServer(serverName)
	if err != nil {
		return nil, err
	}

	opts, err := clientOptions(serverCfg, globalCfg)
	if err != nil {
		return nil, err
	}
	opts = append(opts, extra...)

	client := ssh.NewClient(serverCfg.Host, serverCfg.User, serverCfg.Port, serverCfg.KeyPath, opts...)
	PrintVerbose("Connecting to %s@%s...", serverCfg.User, client.Addr())
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", serverName, err)
	}

	return &ServerConnection{Client: client, Server: serverCfg}, nil
}

// connectProject loads opsrun.yaml and connects to the named server.
// The caller must Close the connection.
func connectProject(ctx context.Context, serverName string) (*ServerConnection, error) {
	projectCfg, dir, err := loadProject()
	if err != nil {
		return nil, err
	}

	conn, err := connectServer(ctx, serverName)
	if err != nil {
		return nil, err
	}
	conn.Project = projectCfg
	conn.ProjectDir = dir
	return conn, nil
}
