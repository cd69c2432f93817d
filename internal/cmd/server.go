package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/sweetstyle/opsrun/internal/config"
	"github.com/sweetstyle/opsrun/internal/security"
	"github.com/sweetstyle/opsrun/internal/ssh"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Manage deployment servers",
	Long:  `Commands to add, test and manage the servers in ~/.config/opsrun/config.yaml.`,
}

var serverAddCmd = &cobra.Command{
	Use:   "add <name> <user@host>",
	Short: "Add a new server",
	Long: `Adds a new server to the global configuration.

Passwords are never stored: --password-env names the environment variable
that holds the password.

Example:
  opsrun server add production deploy@my-vps.com
  opsrun server add staging root@203.0.113.10 --port 2222 --password-env STAGING_SSH_PASSWORD`,
	Args: cobra.ExactArgs(2),
	RunE: runServerAdd,
}

var serverListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured servers",
	RunE:  runServerList,
}

var serverRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a server",
	Args:  cobra.ExactArgs(1),
	RunE:  runServerRemove,
}

var serverTestCmd = &cobra.Command{
	Use:   "test [name]",
	Short: "Test the SSH connection to a server",
	Long: `Connects to the server, runs a trivial command and reports the
failure kind (auth, connection, timeout, host-key) when it fails.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServerTest,
}

var serverSetCmd = &cobra.Command{
	Use:   "set <server> <key> <value>",
	Short: "Set a server configuration value",
	Long: `Sets a configuration value for a server.

Available keys:
  user          SSH user
  port          SSH port
  key_path      SSH private key path
  password_env  Environment variable holding the SSH password
  use_agent     Authenticate with ssh-agent (true/false)
  timeout       Connect timeout, e.g. 10s

Examples:
  opsrun server set prod password_env PROD_SSH_PASSWORD
  opsrun server set staging timeout 45s`,
	Args: cobra.ExactArgs(3),
	RunE: runServerSet,
}

var (
	serverPort        int
	serverKeyPath     string
	serverPasswordEnv string
	serverUseAgent    bool
	serverTimeout     string
	skipSSHTest       bool
)

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.AddCommand(serverAddCmd)
	serverCmd.AddCommand(serverListCmd)
	serverCmd.AddCommand(serverRemoveCmd)
	serverCmd.AddCommand(serverTestCmd)
	serverCmd.AddCommand(serverSetCmd)

	serverAddCmd.Flags().IntVarP(&serverPort, "port", "p", 22, "SSH port")
	serverAddCmd.Flags().StringVarP(&serverKeyPath, "key", "k", "", "SSH private key path")
	serverAddCmd.Flags().StringVar(&serverPasswordEnv, "password-env", "", "Environment variable holding the SSH password")
	serverAddCmd.Flags().BoolVar(&serverUseAgent, "agent", false, "Authenticate with ssh-agent")
	serverAddCmd.Flags().StringVar(&serverTimeout, "timeout", "", "Connect timeout (e.g. 10s)")
	serverAddCmd.Flags().BoolVar(&skipSSHTest, "skip-test", false, "Skip SSH connection test")
}

// parseHostSpec splits user@host. The user defaults to root.
func parseHostSpec(spec string) (user, host string, err error) {
	user, host = "root", spec
	if i := strings.LastIndex(spec, "@"); i >= 0 {
		user, host = spec[:i], spec[i+1:]
	}
	if user == "" || host == "" {
		return "", "", fmt.Errorf("invalid host format %q, use user@host", spec)
	}
	return user, host, nil
}

func runServerAdd(cmd *cobra.Command, args []string) error {
	name := args[0]

	if err := security.ValidateServerName(name); err != nil {
		return fmt.Errorf("invalid server name: %w", err)
	}

	user, host, err := parseHostSpec(args[1])
	if err != nil {
		return err
	}

	globalCfg, err := config.LoadGlobalConfig()
	if err != nil {
		return fmt.Errorf("failed to load global config: %w", err)
	}

	serverCfg := config.ServerConfig{
		Host:        host,
		User:        user,
		Port:        serverPort,
		KeyPath:     serverKeyPath,
		PasswordEnv: serverPasswordEnv,
		UseAgent:    serverUseAgent,
		Timeout:     serverTimeout,
	}

	if err := globalCfg.AddServer(name, serverCfg); err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}

	if err := config.SaveGlobalConfig(globalCfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	PrintSuccess("Added server '%s' (%s@%s)", name, user, host)

	if skipSSHTest {
		PrintInfo("Skipping SSH connection test (--skip-test)")
		printNextSteps(name)
		return nil
	}

	if err := testAndConfigureSSH(cmd.Context(), name, &serverCfg, globalCfg); err != nil {
		PrintWarning("SSH connection could not be established: %v", err)
		PrintInfo("You can test the connection manually with: ssh %s@%s -p %d", user, host, serverCfg.Port)
	}

	printNextSteps(name)
	return nil
}

func printNextSteps(name string) {
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Printf("  opsrun server test %s\n", name)
	fmt.Printf("  opsrun deploy backend %s\n", name)
}

// testAndConfigureSSH tests the SSH connection and tries alternative keys if needed
func testAndConfigureSSH(ctx context.Context, name string, serverCfg *config.ServerConfig, globalCfg *config.GlobalConfig) error {
	PrintInfo("Testing SSH connection...")

	opts, err := clientOptions(serverCfg, globalCfg)
	if err != nil {
		return err
	}

	err = ssh.TryConnect(ctx, serverCfg.Host, serverCfg.User, serverCfg.Port, serverCfg.KeyPath, opts...)
	if err == nil {
		PrintSuccess("SSH connection successful")
		return nil
	}
	// only an authentication failure can be fixed with another key
	if ssh.KindOf(err) != ssh.FailureAuth {
		return err
	}

	PrintWarning("Authentication failed with the configured key")

	keys, err := ssh.DiscoverSSHKeys()
	if err != nil {
		return fmt.Errorf("failed to discover SSH keys: %w", err)
	}

	// Filter out encrypted keys and already tried key
	var availableKeys []ssh.SSHKeyInfo
	for _, key := range keys {
		if key.IsEncrypted {
			PrintVerbose("Skipping encrypted key: %s", key.Name)
			continue
		}
		if serverCfg.KeyPath != "" && key.Path == serverCfg.KeyPath {
			continue
		}
		availableKeys = append(availableKeys, key)
	}

	if len(availableKeys) == 0 {
		return fmt.Errorf("no SSH keys available to try")
	}

	var workingKey *ssh.SSHKeyInfo
	if IsInteractive() {
		workingKey = interactiveKeySelection(ctx, serverCfg, availableKeys, opts)
	} else {
		workingKey = autoTryKeys(ctx, serverCfg, availableKeys, opts)
	}

	if workingKey == nil {
		return fmt.Errorf("no working SSH key found")
	}

	serverCfg.KeyPath = workingKey.Path
	globalCfg.Servers[name] = *serverCfg

	if err := config.SaveGlobalConfig(globalCfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	PrintSuccess("Updated server config with key: %s", workingKey.Path)
	return nil
}

// interactiveKeySelection prompts the user to select an SSH key
func interactiveKeySelection(ctx context.Context, serverCfg *config.ServerConfig, keys []ssh.SSHKeyInfo, opts []ssh.ClientOption) *ssh.SSHKeyInfo {
	options := make([]string, len(keys))
	for i, key := range keys {
		options[i] = fmt.Sprintf("%s (%s)", key.Name, key.Type)
	}

	choice := PromptSelect("Select SSH key to use:", options)
	if choice < 0 {
		return nil
	}

	selectedKey := &keys[choice]
	PrintInfo("Testing with %s...", selectedKey.Path)

	if err := ssh.TryConnect(ctx, serverCfg.Host, serverCfg.User, serverCfg.Port, selectedKey.Path, opts...); err != nil {
		PrintError("Connection failed: %v", err)
		return nil
	}

	PrintSuccess("Connection successful")
	return selectedKey
}

// autoTryKeys automatically tries available keys in order
func autoTryKeys(ctx context.Context, serverCfg *config.ServerConfig, keys []ssh.SSHKeyInfo, opts []ssh.ClientOption) *ssh.SSHKeyInfo {
	PrintInfo("Trying available SSH keys automatically...")

	for i := range keys {
		PrintVerbose("Trying %s...", keys[i].Name)
		if err := ssh.TryConnect(ctx, serverCfg.Host, serverCfg.User, serverCfg.Port, keys[i].Path, opts...); err == nil {
			PrintSuccess("SSH connection successful with %s", keys[i].Name)
			return &keys[i]
		}
	}

	return nil
}

func runServerList(cmd *cobra.Command, args []string) error {
	globalCfg, err := config.LoadGlobalConfig()
	if err != nil {
		return err
	}

	servers := globalCfg.ListServers()
	if len(servers) == 0 {
		PrintInfo("No servers configured")
		fmt.Println()
		fmt.Println("Add a server with:")
		fmt.Println("  opsrun server add <name> <user@host>")
		return nil
	}

	fmt.Println(titleStyle.Render("Configured servers:"))
	fmt.Println()
	for _, name := range servers {
		server, _ := globalCfg.GetServer(name)
		fmt.Printf("  %s\n", name)
		fmt.Printf("    Host: %s@%s:%d\n", server.User, server.Host, server.Port)
		if server.KeyPath != "" {
			fmt.Printf("    Key:  %s\n", server.KeyPath)
		}
		if server.PasswordEnv != "" {
			fmt.Printf("    Password from: $%s\n", server.PasswordEnv)
		}
		if server.UseAgent {
			fmt.Println("    Agent: yes")
		}
		if server.Timeout != "" {
			fmt.Printf("    Timeout: %s\n", server.Timeout)
		}
		fmt.Println()
	}

	return nil
}

func runServerRemove(cmd *cobra.Command, args []string) error {
	name := args[0]

	if err := security.ValidateServerName(name); err != nil {
		return fmt.Errorf("invalid server name: %w", err)
	}

	globalCfg, err := config.LoadGlobalConfig()
	if err != nil {
		return err
	}

	if err := globalCfg.RemoveServer(name); err != nil {
		return err
	}

	if err := config.SaveGlobalConfig(globalCfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	PrintSuccess("Removed server '%s'", name)
	return nil
}

func runServerTest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	name, err := serverArg(args)
	if err != nil {
		return err
	}

	conn, err := connectServer(ctx, name)
	if err != nil {
		return err
	}
	defer conn.Close()

	result, err := conn.Client.Exec(ctx, "uname -srm && uptime")
	if err != nil {
		return err
	}
	PrintSuccess("Connected to %s (%s)", name, conn.Client.Addr())
	fmt.Println(indent(result.Output(), "  "))
	return nil
}

// applyServerSetting updates one key of a server config.
func applyServerSetting(server *config.ServerConfig, key, value string) error {
	switch key {
	case "user":
		server.User = value
	case "port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for port: %w", err)
		}
		server.Port = port
	case "key_path":
		server.KeyPath = value
	case "password_env":
		server.PasswordEnv = value
	case "use_agent":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for use_agent: use 'true' or 'false'")
		}
		server.UseAgent = b
	case "timeout":
		server.Timeout = value
	default:
		return fmt.Errorf("unknown configuration key: %s (available: user, port, key_path, password_env, use_agent, timeout)", key)
	}

	if errs := config.ValidateServerConfig(server); errs.HasErrors() {
		return errs
	}
	return nil
}

func runServerSet(cmd *cobra.Command, args []string) error {
	serverName, key, value := args[0], args[1], args[2]

	if err := security.ValidateServerName(serverName); err != nil {
		return fmt.Errorf("invalid server name: %w", err)
	}

	globalCfg, err := config.LoadGlobalConfig()
	if err != nil {
		return err
	}

	// the stored entry, without the defaults GetServer fills in
	serverCfg, ok := globalCfg.Servers[serverName]
	if !ok {
		return fmt.Errorf("server '%s' not found", serverName)
	}

	if err := applyServerSetting(&serverCfg, key, value); err != nil {
		return err
	}

	globalCfg.Servers[serverName] = serverCfg
	if err := config.SaveGlobalConfig(globalCfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	PrintSuccess("Set %s=%s for server '%s'", key, value, serverName)
	return nil
}
