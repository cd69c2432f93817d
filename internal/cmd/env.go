package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/sweetstyle/opsrun/internal/config"
	"github.com/sweetstyle/opsrun/internal/constants"
	"github.com/sweetstyle/opsrun/internal/deploy"
	"github.com/sweetstyle/opsrun/internal/envfile"
	"github.com/sweetstyle/opsrun/internal/runbook"
	"github.com/sweetstyle/opsrun/internal/security"
	"github.com/sweetstyle/opsrun/internal/ssh"
)

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Manage the backend .env on servers",
	Long: `The backend .env is rendered from backend.env in opsrun.yaml. Values may
reference local environment variables as ${NAME}; they are resolved when the
file is rendered, so secrets stay out of opsrun.yaml.`,
}

var envPushCmd = &cobra.Command{
	Use:   "push [server]",
	Short: "Render and upload the backend .env, then restart",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := runProjectRunbook(cmd, args, func(o *deploy.Orchestrator) (runbook.Runbook, error) {
			return o.EnvRunbook()
		})
		return err
	},
}

var envShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the backend .env as it would be pushed",
	Long: `Renders the backend .env locally without connecting. Secret-looking
values are masked unless --reveal is given.`,
	Args: cobra.NoArgs,
	RunE: runEnvShow,
}

var envListCmd = &cobra.Command{
	Use:   "list [server]",
	Short: "List the variables of the .env on the server",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runEnvList,
}

var envSetCmd = &cobra.Command{
	Use:   "set <server> <KEY=value>...",
	Short: "Set variables in the .env on the server",
	Long: `Sets variables directly in the server's backend .env, keeping the
others. KEY alone with --generate stores a random 64 character secret.

Example:
  opsrun env set prod LOG_LEVEL=debug --restart
  opsrun env set prod JWT_SECRET --generate`,
	Args: cobra.MinimumNArgs(2),
	RunE: runEnvSet,
}

var envUnsetCmd = &cobra.Command{
	Use:   "unset <server> <KEY>...",
	Short: "Remove variables from the .env on the server",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runEnvUnset,
}

var (
	envReveal   bool
	envGenerate bool
	envRestart  bool
)

func init() {
	rootCmd.AddCommand(envCmd)
	envCmd.AddCommand(envPushCmd)
	envCmd.AddCommand(envShowCmd)
	envCmd.AddCommand(envListCmd)
	envCmd.AddCommand(envSetCmd)
	envCmd.AddCommand(envUnsetCmd)

	envShowCmd.Flags().BoolVar(&envReveal, "reveal", false, "Show secret values")
	envListCmd.Flags().BoolVar(&envReveal, "reveal", false, "Show secret values")
	envSetCmd.Flags().BoolVar(&envGenerate, "generate", false, "Generate random values for keys given without =")
	envSetCmd.Flags().BoolVar(&envRestart, "restart", false, "Restart the backend process afterwards")
	envUnsetCmd.Flags().BoolVar(&envRestart, "restart", false, "Restart the backend process afterwards")
}

func displayEnv(vars map[string]string) string {
	if envReveal {
		var sb strings.Builder
		for _, k := range envfile.Keys(vars) {
			fmt.Fprintf(&sb, "%s=%s\n", k, vars[k])
		}
		return sb.String()
	}
	return envfile.Masked(vars)
}

func runEnvShow(cmd *cobra.Command, args []string) error {
	project, dir, err := loadProject()
	if err != nil {
		return err
	}
	o, err := deploy.NewOrchestrator(project, "<server>")
	if err != nil {
		return err
	}
	o.SetLocalDir(dir)

	content, err := o.RenderedBackendEnv()
	if err != nil {
		return err
	}
	vars, err := envfile.Parse(content)
	if err != nil {
		return err
	}
	fmt.Print(displayEnv(vars))
	return nil
}

// parseAssignments turns KEY=value arguments into a map. A bare KEY gets a
// generated secret when generate is set.
func parseAssignments(args []string, generate bool) (map[string]string, error) {
	vars := make(map[string]string, len(args))
	for _, a := range args {
		key, value, ok := strings.Cut(a, "=")
		if !ok {
			if !generate {
				return nil, fmt.Errorf("invalid %q, use KEY=value (or --generate)", a)
			}
			secret, err := envfile.GenerateSecret()
			if err != nil {
				return nil, err
			}
			value = secret
		}
		if err := security.ValidateEnvKey(key); err != nil {
			return nil, fmt.Errorf("invalid environment variable key: %w", err)
		}
		vars[key] = value
	}
	return vars, nil
}

func readRemoteEnv(ctx context.Context, exec ssh.Executor, path string) (map[string]string, error) {
	result, err := exec.Exec(ctx, envfile.ReadCommand(path))
	if err != nil {
		return nil, err
	}
	return envfile.Parse(result.Stdout)
}

func writeRemoteEnv(ctx context.Context, exec ssh.Executor, path string, vars map[string]string) error {
	content, err := envfile.Render(vars)
	if err != nil {
		return err
	}
	return exec.UploadContent(ctx, []byte(content), path, envfile.FileMode)
}

func restartBackend(ctx context.Context, exec ssh.Executor, project *config.ProjectConfig) error {
	command := fmt.Sprintf("pm2 restart %s --update-env", security.ShellEscape(project.Backend.Process))
	PrintVerboseCommand(command)
	result, err := exec.Exec(ctx, command)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("restart failed (exit %d): %s", result.ExitCode, strings.TrimSpace(result.Output()))
	}
	return nil
}

// editRemoteEnv applies edit to the server's backend .env.
func editRemoteEnv(cmd *cobra.Command, serverArgs []string, edit func(map[string]string) (map[string]string, error)) error {
	ctx := cmd.Context()
	serverName, err := serverArg(serverArgs)
	if err != nil {
		return err
	}
	conn, err := connectProject(ctx, serverName)
	if err != nil {
		return err
	}
	defer conn.Close()

	path := constants.EnvFilePath(conn.Project.Backend.Path)
	vars, err := readRemoteEnv(ctx, conn.Client, path)
	if err != nil {
		return err
	}
	if vars, err = edit(vars); err != nil {
		return err
	}
	if err := writeRemoteEnv(ctx, conn.Client, path, vars); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	PrintSuccess("Updated %s on %s", path, serverName)

	if !envRestart {
		PrintInfo("Run with --restart to apply immediately")
		return nil
	}
	if err := restartBackend(ctx, conn.Client, conn.Project); err != nil {
		return err
	}
	PrintSuccess("Restarted %s", conn.Project.Backend.Process)
	return nil
}

func runEnvSet(cmd *cobra.Command, args []string) error {
	updates, err := parseAssignments(args[1:], envGenerate)
	if err != nil {
		return err
	}
	return editRemoteEnv(cmd, args[:1], func(vars map[string]string) (map[string]string, error) {
		return envfile.Merge(vars, updates), nil
	})
}

func runEnvUnset(cmd *cobra.Command, args []string) error {
	keys := args[1:]
	return editRemoteEnv(cmd, args[:1], func(vars map[string]string) (map[string]string, error) {
		return removeKeys(vars, keys)
	})
}

func runEnvList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	serverName, err := serverArg(args)
	if err != nil {
		return err
	}
	conn, err := connectProject(ctx, serverName)
	if err != nil {
		return err
	}
	defer conn.Close()

	path := constants.EnvFilePath(conn.Project.Backend.Path)
	vars, err := readRemoteEnv(ctx, conn.Client, path)
	if err != nil {
		return err
	}
	if len(vars) == 0 {
		PrintInfo("No environment variables in %s on %s", path, serverName)
		return nil
	}
	fmt.Println(titleStyle.Render(fmt.Sprintf("%s on %s", path, serverName)))
	fmt.Print(displayEnv(vars))
	return nil
}

func removeKeys(vars map[string]string, keys []string) (map[string]string, error) {
	for _, k := range keys {
		if _, ok := vars[k]; !ok {
			return nil, fmt.Errorf("variable %s not found", k)
		}
		delete(vars, k)
	}
	return vars, nil
}
