package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/sweetstyle/opsrun/internal/security"
)

var (
	// Version is set at build time
	Version = "dev"

	// Global flags
	verbose bool
	cfgFile string
	yesFlag bool // CI/CD: skip confirmations
	noColor bool

	askPassword bool
)

var rootCmd = &cobra.Command{
	Use:   "opsrun",
	Short: "Run deployment runbooks over SSH",
	Long: `opsrun deploys a single-page frontend and a Node.js API to a VPS and
keeps it running. Every operation is a runbook: an ordered list of remote
steps executed over one SSH connection.

Quick start:
  opsrun init                           # Create opsrun.yaml
  opsrun server add prod root@my-vps    # Register a server
  opsrun deploy backend prod            # Upload and start the API
  opsrun deploy frontend prod           # Build and serve the SPA
  opsrun tls prod && opsrun nginx prod  # HTTPS

Environment:
  OPSRUN_SERVER              Default server name
  OPSRUN_SSH_KEY             SSH private key content
  OPSRUN_SSH_PASSWORD        SSH password (or password_env per server)
  OPSRUN_KNOWN_HOSTS         SSH known_hosts content
  OPSRUN_SKIP_HOST_KEY_CHECK Skip host key verification (true/false)
  OPSRUN_<FLAG>              Default for any flag, e.g. OPSRUN_LINES=200`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadEnvAndBindFlags(cmd); err != nil {
			return err
		}
		if noColor {
			disableColor()
		}
		return nil
	},
}

// Execute runs the root command. Ctrl-C cancels the running step.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		printFailure(err)
	}
	return err
}

// ExitCode maps an error returned by Execute to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

// ExitError carries a specific exit status, such as a remote command's.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// GetRootCmd returns the root command, used to generate documentation.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show commands as they run")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Project config file (default: opsrun.yaml)")
	rootCmd.PersistentFlags().String("env-file", "", "Load secrets from this file (default: .env when present)")
	rootCmd.PersistentFlags().BoolVarP(&yesFlag, "yes", "y", false, "Skip confirmations (CI/CD mode)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&askPassword, "ask-password", false, "Prompt for the SSH password when none is configured")

	rootCmd.SetVersionTemplate(`opsrun {{.Version}}
`)
}

// IsVerbose returns true if verbose mode is enabled
func IsVerbose() bool {
	return verbose
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// IsYesMode returns true if --yes flag is set (CI/CD mode)
func IsYesMode() bool {
	return yesFlag
}

// PrintVerboseCommand prints a command in verbose mode with sensitive values masked
func PrintVerboseCommand(command string) {
	if verbose {
		fmt.Println(mutedStyle.Render("   $ " + security.SanitizeCommandForLog(command)))
	}
}
