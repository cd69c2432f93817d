package cmd

import (
	"github.com/spf13/cobra"
)

var shellCmd = &cobra.Command{
	Use:   "shell [server]",
	Short: "Open an interactive shell on a server",
	Long: `Opens an interactive login shell over SSH with a pseudo-terminal.

Example:
  opsrun shell production`,
	Args: cobra.MaximumNArgs(1),
	RunE: runShell,
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

func runShell(cmd *cobra.Command, args []string) error {
	serverName, err := serverArg(args)
	if err != nil {
		return err
	}

	conn, err := connectServer(cmd.Context(), serverName)
	if err != nil {
		return err
	}
	defer conn.Close()

	PrintInfo("Connected to %s, exit to close the session", serverName)
	return conn.Client.Shell()
}
