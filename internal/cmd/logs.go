package cmd

import (
	"github.com/spf13/cobra"
	"github.com/sweetstyle/opsrun/internal/deploy"
	"github.com/sweetstyle/opsrun/internal/runbook"
)

var logsCmd = &cobra.Command{
	Use:   "logs [server]",
	Short: "Show application or nginx logs",
	Long: `Prints recent pm2 logs of the backend process, or the nginx access and
error logs.

Example:
  opsrun logs production
  opsrun logs production --lines 50
  opsrun logs production --source nginx -f`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogs,
}

var (
	logsFollow bool
	logsLines  int
	logsSource string
)

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output until Ctrl-C")
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 100, "Number of lines to show")
	logsCmd.Flags().StringVar(&logsSource, "source", "app", "Log source (app, nginx)")
}

func runLogs(cmd *cobra.Command, args []string) error {
	opts := deploy.LogsOptions{Lines: logsLines, Source: logsSource, Follow: logsFollow}
	_, err := runProjectRunbook(cmd, args, func(o *deploy.Orchestrator) (runbook.Runbook, error) {
		return o.LogsRunbook(opts)
	})
	if logsFollow && cmd.Context().Err() != nil {
		// Ctrl-C ends a followed log
		return nil
	}
	return err
}
