package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/sweetstyle/opsrun/internal/constants"
	"github.com/sweetstyle/opsrun/internal/runbook"
	"github.com/sweetstyle/opsrun/internal/security"
)

var execCmd = &cobra.Command{
	Use:   "exec [server] -- <command>",
	Short: "Run a command on a server",
	Long: `Runs one shell command on the server and prints its output.

The exit status of the remote command becomes the exit status of opsrun.
With --expect the command only passes when its output contains the marker.

Example:
  opsrun exec prod -- pm2 list
  opsrun exec prod --expect active -- systemctl is-active nginx
  OPSRUN_SERVER=prod opsrun exec -- df -h /`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExec,
}

var (
	execExpect  string
	execTimeout time.Duration
	execStream  bool
)

func init() {
	rootCmd.AddCommand(execCmd)
	execCmd.Flags().StringVar(&execExpect, "expect", "", "Fail unless the output contains this marker")
	execCmd.Flags().DurationVar(&execTimeout, "timeout", constants.InstallStepTimeout, "Kill the command after this long")
	execCmd.Flags().BoolVar(&execStream, "stream", false, "Print output while the command runs")
}

// splitExecArgs separates the server from the command. Without "--" the
// first argument is the server.
func splitExecArgs(args []string, dash int) (server []string, command string, err error) {
	switch {
	case dash == -1:
		server, args = args[:1], args[1:]
	case dash > 1:
		return nil, "", fmt.Errorf("expected at most one server before --")
	default:
		server, args = args[:dash], args[dash:]
	}
	if len(args) == 0 {
		return nil, "", fmt.Errorf("no command given")
	}
	return server, strings.Join(args, " "), nil
}

func execStep(command, expect string, timeout time.Duration, stream bool) runbook.Step {
	step := runbook.Step{
		Title:    security.SanitizeCommandForLog(command),
		Command:  command,
		Timeout:  timeout,
		Check:    runbook.CheckExitCode,
		Required: true,
		Stream:   stream,
	}
	if expect != "" {
		step.Check, step.Marker = runbook.CheckMarker, expect
	}
	return step
}

func runExec(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	serverArgs, command, err := splitExecArgs(args, cmd.ArgsLenAtDash())
	if err != nil {
		return err
	}
	serverName, err := serverArg(serverArgs)
	if err != nil {
		return err
	}

	conn, err := connectServer(ctx, serverName)
	if err != nil {
		return err
	}
	defer conn.Close()

	rb := runbook.Runbook{Name: "exec", Steps: []runbook.Step{execStep(command, execExpect, execTimeout, execStream)}}
	report, err := newRunner(conn.Client).Run(ctx, rb)
	if err == nil || !runbook.IsStepFailure(err) {
		return err
	}

	code := 1
	if res := report.Results[0].Result; res != nil && res.ExitCode > 0 {
		code = res.ExitCode
	}
	return &ExitError{Code: code, Err: err}
}
