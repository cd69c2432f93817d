package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"github.com/sweetstyle/opsrun/internal/deploy"
	"github.com/sweetstyle/opsrun/internal/runbook"
	"github.com/sweetstyle/opsrun/internal/ssh"
)

func newRunner(exec ssh.Executor) *runbook.Runner {
	runner := runbook.NewRunner(exec, os.Stdout)
	p := stepPrinter{w: os.Stdout}
	runner.OnStep = p.step
	runner.OnResult = p.result
	return runner
}

func runRunbook(ctx context.Context, exec ssh.Executor, rb runbook.Runbook) (*runbook.Report, error) {
	PrintInfo("%s: %d steps", rb.Name, len(rb.Steps))
	report, err := newRunner(exec).Run(ctx, rb)
	printReport(os.Stdout, report)
	return report, err
}

// runProjectRunbook builds a runbook from opsrun.yaml, then connects to the
// server and runs it. Config and env errors surface before any connection.
func runProjectRunbook(cmd *cobra.Command, args []string, build func(*deploy.Orchestrator) (runbook.Runbook, error)) (*runbook.Report, error) {
	ctx := cmd.Context()

	serverName, err := serverArg(args)
	if err != nil {
		return nil, err
	}
	project, dir, err := loadProject()
	if err != nil {
		return nil, err
	}
	o, err := deploy.NewOrchestrator(project, serverName)
	if err != nil {
		return nil, err
	}
	o.SetLocalDir(dir)

	rb, err := build(o)
	if err != nil {
		return nil, err
	}

	conn, err := connectServer(ctx, serverName)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	conn.Project, conn.ProjectDir = project, dir

	return runRunbook(ctx, conn.Client, rb)
}
