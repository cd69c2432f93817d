package deploy

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sweetstyle/opsrun/internal/constants"
	"github.com/sweetstyle/opsrun/internal/envfile"
	"github.com/sweetstyle/opsrun/internal/nginx"
	"github.com/sweetstyle/opsrun/internal/runbook"
	"github.com/sweetstyle/opsrun/internal/security"
	"github.com/sweetstyle/opsrun/internal/ssh"
)

const siteFileMode os.FileMode = 0644

func aptStep(packages ...string) runbook.Step {
	return runbook.Step{
		Title: "Install " + strings.Join(packages, ", "),
		Command: "apt-get update -qq && DEBIAN_FRONTEND=noninteractive apt-get install -y -qq " +
			strings.Join(packages, " "),
		Timeout:  constants.InstallStepTimeout,
		Check:    runbook.CheckExitCode,
		Required: true,
	}
}

func nodeStep(version string) runbook.Step {
	return runbook.Step{
		Title: "Install Node.js " + version,
		Command: fmt.Sprintf("if ! node --version 2>/dev/null | grep -q '^v%[1]s\\.'; then "+
			"curl -fsSL https://deb.nodesource.com/setup_%[1]s.x | bash - && "+
			"DEBIAN_FRONTEND=noninteractive apt-get install -y -qq nodejs; fi && node --version && npm --version", version),
		Timeout:  constants.InstallStepTimeout,
		Check:    runbook.CheckExitCode,
		Required: true,
	}
}

func requiredCommand(title, command string) runbook.Step {
	return runbook.Step{
		Title:    title,
		Command:  command,
		Timeout:  constants.ShortStepTimeout,
		Check:    runbook.CheckExitCode,
		Required: true,
	}
}

func longCommand(title, command string, timeout time.Duration) runbook.Step {
	step := requiredCommand(title, command)
	step.Timeout = timeout
	step.Stream = true
	return step
}

// writeFileAction uploads content over SFTP.
func writeFileAction(content, remotePath string, mode os.FileMode) runbook.ActionFunc {
	return func(ctx context.Context, exec ssh.Executor, w io.Writer) (*ssh.ExecResult, error) {
		if err := exec.UploadContent(ctx, []byte(content), remotePath, mode); err != nil {
			return nil, err
		}
		return &ssh.ExecResult{Stdout: fmt.Sprintf("wrote %s (%d bytes)", remotePath, len(content))}, nil
	}
}

func envStep(title, content, appPath string) runbook.Step {
	return runbook.Step{
		Title:    title,
		Action:   writeFileAction(content, constants.EnvFilePath(appPath), envfile.FileMode),
		Timeout:  constants.ShortStepTimeout,
		Required: true,
	}
}

func transferEvents(w io.Writer) func(ssh.TransferEvent) {
	return func(ev ssh.TransferEvent) {
		switch ev.Status {
		case ssh.TransferUploaded:
			fmt.Fprintf(w, "  %s -> %s\n", ev.Pair.Local, ev.Pair.Remote)
		case ssh.TransferSkipped:
			fmt.Fprintf(w, "  %s not found, skipped\n", ev.Pair.Local)
		case ssh.TransferFailed:
			fmt.Fprintf(w, "  %s: %v\n", ev.Pair.Local, ev.Err)
		}
	}
}

func summarizeTransfer(report *ssh.TransferReport) *ssh.ExecResult {
	if report == nil {
		return &ssh.ExecResult{}
	}
	out := fmt.Sprintf("uploaded %d files (%d bytes)", len(report.Uploaded), report.Bytes)
	if len(report.Skipped) > 0 {
		missing := make([]string, 0, len(report.Skipped))
		for _, p := range report.Skipped {
			missing = append(missing, p.Local)
		}
		out += fmt.Sprintf(", skipped %d missing: %s", len(report.Skipped), strings.Join(missing, ", "))
	}
	return &ssh.ExecResult{Stdout: out}
}

func transferAction(pairs []ssh.FilePair) runbook.ActionFunc {
	return func(ctx context.Context, exec ssh.Executor, w io.Writer) (*ssh.ExecResult, error) {
		report, err := exec.TransferBatch(ctx, pairs, transferEvents(w))
		return summarizeTransfer(report), err
	}
}

func uploadDirAction(localDir, remoteDir string) runbook.ActionFunc {
	return func(ctx context.Context, exec ssh.Executor, w io.Writer) (*ssh.ExecResult, error) {
		report, err := exec.UploadDir(ctx, localDir, remoteDir, transferEvents(w))
		return summarizeTransfer(report), err
	}
}

// siteSteps writes, enables and activates an nginx site.
func siteSteps(name, content string, removeDefault, restart bool) []runbook.Step {
	activate := strings.Join(nginx.TestAndReloadCommands(), " && ")
	if restart {
		activate = nginx.RestartCommands()[0]
	}
	return []runbook.Step{
		{
			Title:    "Write nginx site " + name,
			Action:   writeFileAction(content, constants.SiteConfigPath(name), siteFileMode),
			Timeout:  constants.ShortStepTimeout,
			Required: true,
		},
		requiredCommand("Enable nginx site "+name, strings.Join(nginx.EnableSiteCommands(name, removeDefault), " && ")),
		requiredCommand("Test and activate nginx", activate),
	}
}

func checkStep(title, url, marker string) runbook.Step {
	return runbook.Step{
		Title:   title,
		Command: fmt.Sprintf("curl -s -m 10 %s | head -c 512", security.ShellEscape(url)),
		Timeout: constants.CheckStepTimeout,
		Check:   runbook.CheckMarker,
		Marker:  marker,
	}
}

func statusCheckStep(title, url string) runbook.Step {
	return runbook.Step{
		Title:   title,
		Command: fmt.Sprintf("curl -s -m 10 -o /dev/null -w 'HTTP %%{http_code}\\n' %s", security.ShellEscape(url)),
		Timeout: constants.CheckStepTimeout,
		Check:   runbook.CheckMarker,
		Marker:  "HTTP 200",
	}
}

func optionalCommand(title, command string) runbook.Step {
	return runbook.Step{
		Title:   title,
		Command: command,
		Timeout: constants.CheckStepTimeout,
	}
}

// FilesRunbook uploads files and whole directories. Missing local files are
// reported and skipped.
func FilesRunbook(files, dirs []ssh.FilePair) (runbook.Runbook, error) {
	if len(files) == 0 && len(dirs) == 0 {
		return runbook.Runbook{}, fmt.Errorf("nothing to upload")
	}
	var steps []runbook.Step
	if len(files) > 0 {
		steps = append(steps, runbook.Step{
			Title:    fmt.Sprintf("Upload %d files", len(files)),
			Action:   transferAction(files),
			Timeout:  constants.InstallStepTimeout,
			Required: true,
		})
	}
	for _, d := range dirs {
		steps = append(steps, runbook.Step{
			Title:    "Upload " + d.Local,
			Action:   uploadDirAction(d.Local, d.Remote),
			Timeout:  constants.BuildStepTimeout,
			Required: true,
		})
	}
	return runbook.Runbook{Name: "upload", Steps: steps}, nil
}
