package deploy

import (
	"fmt"
	"strconv"

	"github.com/sweetstyle/opsrun/internal/constants"
	"github.com/sweetstyle/opsrun/internal/runbook"
	"github.com/sweetstyle/opsrun/internal/security"
)

// LogsOptions selects which logs to show.
type LogsOptions struct {
	Lines int
	// Source is "app" (pm2, the default) or "nginx".
	Source string
	// Follow keeps streaming until the context is cancelled.
	Follow bool
}

// HealthRunbook checks services, resources, API endpoints and the TLS
// certificate. Every step is optional so one failing check never hides the
// others.
func (o *Orchestrator) HealthRunbook() (runbook.Runbook, error) {
	be := o.config.Backend
	process := security.ShellEscape(be.Process)

	steps := []runbook.Step{
		serviceStep("nginx"),
		serviceStep("postgresql"),
		optionalCommand("Processes", "pm2 list"),
		optionalCommand("Recent logs", fmt.Sprintf("pm2 logs %s --lines 10 --nostream", process)),
		optionalCommand("Disk", "df -h /"),
		optionalCommand("Memory", "free -m"),
		checkStep("API health", o.healthURL(), be.HealthMarker),
	}
	steps = append(steps, o.apiCheckSteps()...)

	if o.config.Domain != "" {
		domain := security.ShellEscape(o.config.Domain)
		steps = append(steps, runbook.Step{
			Title: "TLS certificate",
			Command: fmt.Sprintf("echo | openssl s_client -connect %s:443 -servername %s 2>/dev/null | openssl x509 -noout -dates",
				domain, domain),
			Timeout: constants.CheckStepTimeout,
			Check:   runbook.CheckMarker,
			Marker:  "notAfter",
		})
	}

	for _, hc := range o.config.Health.Checks {
		step := optionalCommand(hc.Title, hc.Command)
		step.Check = runbook.CheckExitCode
		if hc.Marker != "" {
			step.Check, step.Marker = runbook.CheckMarker, hc.Marker
		}
		steps = append(steps, step)
	}

	return runbook.Runbook{Name: "health", Steps: steps}, nil
}

func serviceStep(unit string) runbook.Step {
	return runbook.Step{
		Title:   unit,
		Command: "systemctl is-active " + unit,
		Timeout: constants.CheckStepTimeout,
		Check:   runbook.CheckExitCode,
	}
}

// LogsRunbook streams recent pm2 or nginx logs.
func (o *Orchestrator) LogsRunbook(opts LogsOptions) (runbook.Runbook, error) {
	if opts.Lines == 0 {
		opts.Lines = 100
	}
	if err := security.ValidateLogLines(strconv.Itoa(opts.Lines)); err != nil {
		return runbook.Runbook{}, err
	}

	var cmd string
	switch opts.Source {
	case "", "app":
		cmd = fmt.Sprintf("pm2 logs %s --lines %d", security.ShellEscape(o.config.Backend.Process), opts.Lines)
		if !opts.Follow {
			cmd += " --nostream"
		}
	case "nginx":
		tail := "tail -n"
		if opts.Follow {
			tail = "tail -F -n"
		}
		cmd = fmt.Sprintf("%s %d /var/log/nginx/error.log /var/log/nginx/access.log", tail, opts.Lines)
	default:
		return runbook.Runbook{}, fmt.Errorf("unknown log source %q (use app or nginx)", opts.Source)
	}

	step := runbook.Step{
		Title:   "Logs",
		Command: cmd,
		Timeout: constants.ShortStepTimeout,
		Stream:  true,
	}
	if opts.Follow {
		step.Timeout = 0
	}
	return runbook.Runbook{Name: "logs", Steps: []runbook.Step{step}}, nil
}
