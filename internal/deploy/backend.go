package deploy

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/sweetstyle/opsrun/internal/constants"
	"github.com/sweetstyle/opsrun/internal/nginx"
	"github.com/sweetstyle/opsrun/internal/runbook"
	"github.com/sweetstyle/opsrun/internal/security"
	"github.com/sweetstyle/opsrun/internal/ssh"
)

func (o *Orchestrator) healthURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d%s", o.config.Backend.Port, o.config.Backend.HealthPath)
}

func (o *Orchestrator) healthStep() runbook.Step {
	step := checkStep("API health", o.healthURL(), o.config.Backend.HealthMarker)
	step.Delay = o.restartDelay
	return step
}

func (o *Orchestrator) restartStep() runbook.Step {
	return requiredCommand("Restart "+o.config.Backend.Process,
		fmt.Sprintf("pm2 restart %s --update-env", security.ShellEscape(o.config.Backend.Process)))
}

func (o *Orchestrator) filePairs(mappings []ssh.FilePair) []ssh.FilePair {
	out := make([]ssh.FilePair, 0, len(mappings))
	for _, m := range mappings {
		out = append(out, ssh.FilePair{Local: o.localPath(m.Local), Remote: m.Remote})
	}
	return out
}

func (o *Orchestrator) configuredPairs() []ssh.FilePair {
	var pairs []ssh.FilePair
	for _, f := range o.config.RemoteFiles() {
		pairs = append(pairs, ssh.FilePair{Local: f.Local, Remote: f.Remote})
	}
	return o.filePairs(pairs)
}

// BackendRunbook builds the full backend deployment.
func (o *Orchestrator) BackendRunbook() (runbook.Runbook, error) {
	be := o.config.Backend

	env, err := o.backendEnv()
	if err != nil {
		return runbook.Runbook{}, err
	}

	dirs := []string{security.ShellEscape(be.Path)}
	for _, d := range be.Dirs {
		dirs = append(dirs, security.ShellEscape(path.Join(be.Path, d)))
	}
	mkdir := "mkdir -p " + strings.Join(dirs, " ")
	if o.hasUploadsDir() {
		mkdir += " && chmod 755 " + security.ShellEscape(o.uploadsDir())
	}

	appPath := security.ShellEscape(be.Path)
	process := security.ShellEscape(be.Process)
	start := fmt.Sprintf("cd %[1]s && if pm2 describe %[2]s >/dev/null 2>&1; then pm2 restart %[2]s --update-env; "+
		"else pm2 start %[3]s --name %[2]s; fi && pm2 list", appPath, process, security.ShellEscape(be.Entry))

	steps := []runbook.Step{
		nodeStep(o.config.Node.Version),
		requiredCommand("Create directories", mkdir),
		{
			Title:    "Upload backend files",
			Action:   transferAction(o.configuredPairs()),
			Timeout:  constants.InstallStepTimeout,
			Required: true,
		},
		envStep("Write backend .env", env, be.Path),
		longCommand("Install dependencies", fmt.Sprintf("cd %s && npm install --omit=dev", appPath), constants.BuildStepTimeout),
		longCommand("Install pm2", "command -v pm2 >/dev/null 2>&1 || npm install -g pm2", constants.InstallStepTimeout),
		requiredCommand("Start "+be.Process, start),
		{
			Title:   "Persist process list",
			Command: "pm2 save && (pm2 startup systemd >/dev/null 2>&1 || true)",
			Timeout: constants.ShortStepTimeout,
			Check:   runbook.CheckExitCode,
		},
	}

	if o.config.Domain != "" {
		site := nginx.Site{
			Name:        o.config.Name + "-api",
			ServerNames: []string{"api." + o.config.Domain},
			BackendPort: be.Port,
			HealthPath:  be.HealthPath,
		}
		if o.hasUploadsDir() {
			site.UploadsDir = o.uploadsDir()
		}
		content, err := nginx.APIProxySite(site)
		if err != nil {
			return runbook.Runbook{}, err
		}
		steps = append(steps, siteSteps(site.Name, content, false, false)...)
	}

	steps = append(steps, o.healthStep())
	return runbook.Runbook{Name: "deploy backend", Steps: steps}, nil
}

// QuickRunbook uploads files and restarts the process. With no files every
// configured backend file is sent.
func (o *Orchestrator) QuickRunbook(files []string) (runbook.Runbook, error) {
	pairs := o.configuredPairs()
	if len(files) > 0 {
		var err error
		if pairs, err = o.resolveFiles(files); err != nil {
			return runbook.Runbook{}, err
		}
	}
	if len(pairs) == 0 {
		return runbook.Runbook{}, fmt.Errorf("no backend files to upload")
	}

	return runbook.Runbook{Name: "quick deploy", Steps: []runbook.Step{
		{
			Title:    fmt.Sprintf("Upload %d files", len(pairs)),
			Action:   transferAction(pairs),
			Timeout:  constants.InstallStepTimeout,
			Required: true,
		},
		o.restartStep(),
		o.healthStep(),
	}}, nil
}

// resolveFiles maps local paths to their configured remote path, or to the
// same relative path under the backend directory.
func (o *Orchestrator) resolveFiles(files []string) ([]ssh.FilePair, error) {
	configured := make(map[string]string)
	for _, f := range o.config.RemoteFiles() {
		configured[path.Clean(filepath.ToSlash(f.Local))] = f.Remote
	}

	var pairs []ssh.FilePair
	for _, f := range files {
		rel := path.Clean(filepath.ToSlash(f))
		remote, ok := configured[rel]
		if !ok {
			if path.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, "../") {
				return nil, fmt.Errorf("%s is not configured and is outside the project", f)
			}
			remote = path.Join(o.config.Backend.Path, rel)
		}
		pairs = append(pairs, ssh.FilePair{Local: rel, Remote: remote})
	}
	return o.filePairs(pairs), nil
}

// EnvRunbook rewrites the backend .env and restarts the process.
func (o *Orchestrator) EnvRunbook() (runbook.Runbook, error) {
	env, err := o.backendEnv()
	if err != nil {
		return runbook.Runbook{}, err
	}
	return runbook.Runbook{Name: "push env", Steps: []runbook.Step{
		envStep("Write backend .env", env, o.config.Backend.Path),
		o.restartStep(),
		o.healthStep(),
	}}, nil
}

// RenderedBackendEnv returns the backend .env as it would be written.
func (o *Orchestrator) RenderedBackendEnv() (string, error) {
	return o.backendEnv()
}
