package deploy

import (
	"fmt"
	"os"
	"path"

	"github.com/sweetstyle/opsrun/internal/constants"
	"github.com/sweetstyle/opsrun/internal/nginx"
	"github.com/sweetstyle/opsrun/internal/runbook"
	"github.com/sweetstyle/opsrun/internal/security"
)

func (o *Orchestrator) spaSite() (string, error) {
	site := nginx.Site{
		Name:          o.config.Name,
		ServerNames:   o.config.ServerNames(),
		DefaultServer: true,
		Root:          o.config.DistPath(),
		BackendPort:   o.config.Backend.Port,
	}
	if o.hasUploadsDir() {
		site.UploadsDir = o.uploadsDir()
	}
	return nginx.StaticSite(site)
}

func (o *Orchestrator) verifyDistStep() runbook.Step {
	index := path.Join(o.config.DistPath(), "index.html")
	return runbook.Step{
		Title:   "Verify build output",
		Command: fmt.Sprintf("test -f %s && echo DIST_OK && ls -la %s | head -20", security.ShellEscape(index), security.ShellEscape(o.config.DistPath())),
		Timeout: constants.CheckStepTimeout,
		Check:   runbook.CheckMarker,
		Marker:  "DIST_OK",
	}
}

// FrontendRunbook builds the git-based frontend deployment.
func (o *Orchestrator) FrontendRunbook() (runbook.Runbook, error) {
	fe := o.config.Frontend
	if fe.Repo == "" {
		return runbook.Runbook{}, fmt.Errorf("frontend.repo is required to deploy from git (use 'deploy upload' for a local build)")
	}

	env, err := o.frontendEnv()
	if err != nil {
		return runbook.Runbook{}, err
	}
	site, err := o.spaSite()
	if err != nil {
		return runbook.Runbook{}, err
	}

	appPath := security.ShellEscape(fe.Path)
	branch := security.ShellEscape(fe.Branch)
	fetch := fmt.Sprintf("if [ -d %[1]s/.git ]; then cd %[1]s && git fetch --depth 1 origin %[2]s && git reset --hard FETCH_HEAD; "+
		"else mkdir -p %[3]s && git clone --depth 1 --branch %[2]s %[4]s %[1]s; fi && cd %[1]s && git log -1 --oneline",
		appPath, branch, security.ShellEscape(path.Dir(fe.Path)), security.ShellEscape(fe.Repo))

	steps := []runbook.Step{
		aptStep("curl", "git", "nginx"),
		nodeStep(o.config.Node.Version),
		longCommand("Fetch "+fe.Branch, fetch, constants.InstallStepTimeout),
	}
	if env != "" {
		steps = append(steps, envStep("Write frontend .env", env, fe.Path))
	}
	steps = append(steps,
		longCommand("Install dependencies", fmt.Sprintf("cd %s && npm install", appPath), constants.BuildStepTimeout),
		longCommand("Build", fmt.Sprintf("cd %s && %s", appPath, fe.BuildCommand), constants.BuildStepTimeout),
	)
	steps = append(steps, siteSteps(o.config.Name, site, true, true)...)
	steps = append(steps,
		runbook.Step{
			Title:   "Verify nginx",
			Command: "systemctl is-active nginx",
			Timeout: constants.CheckStepTimeout,
			Check:   runbook.CheckExitCode,
		},
		o.verifyDistStep(),
	)

	return runbook.Runbook{Name: "deploy frontend", Steps: steps}, nil
}

// UploadRunbook uploads the local build output instead of building on the
// server.
func (o *Orchestrator) UploadRunbook() (runbook.Runbook, error) {
	local := o.localPath(o.config.Frontend.LocalDist)
	info, err := os.Stat(local)
	if err != nil {
		return runbook.Runbook{}, fmt.Errorf("local build %s not found, build the frontend first: %w", local, err)
	}
	if !info.IsDir() {
		return runbook.Runbook{}, fmt.Errorf("local build %s is not a directory", local)
	}

	site, err := o.spaSite()
	if err != nil {
		return runbook.Runbook{}, err
	}

	dist := o.config.DistPath()
	steps := []runbook.Step{
		{
			Title:    "Ensure nginx",
			Command:  nginx.InstallCommand(),
			Timeout:  constants.InstallStepTimeout,
			Check:    runbook.CheckExitCode,
			Required: true,
		},
		requiredCommand("Prepare "+dist, "mkdir -p "+security.ShellEscape(dist)),
		{
			Title:    "Upload " + o.config.Frontend.LocalDist,
			Action:   uploadDirAction(local, dist),
			Timeout:  constants.BuildStepTimeout,
			Required: true,
		},
	}
	steps = append(steps, siteSteps(o.config.Name, site, true, false)...)
	steps = append(steps, o.verifyDistStep())

	return runbook.Runbook{Name: "upload frontend", Steps: steps}, nil
}
