// Package deploy builds the operational runbooks of a project for one server.
package deploy

import (
	"fmt"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sweetstyle/opsrun/internal/config"
	"github.com/sweetstyle/opsrun/internal/constants"
	"github.com/sweetstyle/opsrun/internal/envfile"
	"github.com/sweetstyle/opsrun/internal/security"
)

// Orchestrator turns the project config into runbooks. The caller runs
// them with a runbook.Runner once connected.
type Orchestrator struct {
	config     *config.ProjectConfig
	serverName string
	localDir   string
	expandEnv  func(map[string]string) (map[string]string, error)

	restartDelay time.Duration
}

// NewOrchestrator creates a new orchestrator for one server.
func NewOrchestrator(cfg *config.ProjectConfig, serverName string) (*Orchestrator, error) {
	if err := security.ValidateSiteName(cfg.Name); err != nil {
		return nil, fmt.Errorf("invalid project name: %w", err)
	}
	return &Orchestrator{
		config:     cfg,
		serverName: serverName,
		localDir:   ".",
		expandEnv:  config.ExpandEnv,

		restartDelay: constants.PostRestartDelay,
	}, nil
}

// SetLocalDir sets the directory local paths in the config are relative to.
func (o *Orchestrator) SetLocalDir(dir string) {
	o.localDir = dir
}

func (o *Orchestrator) localPath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(o.localDir, filepath.FromSlash(p))
}

// backendEnv renders the backend .env: configured values with ${VAR}
// expanded, plus PORT and NODE_ENV unless set.
func (o *Orchestrator) backendEnv() (string, error) {
	vars, err := o.expandEnv(o.config.Backend.Env)
	if err != nil {
		return "", fmt.Errorf("backend env: %w", err)
	}
	if vars == nil {
		vars = map[string]string{}
	}
	if _, ok := vars["PORT"]; !ok {
		vars["PORT"] = strconv.Itoa(o.config.Backend.Port)
	}
	if _, ok := vars["NODE_ENV"]; !ok {
		vars["NODE_ENV"] = "production"
	}
	if o.hasUploadsDir() {
		if _, ok := vars["UPLOAD_DIR"]; !ok {
			vars["UPLOAD_DIR"] = o.uploadsDir()
		}
	}

	if missing := envfile.Missing(o.config.Backend.RequiredEnv, vars); len(missing) > 0 {
		return "", fmt.Errorf("%s", envfile.FormatMissingError(missing, o.serverName))
	}
	return envfile.Render(vars)
}

func (o *Orchestrator) frontendEnv() (string, error) {
	if len(o.config.Frontend.Env) == 0 {
		return "", nil
	}
	vars, err := o.expandEnv(o.config.Frontend.Env)
	if err != nil {
		return "", fmt.Errorf("frontend env: %w", err)
	}
	return envfile.Render(vars)
}

func (o *Orchestrator) hasUploadsDir() bool {
	for _, d := range o.config.Backend.Dirs {
		if d == "uploads" {
			return true
		}
	}
	return false
}

func (o *Orchestrator) uploadsDir() string {
	return path.Join(o.config.Backend.Path, "uploads")
}
