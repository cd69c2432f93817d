// Package scanner inspects a local project to prefill opsrun.yaml.
package scanner

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sweetstyle/opsrun/internal/config"
)

// Result is what Scan found in the project.
type Result struct {
	NodeVersion string

	FrontendDir    string
	FrontendRepo   string
	PackageManager string
	BuildCommand   string
	DistDir        string
	FrontendEnv    []string

	BackendDir   string
	BackendEntry string
	BackendFiles []string
	BackendDirs  []string
	RequiredEnv  []string

	UsesPostgres bool
	DatabaseName string
	SeedFile     string
	FunctionsDir string
}

// Scanner analyzes a project made of a single-page frontend and a Node.js API
type Scanner struct {
	projectPath string
}

// New creates a new Scanner for the given project path
func New(projectPath string) *Scanner {
	if projectPath == "" {
		projectPath = "."
	}
	return &Scanner{projectPath: projectPath}
}

// Scan performs a full project scan and returns the result
func (s *Scanner) Scan() (*Result, error) {
	result := &Result{}

	frontendDir, frontend := s.findPackage(frontendCandidates, isFrontend)
	backendDir, backend := s.findPackage(backendCandidates, isBackend)
	if frontend == nil && backend == nil {
		return nil, fmt.Errorf("no package.json with a frontend build or a Node.js server found in %s", s.projectPath)
	}

	if frontend != nil {
		dir := s.path(frontendDir)
		result.FrontendDir = frontendDir
		result.PackageManager = detectPackageManager(dir)
		result.BuildCommand = buildCommand(frontend, result.PackageManager)
		result.DistDir = distDir(frontend)
		result.FrontendRepo = gitRemote(dir)
		if result.FrontendRepo == "" {
			result.FrontendRepo = gitRemote(s.projectPath)
		}
		result.FrontendEnv = envExampleKeys(dir)
		result.NodeVersion = extractNodeVersion(frontend.Engines.Node)
	}

	if backend != nil {
		dir := s.path(backendDir)
		result.BackendDir = backendDir
		result.BackendEntry = backendEntry(backend, dir)
		result.BackendFiles = backendFiles(dir)
		result.BackendDirs = backendDirs(dir)
		result.RequiredEnv = envExampleKeys(dir)
		result.UsesPostgres = backend.has("pg") || backend.has("postgres") || backend.has("pg-promise")
		result.DatabaseName = envExampleValue(dir, "DB_NAME")
		if v := extractNodeVersion(backend.Engines.Node); backend.Engines.Node != "" {
			result.NodeVersion = v
		}
	}

	result.SeedFile = s.firstExisting(seedCandidates...)
	result.FunctionsDir = s.firstExisting(functionsCandidates...)

	return result, nil
}

func (s *Scanner) path(rel string) string {
	return filepath.Join(s.projectPath, filepath.FromSlash(rel))
}

// findPackage returns the first candidate directory whose package.json
// matches.
func (s *Scanner) findPackage(candidates []string, match func(*PackageJSON, string) bool) (string, *PackageJSON) {
	for _, rel := range candidates {
		dir := s.path(rel)
		pkg, err := parsePackageJSON(dir)
		if err != nil {
			continue
		}
		if match(pkg, dir) {
			return rel, pkg
		}
	}
	return "", nil
}

func (s *Scanner) firstExisting(candidates ...string) string {
	for _, rel := range candidates {
		if _, err := os.Stat(s.path(rel)); err == nil {
			return rel
		}
	}
	return ""
}

// ToProjectConfig converts scan result to project config
func (s *Scanner) ToProjectConfig(result *Result, name string) *config.ProjectConfig {
	cfg := config.DefaultProjectConfig()
	cfg.Name = name

	if result.NodeVersion != "" {
		cfg.Node.Version = result.NodeVersion
	}

	cfg.Frontend.Repo = result.FrontendRepo
	if result.BuildCommand != "" {
		cfg.Frontend.BuildCommand = result.BuildCommand
	}
	if result.DistDir != "" {
		cfg.Frontend.DistDir = result.DistDir
		cfg.Frontend.LocalDist = filepath.ToSlash(filepath.Join(result.FrontendDir, result.DistDir))
	}
	if len(result.FrontendEnv) > 0 {
		cfg.Frontend.Env = placeholders(result.FrontendEnv)
	}

	if result.BackendDir != "" {
		cfg.Backend.Entry = result.BackendEntry
		cfg.Backend.Files = nil
		for _, f := range result.BackendFiles {
			cfg.Backend.Files = append(cfg.Backend.Files, config.FileMapping{
				Local:  filepath.ToSlash(filepath.Join(result.BackendDir, f)),
				Remote: f,
			})
		}
		cfg.Backend.Dirs = result.BackendDirs
		cfg.Backend.RequiredEnv = result.RequiredEnv
		if len(result.RequiredEnv) > 0 {
			cfg.Backend.Env = placeholders(result.RequiredEnv)
		}
	}

	if result.UsesPostgres {
		cfg.Database.Name = result.DatabaseName
		cfg.Database.SeedFile = result.SeedFile
	}
	cfg.Functions.Dir = result.FunctionsDir

	cfg.ApplyDefaults()
	return cfg
}

// placeholders maps each key to a ${KEY} reference resolved at push time.
func placeholders(keys []string) map[string]string {
	env := make(map[string]string, len(keys))
	for _, k := range keys {
		env[k] = "${" + k + "}"
	}
	return env
}
