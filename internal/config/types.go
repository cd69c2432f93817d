package config

import (
	"fmt"
	"path"
	"time"

	"github.com/sweetstyle/opsrun/internal/constants"
)

// ProjectConfig represents the opsrun.yaml configuration
type ProjectConfig struct {
	Name      string          `yaml:"name"`
	Domain    string          `yaml:"domain,omitempty"`
	Aliases   []string        `yaml:"aliases,omitempty"`
	Email     string          `yaml:"email,omitempty"`
	Node      NodeConfig      `yaml:"node,omitempty"`
	Frontend  FrontendConfig  `yaml:"frontend,omitempty"`
	Backend   BackendConfig   `yaml:"backend,omitempty"`
	Database  DatabaseConfig  `yaml:"database,omitempty"`
	TLS       TLSConfig       `yaml:"tls,omitempty"`
	Health    HealthConfig    `yaml:"health,omitempty"`
	Functions FunctionsConfig `yaml:"functions,omitempty"`
}

// NodeConfig holds the Node.js runtime installed on the server
type NodeConfig struct {
	Version string `yaml:"version,omitempty"`
}

// FrontendConfig holds the static single-page application settings
type FrontendConfig struct {
	Repo         string            `yaml:"repo,omitempty"`
	Branch       string            `yaml:"branch,omitempty"`
	Path         string            `yaml:"path,omitempty"`
	DistDir      string            `yaml:"dist_dir,omitempty"`
	BuildCommand string            `yaml:"build_command,omitempty"`
	LocalDist    string            `yaml:"local_dist,omitempty"`
	Env          map[string]string `yaml:"env,omitempty"`
}

// FileMapping maps a local file to a path relative to the backend directory
type FileMapping struct {
	Local  string `yaml:"local"`
	Remote string `yaml:"remote,omitempty"`
}

// BackendConfig holds the Node.js API settings
type BackendConfig struct {
	Path         string            `yaml:"path,omitempty"`
	Process      string            `yaml:"process,omitempty"`
	Entry        string            `yaml:"entry,omitempty"`
	Port         int               `yaml:"port,omitempty"`
	Dirs         []string          `yaml:"dirs,omitempty"`
	Files        []FileMapping     `yaml:"files,omitempty"`
	Env          map[string]string `yaml:"env,omitempty"`
	RequiredEnv  []string          `yaml:"required_env,omitempty"`
	HealthPath   string            `yaml:"health_path,omitempty"`
	HealthMarker string            `yaml:"health_marker,omitempty"`
	APIPaths     []string          `yaml:"api_paths,omitempty"`
}

// DatabaseConfig holds the PostgreSQL settings used for seeding and inspection
type DatabaseConfig struct {
	Name       string   `yaml:"name,omitempty"`
	SystemUser string   `yaml:"system_user,omitempty"`
	SeedFile   string   `yaml:"seed_file,omitempty"`
	Tables     []string `yaml:"tables,omitempty"`
}

// TLSConfig holds certificate settings
type TLSConfig struct {
	// CertName is the directory under /etc/letsencrypt/live; defaults to the domain
	CertName   string `yaml:"cert_name,omitempty"`
	IncludeWWW bool   `yaml:"include_www,omitempty"`
}

// HealthCheck is a user-defined step of the health runbook
type HealthCheck struct {
	Title   string `yaml:"title"`
	Command string `yaml:"command"`
	Marker  string `yaml:"marker,omitempty"`
}

// HealthConfig holds extra health checks
type HealthConfig struct {
	Checks []HealthCheck `yaml:"checks,omitempty"`
}

// FunctionsConfig holds the hosted function deployment settings
type FunctionsConfig struct {
	ProjectRef string `yaml:"project_ref,omitempty"`
	TokenEnv   string `yaml:"token_env,omitempty"`
	VerifyJWT  bool   `yaml:"verify_jwt,omitempty"`
	Dir        string `yaml:"dir,omitempty"`
}

// GlobalConfig represents the global ~/.config/opsrun/config.yaml
type GlobalConfig struct {
	Servers     map[string]ServerConfig `yaml:"servers"`
	DefaultUser string                  `yaml:"default_user,omitempty"`
	DefaultPort int                     `yaml:"default_port,omitempty"`
	// SSHTimeout is the connect timeout in seconds for servers without their own
	SSHTimeout  int                     `yaml:"ssh_timeout,omitempty"`
}

// ServerConfig represents a configured server. Secrets are never stored
// here: PasswordEnv names the environment variable holding the password.
type ServerConfig struct {
	Name        string `yaml:"name,omitempty"`
	Host        string `yaml:"host"`
	User        string `yaml:"user"`
	Port        int    `yaml:"port,omitempty"`
	KeyPath     string `yaml:"key_path,omitempty"`
	PasswordEnv string `yaml:"password_env,omitempty"`
	UseAgent    bool   `yaml:"use_agent,omitempty"`
	Timeout     string `yaml:"timeout,omitempty"`
}

// ConnectTimeout parses Timeout, returning zero when unset.
func (s ServerConfig) ConnectTimeout() (time.Duration, error) {
	if s.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", s.Timeout, err)
	}
	return d, nil
}

// DefaultProjectConfig returns a default project configuration
func DefaultProjectConfig() *ProjectConfig {
	cfg := &ProjectConfig{
		Backend: BackendConfig{
			Dirs: []string{"routes", "services", "db", "uploads"},
			Files: []FileMapping{
				{Local: "server.js"},
				{Local: "package.json"},
			},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills every unset field that has a sensible default.
func (c *ProjectConfig) ApplyDefaults() {
	if c.Node.Version == "" {
		c.Node.Version = constants.DefaultNodeVersion
	}

	if c.Frontend.Branch == "" {
		c.Frontend.Branch = "main"
	}
	if c.Frontend.Path == "" {
		c.Frontend.Path = constants.DefaultFrontendPath
	}
	if c.Frontend.DistDir == "" {
		c.Frontend.DistDir = constants.DefaultDistDir
	}
	if c.Frontend.BuildCommand == "" {
		c.Frontend.BuildCommand = "npm run build"
	}
	if c.Frontend.LocalDist == "" {
		c.Frontend.LocalDist = constants.DefaultDistDir
	}

	if c.Backend.Path == "" {
		c.Backend.Path = constants.DefaultBackendPath
	}
	if c.Backend.Process == "" {
		c.Backend.Process = constants.DefaultProcessName
	}
	if c.Backend.Entry == "" {
		c.Backend.Entry = "server.js"
	}
	if c.Backend.Port == 0 {
		c.Backend.Port = constants.DefaultBackendPort
	}
	if c.Backend.HealthPath == "" {
		c.Backend.HealthPath = constants.DefaultHealthPath
	}
	if c.Backend.HealthMarker == "" {
		c.Backend.HealthMarker = constants.DefaultHealthMarker
	}
	for i := range c.Backend.Files {
		if c.Backend.Files[i].Remote == "" {
			c.Backend.Files[i].Remote = c.Backend.Files[i].Local
		}
	}

	if c.Database.SystemUser == "" {
		c.Database.SystemUser = constants.DefaultDatabaseOwner
	}

	if c.Email == "" && c.Domain != "" {
		c.Email = "admin@" + c.Domain
	}
	if c.TLS.CertName == "" {
		c.TLS.CertName = c.Domain
	}

	if c.Functions.TokenEnv == "" {
		c.Functions.TokenEnv = constants.EnvFunctionsToken
	}
}

// ServerNames returns the domain followed by its aliases.
func (c *ProjectConfig) ServerNames() []string {
	if c.Domain == "" {
		return nil
	}
	names := []string{c.Domain}
	names = append(names, c.Aliases...)
	if c.TLS.IncludeWWW {
		www := "www." + c.Domain
		found := false
		for _, n := range names {
			if n == www {
				found = true
				break
			}
		}
		if !found {
			names = append(names, www)
		}
	}
	return names
}

// DistPath returns the remote build output directory served by nginx.
func (c *ProjectConfig) DistPath() string {
	return path.Join(c.Frontend.Path, c.Frontend.DistDir)
}

// RemoteFiles resolves backend file mappings to absolute remote paths.
func (c *ProjectConfig) RemoteFiles() []FileMapping {
	out := make([]FileMapping, 0, len(c.Backend.Files))
	for _, f := range c.Backend.Files {
		remote := f.Remote
		if remote == "" {
			remote = f.Local
		}
		if !path.IsAbs(remote) {
			remote = path.Join(c.Backend.Path, remote)
		}
		out = append(out, FileMapping{Local: f.Local, Remote: remote})
	}
	return out
}

// DefaultGlobalConfig returns a default global configuration
func DefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		Servers:     make(map[string]ServerConfig),
		DefaultUser: "root",
		DefaultPort: 22,
	}
}
