package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sweetstyle/opsrun/internal/security"
)

var projectRefRegex = regexp.MustCompile(`^[a-z0-9]{6,40}$`)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors holds multiple validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are validation errors
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

func (e *ValidationErrors) add(field string, err error) {
	if err != nil {
		*e = append(*e, ValidationError{Field: field, Message: err.Error()})
	}
}

// ValidateProjectConfig validates the project configuration. Defaults are
// expected to be applied already.
func ValidateProjectConfig(config *ProjectConfig) ValidationErrors {
	var errs ValidationErrors

	if config.Name == "" {
		errs = append(errs, ValidationError{Field: "name", Message: "project name is required"})
	} else {
		errs.add("name", security.ValidateSiteName(config.Name))
	}

	if config.Domain != "" {
		errs.add("domain", security.ValidateDomain(config.Domain))
	}
	for i, alias := range config.Aliases {
		errs.add(fmt.Sprintf("aliases[%d]", i), security.ValidateDomain(alias))
	}
	if config.Email != "" {
		errs.add("email", security.ValidateEmail(config.Email))
	}

	if !isValidNodeVersion(config.Node.Version) {
		errs = append(errs, ValidationError{Field: "node.version", Message: "node version must be a major version number such as 20"})
	}

	validateFrontend(&errs, &config.Frontend)
	validateBackend(&errs, &config.Backend)

	if config.Database.Name != "" {
		errs.add("database.name", security.ValidateIdentifier(config.Database.Name))
	}
	errs.add("database.system_user", security.ValidateUnixUser(config.Database.SystemUser))
	for i, table := range config.Database.Tables {
		errs.add(fmt.Sprintf("database.tables[%d]", i), security.ValidateIdentifier(table))
	}

	if config.TLS.CertName != "" && strings.ContainsAny(config.TLS.CertName, "/ ;") {
		errs = append(errs, ValidationError{Field: "tls.cert_name", Message: "certificate name cannot contain slashes or spaces"})
	}

	for i, check := range config.Health.Checks {
		field := fmt.Sprintf("health.checks[%d]", i)
		if strings.TrimSpace(check.Title) == "" {
			errs = append(errs, ValidationError{Field: field + ".title", Message: "title is required"})
		}
		if strings.TrimSpace(check.Command) == "" {
			errs = append(errs, ValidationError{Field: field + ".command", Message: "command is required"})
		}
	}

	if config.Functions.ProjectRef != "" && !projectRefRegex.MatchString(config.Functions.ProjectRef) {
		errs = append(errs, ValidationError{Field: "functions.project_ref", Message: "project ref must be 6-40 lowercase letters or digits"})
	}
	errs.add("functions.token_env", security.ValidateEnvKey(config.Functions.TokenEnv))

	return errs
}

func validateFrontend(errs *ValidationErrors, f *FrontendConfig) {
	if f.Repo != "" {
		errs.add("frontend.repo", security.ValidateRepoURL(f.Repo))
	}
	if strings.ContainsAny(f.Branch, " ;&|`$'\"") {
		*errs = append(*errs, ValidationError{Field: "frontend.branch", Message: "branch contains invalid characters"})
	}
	errs.add("frontend.path", security.ValidateRemotePath(f.Path))
	if strings.Contains(f.DistDir, "..") || strings.HasPrefix(f.DistDir, "/") {
		*errs = append(*errs, ValidationError{Field: "frontend.dist_dir", Message: "dist_dir must be relative to the frontend path"})
	}
	for key := range f.Env {
		errs.add("frontend.env."+key, security.ValidateEnvKey(key))
	}
}

func validateBackend(errs *ValidationErrors, b *BackendConfig) {
	errs.add("backend.path", security.ValidateRemotePath(b.Path))
	errs.add("backend.process", security.ValidateProcessName(b.Process))
	if b.Port < 1 || b.Port > 65535 {
		*errs = append(*errs, ValidationError{Field: "backend.port", Message: "port must be between 1 and 65535"})
	}
	if strings.Contains(b.Entry, "..") || strings.ContainsAny(b.Entry, " ;&|`$") {
		*errs = append(*errs, ValidationError{Field: "backend.entry", Message: "entry must be a plain relative file name"})
	}
	for i, dir := range b.Dirs {
		if dir == "" || strings.HasPrefix(dir, "/") || strings.Contains(dir, "..") || strings.ContainsAny(dir, " ;&|`$") {
			*errs = append(*errs, ValidationError{Field: fmt.Sprintf("backend.dirs[%d]", i), Message: "directory must be a relative path without traversal"})
		}
	}
	for i, f := range b.Files {
		if f.Local == "" {
			*errs = append(*errs, ValidationError{Field: fmt.Sprintf("backend.files[%d].local", i), Message: "local path is required"})
		}
		if strings.Contains(f.Remote, "..") {
			*errs = append(*errs, ValidationError{Field: fmt.Sprintf("backend.files[%d].remote", i), Message: "remote path cannot contain path traversal"})
		}
	}
	for key := range b.Env {
		errs.add("backend.env."+key, security.ValidateEnvKey(key))
	}
	for i, key := range b.RequiredEnv {
		errs.add(fmt.Sprintf("backend.required_env[%d]", i), security.ValidateEnvKey(key))
	}
	errs.add("backend.health_path", security.ValidateURLPath(b.HealthPath))
	for i, p := range b.APIPaths {
		errs.add(fmt.Sprintf("backend.api_paths[%d]", i), security.ValidateURLPath(p))
	}
}

// ValidateServerConfig validates a server configuration
func ValidateServerConfig(config *ServerConfig) ValidationErrors {
	var errs ValidationErrors

	if config.Host == "" {
		errs = append(errs, ValidationError{Field: "host", Message: "server host is required"})
	} else if !security.IsIPAddress(config.Host) {
		if err := security.ValidateDomain(config.Host); err != nil && config.Host != "localhost" {
			errs = append(errs, ValidationError{Field: "host", Message: err.Error()})
		}
	}

	if config.User == "" {
		errs = append(errs, ValidationError{Field: "user", Message: "server user is required"})
	} else {
		errs.add("user", security.ValidateUnixUser(config.User))
	}

	if config.Port < 1 || config.Port > 65535 {
		errs = append(errs, ValidationError{Field: "port", Message: "port must be between 1 and 65535"})
	}

	if config.PasswordEnv != "" {
		errs.add("password_env", security.ValidateEnvKey(config.PasswordEnv))
	}

	if d, err := config.ConnectTimeout(); err != nil {
		errs.add("timeout", err)
	} else if d < 0 || d > 10*time.Minute {
		errs = append(errs, ValidationError{Field: "timeout", Message: "timeout must be between 0 and 10m"})
	}

	return errs
}

func isValidNodeVersion(version string) bool {
	if version == "" || len(version) > 3 {
		return false
	}
	for _, r := range version {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
