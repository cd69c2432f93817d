package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
)

var (
	// siteNameRegex validates project and nginx site names (DNS-compatible)
	// Allows: lowercase letters, numbers, hyphens (not at start/end)
	// Length: 1-63 characters
	siteNameRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

	// serverNameRegex validates server configuration names
	// Allows: letters, numbers, underscores, hyphens
	// Length: 1-64 characters
	serverNameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9_-]{0,62}[a-zA-Z0-9])?$`)

	// processNameRegex validates pm2 process names
	processNameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9._-]{0,62}[a-zA-Z0-9])?$`)

	// unixUserRegex validates Unix usernames
	// Standard POSIX username rules
	unixUserRegex = regexp.MustCompile(`^[a-z_][a-z0-9_-]{0,31}$`)

	// urlPathRegex validates health and API paths
	// Does not allow double slashes or parent traversal (..)
	urlPathRegex = regexp.MustCompile(`^/([a-zA-Z0-9_.-]+(/[a-zA-Z0-9_.-]+)*)?/?$`)

	// envKeyRegex validates environment variable keys
	envKeyRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

	// remotePathRegex validates absolute remote paths
	remotePathRegex = regexp.MustCompile(`^(/[a-zA-Z0-9_.@-]+)+/?$`)

	// domainLabelRegex validates one DNS label
	domainLabelRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)

	// identifierRegex validates SQL table/column/database names
	identifierRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]{0,62}$`)

	// emailRegex is deliberately loose; certbot does the real check
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

	// repoURLRegex accepts https and scp-like git remotes
	repoURLRegex = regexp.MustCompile(`^(https://[a-zA-Z0-9.-]+(:[0-9]+)?/[a-zA-Z0-9._/~-]+|[a-zA-Z0-9_.-]+@[a-zA-Z0-9.-]+:[a-zA-Z0-9._/~-]+)$`)

	// secretAssignRegex matches KEY=value where KEY looks like a secret
	secretAssignRegex = regexp.MustCompile(`(?i)\b([A-Z0-9_]*(PASSWORD|PASSWD|SECRET|TOKEN|API_KEY|PRIVATE_KEY)[A-Z0-9_]*=|DATABASE_URL=)('[^']*'|"[^"]*"|[^\s'"]+)`)

	// bearerRegex matches bearer tokens in headers
	bearerRegex = regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9._~+/=-]+`)

	// urlCredentialsRegex matches user:password@ in URLs
	urlCredentialsRegex = regexp.MustCompile(`(://[^:/@\s]+:)[^@\s]+@`)
)

// ValidateSiteName validates a project or nginx site name
func ValidateSiteName(name string) error {
	if name == "" {
		return fmt.Errorf("site name cannot be empty")
	}
	if len(name) > 63 {
		return fmt.Errorf("site name too long (max 63 characters)")
	}
	if !siteNameRegex.MatchString(name) {
		return fmt.Errorf("site name must contain only lowercase letters, numbers, and hyphens (not at start/end)")
	}
	return nil
}

// ValidateServerName validates a server configuration name
func ValidateServerName(name string) error {
	if name == "" {
		return fmt.Errorf("server name cannot be empty")
	}
	if len(name) > 64 {
		return fmt.Errorf("server name too long (max 64 characters)")
	}
	if !serverNameRegex.MatchString(name) {
		return fmt.Errorf("server name must contain only letters, numbers, underscores, and hyphens")
	}
	return nil
}

// ValidateProcessName validates a pm2 process name
func ValidateProcessName(name string) error {
	if name == "" {
		return fmt.Errorf("process name cannot be empty")
	}
	if !processNameRegex.MatchString(name) {
		return fmt.Errorf("process name must contain only letters, numbers, dots, underscores, and hyphens")
	}
	return nil
}

// ValidateUnixUser validates a Unix username
func ValidateUnixUser(user string) error {
	if user == "" {
		return fmt.Errorf("username cannot be empty")
	}
	if len(user) > 32 {
		return fmt.Errorf("username too long (max 32 characters)")
	}
	if !unixUserRegex.MatchString(user) {
		return fmt.Errorf("username must start with a lowercase letter or underscore, followed by lowercase letters, numbers, underscores, or hyphens")
	}
	return nil
}

// ValidateURLPath validates a health check or API path
func ValidateURLPath(path string) error {
	if path == "" {
		return nil
	}
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("path must start with /")
	}
	if len(path) > 2048 {
		return fmt.Errorf("path too long (max 2048 characters)")
	}
	if strings.Contains(path, "..") {
		return fmt.Errorf("path cannot contain path traversal (..) sequences")
	}
	if !urlPathRegex.MatchString(path) {
		return fmt.Errorf("path contains invalid characters")
	}
	return nil
}

// ValidateLogLines validates the number of log lines to fetch
func ValidateLogLines(lines string) error {
	if lines == "" {
		return nil
	}
	n, err := strconv.Atoi(lines)
	if err != nil {
		return fmt.Errorf("lines must be a positive integer")
	}
	if n <= 0 {
		return fmt.Errorf("lines must be a positive integer")
	}
	if n > 100000 {
		return fmt.Errorf("lines value too large (max 100000)")
	}
	return nil
}

// ValidateEnvKey validates an environment variable key
func ValidateEnvKey(key string) error {
	if key == "" {
		return fmt.Errorf("environment variable key cannot be empty")
	}
	if len(key) > 256 {
		return fmt.Errorf("environment variable key too long (max 256 characters)")
	}
	if !envKeyRegex.MatchString(key) {
		return fmt.Errorf("environment variable key must start with a letter or underscore, followed by letters, numbers, or underscores")
	}
	return nil
}

// ValidateDomain validates a hostname or IP address used as an nginx
// server_name or certificate domain.
func ValidateDomain(domain string) error {
	if domain == "" {
		return fmt.Errorf("domain cannot be empty")
	}
	if net.ParseIP(domain) != nil {
		return nil
	}
	if len(domain) > 253 {
		return fmt.Errorf("domain too long (max 253 characters)")
	}
	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return fmt.Errorf("domain %q must contain at least one dot", domain)
	}
	for _, label := range labels {
		if !domainLabelRegex.MatchString(label) {
			return fmt.Errorf("domain %q contains an invalid label %q", domain, label)
		}
	}
	return nil
}

// IsIPAddress reports whether host is a literal IP address.
func IsIPAddress(host string) bool {
	return net.ParseIP(host) != nil
}

// ValidateRemotePath validates an absolute path on the remote server.
func ValidateRemotePath(p string) error {
	if p == "" {
		return fmt.Errorf("remote path cannot be empty")
	}
	if !strings.HasPrefix(p, "/") {
		return fmt.Errorf("remote path must be absolute, got: %s", p)
	}
	if strings.Contains(p, "..") {
		return fmt.Errorf("remote path cannot contain path traversal (..): %s", p)
	}
	if p == "/" || !remotePathRegex.MatchString(p) {
		return fmt.Errorf("remote path contains invalid characters: %s", p)
	}
	return nil
}

// ValidateIdentifier validates a SQL identifier (database, table or column).
func ValidateIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("identifier cannot be empty")
	}
	if !identifierRegex.MatchString(name) {
		return fmt.Errorf("identifier %q must start with a letter or underscore and contain only letters, numbers, and underscores (max 63)", name)
	}
	return nil
}

// ValidateEmail validates the contact address passed to certbot.
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email address: %q", email)
	}
	return nil
}

// ValidateRepoURL validates a git remote URL.
func ValidateRepoURL(url string) error {
	if url == "" {
		return fmt.Errorf("repository URL cannot be empty")
	}
	if !repoURLRegex.MatchString(url) {
		return fmt.Errorf("repository URL must be https://host/path or user@host:path, got: %s", url)
	}
	return nil
}

// ShellEscape escapes a string for safe use in shell commands by wrapping it
// in single quotes and escaping any internal single quotes using the POSIX
// pattern: ' → '\''
func ShellEscape(s string) string {
	escaped := strings.ReplaceAll(s, "'", "'\\''")
	return "'" + escaped + "'"
}

// GenerateHeredocDelimiter generates a unique heredoc delimiter to prevent
// heredoc injection attacks. Uses crypto/rand for unpredictability.
func GenerateHeredocDelimiter(prefix string) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes for heredoc delimiter: %w", err)
	}
	return prefix + "_" + hex.EncodeToString(b), nil
}

// SanitizeCommandForLog masks sensitive values in commands before logging.
// This prevents secrets from leaking into verbose output.
func SanitizeCommandForLog(cmd string) string {
	result := secretAssignRegex.ReplaceAllString(cmd, "${1}****")
	result = bearerRegex.ReplaceAllString(result, "${1}****")
	result = urlCredentialsRegex.ReplaceAllString(result, "${1}****@")
	return result
}
