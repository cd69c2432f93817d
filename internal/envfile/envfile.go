// Package envfile renders and inspects the .env files written next to the
// deployed applications.
package envfile

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sweetstyle/opsrun/internal/security"
)

// FileMode is the permission applied to env files on the server.
const FileMode = 0600

// Render produces sorted, quoted .env content.
func Render(vars map[string]string) (string, error) {
	for key := range vars {
		if err := security.ValidateEnvKey(key); err != nil {
			return "", fmt.Errorf("invalid key %q: %w", key, err)
		}
	}
	content, err := godotenv.Marshal(vars)
	if err != nil {
		return "", fmt.Errorf("failed to render env file: %w", err)
	}
	if content == "" {
		return "", nil
	}
	return content + "\n", nil
}

// Parse reads .env content. Comments and blank lines are ignored.
func Parse(content string) (map[string]string, error) {
	vars, err := godotenv.Unmarshal(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse env file: %w", err)
	}
	return vars, nil
}

// Merge returns base overlaid with updates. Neither input is modified.
func Merge(base, updates map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(updates))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range updates {
		out[k] = v
	}
	return out
}

// Missing returns the required keys that are absent or empty in vars, in the
// order they were required.
func Missing(required []string, vars map[string]string) []string {
	var missing []string
	for _, key := range required {
		if strings.TrimSpace(vars[key]) == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

// Keys returns the sorted keys of vars.
func Keys(vars map[string]string) []string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Masked renders vars for display, hiding values of secret-looking keys.
func Masked(vars map[string]string) string {
	var sb strings.Builder
	for _, key := range Keys(vars) {
		sb.WriteString(key)
		sb.WriteString("=")
		sb.WriteString(maskValue(key, vars[key]))
		sb.WriteString("\n")
	}
	return sb.String()
}

func maskValue(key, value string) string {
	if value == "" {
		return ""
	}
	if security.SanitizeCommandForLog(key+"=x") != key+"=x" || len(value) > 64 {
		return "****"
	}
	return value
}

// GenerateSecret returns a random 64 character hex string.
func GenerateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// ReadCommand prints the env file at path, or nothing when it does not exist.
func ReadCommand(path string) string {
	return fmt.Sprintf("cat %s 2>/dev/null || true", security.ShellEscape(path))
}

// FormatMissingError lists the missing keys together with how to set them.
func FormatMissingError(missing []string, serverName string) string {
	var sb strings.Builder

	sb.WriteString("Missing required environment variables:\n\n")
	for _, key := range missing {
		sb.WriteString(fmt.Sprintf("   %s\n", key))
	}

	sb.WriteString("\nSet them in opsrun.yaml (backend.env) or in the local environment, e.g.:\n\n")
	for _, key := range missing {
		sb.WriteString(fmt.Sprintf("   export %s=\"<value>\"\n", key))
	}
	sb.WriteString(fmt.Sprintf("\nThen run 'opsrun env push %s' again.\n", serverName))

	return sb.String()
}
