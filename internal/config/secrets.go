package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sweetstyle/opsrun/internal/constants"
)

// LoadDotEnv loads variables from the given .env files into the process
// environment. Variables that are already set win; missing files are ignored.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// MissingEnvError lists variables referenced by the config but not set.
type MissingEnvError struct {
	Names []string
}

func (e *MissingEnvError) Error() string {
	return fmt.Sprintf("environment variables not set: %s", strings.Join(e.Names, ", "))
}

// ExpandEnv resolves ${VAR} and $VAR references in values against the
// process environment. Every unset variable is reported at once.
func ExpandEnv(values map[string]string) (map[string]string, error) {
	return expandWith(values, os.LookupEnv)
}

func expandWith(values map[string]string, lookup func(string) (string, bool)) (map[string]string, error) {
	missing := map[string]struct{}{}
	out := make(map[string]string, len(values))

	for key, value := range values {
		out[key] = os.Expand(value, func(name string) string {
			v, ok := lookup(name)
			if !ok {
				missing[name] = struct{}{}
			}
			return v
		})
	}

	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for name := range missing {
			names = append(names, name)
		}
		sort.Strings(names)
		return nil, &MissingEnvError{Names: names}
	}
	return out, nil
}

// ResolvePassword returns the SSH password for server, read from the
// environment variable it names or from OPSRUN_SSH_PASSWORD.
func ResolvePassword(server *ServerConfig) string {
	if server.PasswordEnv != "" {
		if v := os.Getenv(server.PasswordEnv); v != "" {
			return v
		}
	}
	return os.Getenv(constants.EnvSSHPassword)
}
