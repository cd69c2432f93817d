package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/sweetstyle/opsrun/internal/config"
	"github.com/sweetstyle/opsrun/internal/constants"
)

// flagEnvName returns the environment variable that supplies a flag's
// default: --skip-test is OPSRUN_SKIP_TEST.
func flagEnvName(name string) string {
	return constants.EnvFlagPrefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

// loadEnvAndBindFlags loads the .env file first so OPSRUN_ variables it
// defines reach the flags as well as the ones from the real environment.
func loadEnvAndBindFlags(cmd *cobra.Command) error {
	if err := config.LoadDotEnv(envFilePath(cmd)); err != nil {
		return err
	}
	return bindFlagsFromEnv(cmd)
}

// envFilePath is --env-file, else OPSRUN_ENV_FILE, else .env.
func envFilePath(cmd *cobra.Command) string {
	if f := cmd.Flags().Lookup("env-file"); f != nil && f.Changed {
		return f.Value.String()
	}
	if p := os.Getenv(flagEnvName("env-file")); p != "" {
		return p
	}
	return ".env"
}

// bindFlagsFromEnv sets every flag not given on the command line from its
// OPSRUN_ environment variable.
func bindFlagsFromEnv(cmd *cobra.Command) error {
	return applyEnv(cmd.Flags(), os.LookupEnv)
}

func applyEnv(fs *pflag.FlagSet, lookup func(string) (string, bool)) error {
	var errs []string
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Changed || f.Name == "help" || f.Name == "version" {
			return
		}
		value, ok := lookup(flagEnvName(f.Name))
		if !ok || value == "" {
			return
		}
		if err := fs.Set(f.Name, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", flagEnvName(f.Name), err))
		}
	})
	if len(errs) > 0 {
		return fmt.Errorf("invalid environment value: %s", strings.Join(errs, "; "))
	}
	return nil
}
