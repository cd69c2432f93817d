package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/sweetstyle/opsrun/internal/config"
	"github.com/sweetstyle/opsrun/internal/functions"
)

var functionsCmd = &cobra.Command{
	Use:     "functions",
	Aliases: []string{"fn"},
	Short:   "Deploy hosted serverless functions",
}

var functionsDeployCmd = &cobra.Command{
	Use:   "deploy [name] [file]",
	Short: "Deploy one function, or every function with --all",
	Long: `Uploads function source to the hosting platform's management API.

The access token is read from the environment variable named by
functions.token_env in opsrun.yaml.`,
	Example: `  opsrun functions deploy send-email supabase/functions/send-email/index.ts
  opsrun functions deploy send-email
  opsrun functions deploy --all`,
	Args: cobra.MaximumNArgs(2),
	RunE: runFunctionsDeploy,
}

var (
	functionsAll       bool
	functionsVerifyJWT bool
)

func init() {
	rootCmd.AddCommand(functionsCmd)
	functionsCmd.AddCommand(functionsDeployCmd)
	functionsDeployCmd.Flags().BoolVar(&functionsAll, "all", false, "Deploy every function found in functions.dir")
	functionsDeployCmd.Flags().BoolVar(&functionsVerifyJWT, "verify-jwt", false, "Require a valid JWT on invocation (overrides functions.verify_jwt)")
}

// functionTarget is a function name and the file holding its source.
type functionTarget struct {
	Name string
	Path string
}

// functionTargets resolves the functions to deploy from args or --all.
func functionTargets(cfg *config.ProjectConfig, projectDir string, args []string, all bool) ([]functionTarget, error) {
	dir := cfg.Functions.Dir
	if dir != "" && !filepath.IsAbs(dir) {
		dir = filepath.Join(projectDir, dir)
	}

	if all {
		if len(args) > 0 {
			return nil, fmt.Errorf("--all does not take a function name")
		}
		if dir == "" {
			return nil, fmt.Errorf("functions.dir is not set in %s", config.ProjectConfigFile)
		}
		names, err := functions.Discover(dir)
		if err != nil {
			return nil, err
		}
		if len(names) == 0 {
			return nil, fmt.Errorf("no functions found in %s", dir)
		}
		targets := make([]functionTarget, len(names))
		for i, name := range names {
			targets[i] = functionTarget{Name: name, Path: filepath.Join(dir, name, functions.DefaultEntrypoint)}
		}
		return targets, nil
	}

	switch len(args) {
	case 0:
		return nil, fmt.Errorf("function name required (or use --all)")
	case 1:
		if dir == "" {
			return nil, fmt.Errorf("no file given and functions.dir is not set")
		}
		return []functionTarget{{Name: args[0], Path: filepath.Join(dir, args[0], functions.DefaultEntrypoint)}}, nil
	default:
		return []functionTarget{{Name: args[0], Path: args[1]}}, nil
	}
}

func runFunctionsDeploy(cmd *cobra.Command, args []string) error {
	cfg, projectDir, err := loadProject()
	if err != nil {
		return err
	}
	if cfg.Functions.ProjectRef == "" {
		return fmt.Errorf("functions.project_ref is not set in %s", config.ProjectConfigFile)
	}

	targets, err := functionTargets(cfg, projectDir, args, functionsAll)
	if err != nil {
		return err
	}

	verifyJWT := cfg.Functions.VerifyJWT
	if cmd.Flags().Changed("verify-jwt") {
		verifyJWT = functionsVerifyJWT
	}

	// Load every body first so a bad file fails before anything is uploaded.
	fns := make([]functions.Function, len(targets))
	for i, t := range targets {
		fn, err := functions.Load(t.Name, t.Path, verifyJWT)
		if err != nil {
			return err
		}
		fns[i] = fn
	}

	client, err := functions.NewClientFromEnv(cfg.Functions.TokenEnv)
	if err != nil {
		return err
	}

	// Deployed one at a time; a failure stops the remaining uploads.
	for _, fn := range fns {
		PrintVerbose("Deploying %s (%d bytes)", fn.Name, len(fn.Body))
		url, err := client.Deploy(cmd.Context(), cfg.Functions.ProjectRef, fn)
		if err != nil {
			return fmt.Errorf("%s: %w", fn.Name, err)
		}
		PrintSuccess("Deployed %s: %s", fn.Name, url)
	}
	return nil
}
