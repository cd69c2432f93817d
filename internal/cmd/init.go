package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/sweetstyle/opsrun/internal/config"
	"github.com/sweetstyle/opsrun/internal/scanner"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize opsrun configuration",
	Long: `Analyzes your project and creates an opsrun.yaml configuration
file with detected settings.

This command will:
- Find the frontend package, its build command and output directory
- Read the git origin the server clones the frontend from
- Find the Node.js API entry point, source files and directories
- Turn .env.example keys into required environment variables
- Detect PostgreSQL, a seed file and hosted functions`,
	Example: `  opsrun init
  opsrun init --name shop --domain shop.example.com`,
	RunE: runInit,
}

var (
	initName   string
	initForce  bool
	initDomain string
)

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVarP(&initName, "name", "n", "", "Project name (default: directory name)")
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite existing configuration")
	initCmd.Flags().StringVarP(&initDomain, "domain", "d", "", "Domain for the application (e.g., shop.example.com)")
}

func runInit(cmd *cobra.Command, args []string) error {
	if config.ProjectConfigExists("") && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", config.ProjectConfigFile)
	}

	PrintInfo("Analyzing project...")

	s := scanner.New(".")
	result, err := s.Scan()
	if err != nil {
		return fmt.Errorf("failed to analyze project: %w", err)
	}

	projectName := initName
	if projectName == "" {
		cwd, _ := os.Getwd()
		projectName = sanitizeProjectName(filepath.Base(cwd))
	}

	cfg := s.ToProjectConfig(result, projectName)

	domain := initDomain
	if domain == "" && IsInteractive() && !yesFlag {
		domain = PromptString("Domain (leave empty to serve on the server address)", "")
	}
	if domain != "" {
		cfg.Domain = strings.ToLower(domain)
		cfg.ApplyDefaults()
	}

	if errors := config.ValidateProjectConfig(cfg); errors.HasErrors() {
		PrintWarning("Configuration has validation issues: %s", errors.Error())
	}

	if err := config.SaveProjectConfig(cfg, ""); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	PrintSuccess("Created %s", config.ProjectConfigFile)

	printInitSummary(result, cfg)

	return nil
}

func sanitizeProjectName(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, " ", "-")
	name = strings.ReplaceAll(name, "_", "-")

	var result strings.Builder
	for _, c := range name {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-' {
			result.WriteRune(c)
		}
	}

	return strings.Trim(result.String(), "-")
}

func printInitSummary(result *scanner.Result, cfg *config.ProjectConfig) {
	fmt.Println()
	fmt.Println("Project configuration:")
	fmt.Printf("   Name:        %s\n", cfg.Name)
	fmt.Printf("   Node.js:     %s\n", cfg.Node.Version)

	if result.FrontendDir != "" {
		fmt.Printf("   Frontend:    %s (%s, output %s)\n", result.FrontendDir, cfg.Frontend.BuildCommand, cfg.Frontend.DistDir)
		if cfg.Frontend.Repo == "" {
			PrintWarning("No git origin found: set frontend.repo before running 'opsrun deploy frontend'")
		}
	}
	if result.BackendDir != "" {
		fmt.Printf("   Backend:     %s/%s on port %d\n", result.BackendDir, cfg.Backend.Entry, cfg.Backend.Port)
	}
	if len(cfg.Backend.RequiredEnv) > 0 {
		fmt.Printf("   Env:         %s\n", strings.Join(cfg.Backend.RequiredEnv, ", "))
	}
	if cfg.Database.Name != "" {
		fmt.Printf("   Database:    postgres %s\n", cfg.Database.Name)
	}
	if cfg.Functions.Dir != "" {
		fmt.Printf("   Functions:   %s\n", cfg.Functions.Dir)
	}
	if cfg.Domain != "" {
		fmt.Printf("   Domain:      %s\n", cfg.Domain)
	}

	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Printf("  1. Review %s and adjust if needed\n", config.ProjectConfigFile)
	fmt.Println("  2. Run 'opsrun server add <name> <user@host>' to register a server")
	fmt.Println("  3. Run 'opsrun deploy frontend <name>' and 'opsrun deploy backend <name>'")
}
