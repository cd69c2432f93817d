package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/sweetstyle/opsrun/internal/deploy"
	"github.com/sweetstyle/opsrun/internal/runbook"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Seed and inspect the PostgreSQL database",
}

var dbSeedCmd = &cobra.Command{
	Use:   "seed [server]",
	Short: "Apply a seed file",
	Long: `Loads a YAML seed file, renders it as INSERT ... ON CONFLICT DO NOTHING
statements and applies them with psql, stopping at the first error
(ON_ERROR_STOP). Row counts are shown before and after.

With --dry-run the SQL is printed and nothing is sent.

Example:
  opsrun db seed prod --file db/seed.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDBSeed,
}

var dbSchemaCmd = &cobra.Command{
	Use:   "schema [server] [table...]",
	Short: "Describe tables",
	Long: `Runs \d for each table, or for database.tables when none are given.

Example:
  opsrun db schema prod professions categories`,
	Args: cobra.ArbitraryArgs,
	RunE: runDBSchema,
}

var (
	seedFile   string
	seedDryRun bool
)

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbSeedCmd)
	dbCmd.AddCommand(dbSchemaCmd)

	dbSeedCmd.Flags().StringVar(&seedFile, "file", "", "Seed file (default: database.seed_file)")
	dbSeedCmd.Flags().BoolVar(&seedDryRun, "dry-run", false, "Print the SQL without running it")
}

func runDBSeed(cmd *cobra.Command, args []string) error {
	if seedDryRun {
		project, dir, err := loadProject()
		if err != nil {
			return err
		}
		o, err := deploy.NewOrchestrator(project, "")
		if err != nil {
			return err
		}
		o.SetLocalDir(dir)
		file, err := o.LoadSeed(seedFile)
		if err != nil {
			return err
		}
		sql, err := file.SQL()
		if err != nil {
			return err
		}
		fmt.Fprint(os.Stdout, sql)
		return nil
	}

	_, err := runProjectRunbook(cmd, args, func(o *deploy.Orchestrator) (runbook.Runbook, error) {
		file, err := o.LoadSeed(seedFile)
		if err != nil {
			return runbook.Runbook{}, err
		}
		return o.SeedRunbook(file)
	})
	return err
}

func runDBSchema(cmd *cobra.Command, args []string) error {
	var server, tables []string
	if len(args) > 0 {
		server, tables = args[:1], args[1:]
	}
	_, err := runProjectRunbook(cmd, server, func(o *deploy.Orchestrator) (runbook.Runbook, error) {
		return o.SchemaRunbook(tables)
	})
	return err
}
