package deploy

import (
	"fmt"

	"github.com/sweetstyle/opsrun/internal/constants"
	"github.com/sweetstyle/opsrun/internal/runbook"
	"github.com/sweetstyle/opsrun/internal/seed"
)

func (o *Orchestrator) databaseName(file *seed.File) (string, error) {
	name := o.config.Database.Name
	if name == "" && file != nil {
		name = file.Database
	}
	if name == "" {
		return "", fmt.Errorf("database.name is required in opsrun.yaml")
	}
	return name, nil
}

func (o *Orchestrator) queryStep(title, database, query string) (runbook.Step, error) {
	cmd, err := seed.QueryCommand(database, o.config.Database.SystemUser, query)
	if err != nil {
		return runbook.Step{}, err
	}
	return optionalCommand(title, cmd), nil
}

func (o *Orchestrator) apiCheckSteps() []runbook.Step {
	var steps []runbook.Step
	for _, p := range o.config.Backend.APIPaths {
		steps = append(steps, statusCheckStep("API "+p, fmt.Sprintf("http://127.0.0.1:%d%s", o.config.Backend.Port, p)))
	}
	return steps
}

// LoadSeed loads a seed file relative to the project. seedPath defaults to
// database.seed_file.
func (o *Orchestrator) LoadSeed(seedPath string) (*seed.File, error) {
	if seedPath == "" {
		seedPath = o.config.Database.SeedFile
	}
	if seedPath == "" {
		return nil, fmt.Errorf("no seed file given and database.seed_file is not set")
	}
	return seed.Load(o.localPath(seedPath))
}

// SeedRunbook counts rows, applies the seed SQL and counts again.
func (o *Orchestrator) SeedRunbook(file *seed.File) (runbook.Runbook, error) {
	db, err := o.databaseName(file)
	if err != nil {
		return runbook.Runbook{}, err
	}
	sql, err := file.SQL()
	if err != nil {
		return runbook.Runbook{}, err
	}
	apply, err := seed.Command(db, o.config.Database.SystemUser, sql)
	if err != nil {
		return runbook.Runbook{}, err
	}
	count, err := seed.CountQuery(file.TableNames())
	if err != nil {
		return runbook.Runbook{}, err
	}

	list, err := o.queryStep("List tables", db, seed.ListTablesQuery())
	if err != nil {
		return runbook.Runbook{}, err
	}
	before, err := o.queryStep("Row counts before", db, count)
	if err != nil {
		return runbook.Runbook{}, err
	}
	after := before
	after.Title = "Row counts after"

	steps := []runbook.Step{
		list,
		before,
		{
			Title:    "Apply seed data",
			Command:  apply,
			Timeout:  constants.InstallStepTimeout,
			Check:    runbook.CheckExitCode,
			Required: true,
		},
		after,
	}
	steps = append(steps, o.apiCheckSteps()...)
	return runbook.Runbook{Name: "seed database", Steps: steps}, nil
}

// SchemaRunbook runs \d for each table given, or database.tables when none
// are.
func (o *Orchestrator) SchemaRunbook(tables []string) (runbook.Runbook, error) {
	if len(tables) == 0 {
		tables = o.config.Database.Tables
	}
	if len(tables) == 0 {
		return runbook.Runbook{}, fmt.Errorf("no tables given and database.tables is not set")
	}
	db, err := o.databaseName(nil)
	if err != nil {
		return runbook.Runbook{}, err
	}

	var steps []runbook.Step
	for _, t := range tables {
		q, err := seed.DescribeQuery(t)
		if err != nil {
			return runbook.Runbook{}, err
		}
		step, err := o.queryStep("Table "+t, db, q)
		if err != nil {
			return runbook.Runbook{}, err
		}
		steps = append(steps, step)
	}
	return runbook.Runbook{Name: "database schema", Steps: steps}, nil
}
