package cmd

import (
	"fmt"

	"github.com/skratchdot/open-golang/open"
	"github.com/spf13/cobra"
	"github.com/sweetstyle/opsrun/internal/config"
	"github.com/sweetstyle/opsrun/internal/deploy"
	"github.com/sweetstyle/opsrun/internal/runbook"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy the frontend or the backend",
	Long: `Deploys one part of the project described in opsrun.yaml.

  frontend  clone or update the repository, build it on the server and
            serve the build output with nginx
  upload    upload a locally built frontend instead of building remotely
  backend   upload the API files, write .env, install dependencies and
            (re)start the process under pm2
  quick     upload changed backend files and restart the process

If no server is given, OPSRUN_SERVER is used.`,
}

var deployFrontendCmd = &cobra.Command{
	Use:   "frontend [server]",
	Short: "Build the frontend from git on the server",
	Args:  cobra.MaximumNArgs(1),
	RunE: deployRunE(func(o *deploy.Orchestrator) (runbook.Runbook, error) {
		return o.FrontendRunbook()
	}),
}

var deployUploadCmd = &cobra.Command{
	Use:   "upload [server]",
	Short: "Upload a locally built frontend",
	Args:  cobra.MaximumNArgs(1),
	RunE: deployRunE(func(o *deploy.Orchestrator) (runbook.Runbook, error) {
		return o.UploadRunbook()
	}),
}

var deployBackendCmd = &cobra.Command{
	Use:   "backend [server]",
	Short: "Deploy the API and (re)start it under pm2",
	Args:  cobra.MaximumNArgs(1),
	RunE: deployRunE(func(o *deploy.Orchestrator) (runbook.Runbook, error) {
		return o.BackendRunbook()
	}),
}

var deployQuickCmd = &cobra.Command{
	Use:   "quick [server]",
	Short: "Upload backend files and restart",
	Long: `Uploads backend files and restarts the process. Without --file every
file listed under backend.files is sent.

Example:
  opsrun deploy quick prod -f routes/auth.js -f services/mail.js`,
	Args: cobra.MaximumNArgs(1),
	RunE: deployRunE(func(o *deploy.Orchestrator) (runbook.Runbook, error) {
		return o.QuickRunbook(deployFiles)
	}),
}

var (
	deployOpen  bool
	deployFiles []string
)

func init() {
	rootCmd.AddCommand(deployCmd)
	deployCmd.AddCommand(deployFrontendCmd)
	deployCmd.AddCommand(deployUploadCmd)
	deployCmd.AddCommand(deployBackendCmd)
	deployCmd.AddCommand(deployQuickCmd)

	deployCmd.PersistentFlags().BoolVar(&deployOpen, "open", false, "Open the site in a browser after a successful deploy")
	deployQuickCmd.Flags().StringSliceVarP(&deployFiles, "file", "f", nil, "File to upload, relative to the project (repeatable)")
}

func deployRunE(build func(*deploy.Orchestrator) (runbook.Runbook, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		report, err := runProjectRunbook(cmd, args, build)
		if err != nil {
			return err
		}
		if deployOpen && report.OK() {
			openSite(args)
		}
		return nil
	}
}

// siteURL is the public address of the project: its domain, or the server
// host when no domain is configured.
func siteURL(project *config.ProjectConfig, server *config.ServerConfig) string {
	if project.Domain != "" {
		return "https://" + project.Domain
	}
	return "http://" + server.Host
}

func openSite(args []string) {
	project, _, err := loadProject()
	if err != nil {
		return
	}
	serverName, err := serverArg(args)
	if err != nil {
		return
	}
	globalCfg, err := config.LoadGlobalConfig()
	if err != nil {
		return
	}
	server, err := globalCfg.GetServer(serverName)
	if err != nil {
		return
	}

	url := siteURL(project, server)
	PrintInfo("Opening %s", url)
	if err := open.Run(url); err != nil {
		PrintWarning("Could not open a browser: %v", err)
		fmt.Println("  " + url)
	}
}
