package cmd

import (
	"github.com/spf13/cobra"
	"github.com/sweetstyle/opsrun/internal/deploy"
	"github.com/sweetstyle/opsrun/internal/runbook"
)

var tlsCmd = &cobra.Command{
	Use:   "tls [server]",
	Short: "Issue a Let's Encrypt certificate",
	Long: `Installs certbot, serves the ACME challenge through nginx and issues a
certificate for the domain, its aliases and (with tls.include_www) the www
name. Renewal is handled by certbot.timer; a dry run checks it.

Run 'opsrun nginx' afterwards to install the full HTTPS site.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := runProjectRunbook(cmd, args, func(o *deploy.Orchestrator) (runbook.Runbook, error) {
			return o.TLSRunbook()
		})
		return err
	},
}

var nginxCmd = &cobra.Command{
	Use:   "nginx [server]",
	Short: "Install the HTTPS nginx site",
	Long: `Writes the HTTPS virtual host (SPA, /api proxy, uploads, health),
tests the configuration, reloads nginx and checks the public endpoints.
Requires the certificate issued by 'opsrun tls'.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := runProjectRunbook(cmd, args, func(o *deploy.Orchestrator) (runbook.Runbook, error) {
			return o.NginxRunbook()
		})
		return err
	},
}

var healthCmd = &cobra.Command{
	Use:   "health [server]",
	Short: "Check services, endpoints and the certificate",
	Long: `Runs read-only checks: nginx and postgresql services, pm2 processes,
disk and memory, the API health endpoint, configured API paths, the TLS
certificate and the checks listed under health.checks. A failing check is
reported as a warning; the others still run.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := runProjectRunbook(cmd, args, func(o *deploy.Orchestrator) (runbook.Runbook, error) {
			return o.HealthRunbook()
		})
		return err
	},
}

func init() {
	rootCmd.AddCommand(tlsCmd)
	rootCmd.AddCommand(nginxCmd)
	rootCmd.AddCommand(healthCmd)
}
