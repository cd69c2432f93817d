package deploy

import (
	"fmt"
	"path"
	"strings"

	"github.com/sweetstyle/opsrun/internal/constants"
	"github.com/sweetstyle/opsrun/internal/nginx"
	"github.com/sweetstyle/opsrun/internal/runbook"
	"github.com/sweetstyle/opsrun/internal/security"
)

func (o *Orchestrator) requireDomain() error {
	if o.config.Domain == "" {
		return fmt.Errorf("domain is required in opsrun.yaml")
	}
	return nil
}

func (o *Orchestrator) certificateFile() string {
	return path.Join(constants.CertificateDir(o.config.TLS.CertName), "fullchain.pem")
}

// TLSRunbook installs certbot and issues a certificate for every server
// name through the nginx plugin.
func (o *Orchestrator) TLSRunbook() (runbook.Runbook, error) {
	if err := o.requireDomain(); err != nil {
		return runbook.Runbook{}, err
	}
	if err := security.ValidateEmail(o.config.Email); err != nil {
		return runbook.Runbook{}, fmt.Errorf("invalid email: %w", err)
	}

	site, err := nginx.TLSBootstrapSite(nginx.Site{
		Name:          o.config.Name,
		ServerNames:   o.config.ServerNames(),
		DefaultServer: true,
		Root:          o.config.DistPath(),
		BackendPort:   o.config.Backend.Port,
		HealthPath:    o.config.Backend.HealthPath,
	})
	if err != nil {
		return runbook.Runbook{}, err
	}

	var domains []string
	for _, name := range o.config.ServerNames() {
		domains = append(domains, "-d "+security.ShellEscape(name))
	}
	certbot := fmt.Sprintf("certbot --nginx %s --cert-name %s --non-interactive --agree-tos --email %s --redirect",
		strings.Join(domains, " "), security.ShellEscape(o.config.TLS.CertName), security.ShellEscape(o.config.Email))

	steps := []runbook.Step{
		{
			Title:    "Install certbot",
			Command:  "command -v certbot >/dev/null 2>&1 || (apt-get update -qq && DEBIAN_FRONTEND=noninteractive apt-get install -y -qq certbot python3-certbot-nginx)",
			Timeout:  constants.InstallStepTimeout,
			Check:    runbook.CheckExitCode,
			Required: true,
		},
		requiredCommand("Prepare ACME challenge directory", "mkdir -p "+path.Join(constants.ACMEChallengeRoot, ".well-known", "acme-challenge")),
	}
	steps = append(steps, siteSteps(o.config.Name, site, true, false)...)
	steps = append(steps,
		longCommand("Issue certificate", certbot, constants.CertStepTimeout),
		runbook.Step{
			Title:   "Verify HTTPS",
			Command: fmt.Sprintf("curl -sSI -m 10 %s | head -5", security.ShellEscape("https://"+o.config.Domain)),
			Timeout: constants.CheckStepTimeout,
			Check:   runbook.CheckMarker,
			Marker:  "HTTP/",
		},
		optionalCommand("Certificate dates",
			fmt.Sprintf("openssl x509 -noout -subject -dates -in %s", security.ShellEscape(o.certificateFile()))),
		runbook.Step{
			Title:   "Enable renewal timer",
			Command: "systemctl enable --now certbot.timer",
			Timeout: constants.ShortStepTimeout,
			Check:   runbook.CheckExitCode,
		},
		runbook.Step{
			Title:   "Renewal dry run",
			Command: "certbot renew --dry-run",
			Timeout: constants.CertStepTimeout,
			Check:   runbook.CheckExitCode,
			Stream:  true,
		},
	)

	return runbook.Runbook{Name: "setup tls", Steps: steps}, nil
}

// NginxRunbook writes the complete HTTPS site once a certificate exists.
func (o *Orchestrator) NginxRunbook() (runbook.Runbook, error) {
	if err := o.requireDomain(); err != nil {
		return runbook.Runbook{}, err
	}

	s := nginx.Site{
		Name:          o.config.Name,
		ServerNames:   o.config.ServerNames(),
		DefaultServer: true,
		Root:          o.config.DistPath(),
		BackendPort:   o.config.Backend.Port,
		HealthPath:    o.config.Backend.HealthPath,
		CertName:      o.config.TLS.CertName,
	}
	if o.hasUploadsDir() {
		s.UploadsDir = o.uploadsDir()
	}
	site, err := nginx.HTTPSSite(s)
	if err != nil {
		return runbook.Runbook{}, err
	}

	base := "https://" + o.config.Domain
	steps := []runbook.Step{
		requiredCommand("Check certificate", "test -f "+security.ShellEscape(o.certificateFile())),
	}
	steps = append(steps, siteSteps(o.config.Name, site, true, false)...)
	steps = append(steps, checkStep("HTTPS health", base+o.config.Backend.HealthPath, o.config.Backend.HealthMarker))
	for _, p := range o.config.Backend.APIPaths {
		steps = append(steps, statusCheckStep("HTTPS "+p, base+p))
	}

	return runbook.Runbook{Name: "configure nginx", Steps: steps}, nil
}
