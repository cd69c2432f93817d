// Package nginx renders nginx virtual hosts and the shell commands that
// install them.
package nginx

import (
	"fmt"
	"sync"

	"github.com/sweetstyle/opsrun/internal/constants"
	"github.com/sweetstyle/opsrun/internal/security"
)

// CatchAll is the server_name matching any host.
const CatchAll = "_"

// DefaultReadTimeout is the proxy read timeout in seconds.
const DefaultReadTimeout = 60

// DefaultMaxBodySize bounds request bodies on the API site.
const DefaultMaxBodySize = "20m"

// Site describes one virtual host.
type Site struct {
	// Name is the file name under sites-available.
	Name          string
	ServerNames   []string
	DefaultServer bool

	// Root is the static document root. Required for every site except the
	// API proxy.
	Root string

	// BackendPort enables the /api/ proxy when non-zero.
	BackendPort int
	HealthPath  string
	UploadsDir  string
	ReadTimeout int
	MaxBodySize string

	// CertName selects /etc/letsencrypt/live/<CertName>. HTTPS only.
	CertName string
}

type siteView struct {
	Site
	ACMERoot string
	CertDir  string
}

var (
	loaderOnce sync.Once
	loader     *TemplateLoader
	loaderErr  error
)

func render(name string, site Site) (string, error) {
	loaderOnce.Do(func() {
		loader, loaderErr = NewTemplateLoader()
	})
	if loaderErr != nil {
		return "", loaderErr
	}

	if site.ReadTimeout <= 0 {
		site.ReadTimeout = DefaultReadTimeout
	}
	if site.MaxBodySize == "" {
		site.MaxBodySize = DefaultMaxBodySize
	}
	view := siteView{Site: site, ACMERoot: constants.ACMEChallengeRoot}
	if site.CertName != "" {
		view.CertDir = constants.CertificateDir(site.CertName)
	}
	return loader.Execute(name, view)
}

// StaticSite renders a single-page application site: static root with SPA
// fallback, gzip, long-lived asset caching and security headers. When
// BackendPort is set /api/ is proxied as well.
func StaticSite(site Site) (string, error) {
	if err := site.validate(true, false); err != nil {
		return "", err
	}
	return render(staticTemplate, site)
}

// APIProxySite renders a site proxying every request to the backend on
// localhost.
func APIProxySite(site Site) (string, error) {
	if site.BackendPort == 0 {
		return "", fmt.Errorf("site %s: backend port is required", site.Name)
	}
	if err := site.validate(false, false); err != nil {
		return "", err
	}
	return render(apiTemplate, site)
}

// TLSBootstrapSite renders the plain HTTP site used while a certificate is
// issued: ACME challenge directory, API proxy and SPA root.
func TLSBootstrapSite(site Site) (string, error) {
	if err := site.validate(true, false); err != nil {
		return "", err
	}
	return render(bootstrapTemplate, site)
}

// HTTPSSite renders the HTTP to HTTPS redirect server followed by the TLS
// server.
func HTTPSSite(site Site) (string, error) {
	if err := site.validate(true, true); err != nil {
		return "", err
	}
	return render(httpsTemplate, site)
}

func (s Site) validate(needRoot, needCert bool) error {
	if err := security.ValidateSiteName(s.Name); err != nil {
		return fmt.Errorf("invalid site name: %w", err)
	}
	for _, name := range s.ServerNames {
		if err := ValidateServerName(name); err != nil {
			return fmt.Errorf("site %s: %w", s.Name, err)
		}
	}
	if needRoot {
		if err := security.ValidateRemotePath(s.Root); err != nil {
			return fmt.Errorf("site %s: invalid root: %w", s.Name, err)
		}
	}
	if s.BackendPort < 0 || s.BackendPort > 65535 {
		return fmt.Errorf("site %s: backend port %d out of range", s.Name, s.BackendPort)
	}
	if s.HealthPath != "" {
		if err := security.ValidateURLPath(s.HealthPath); err != nil {
			return fmt.Errorf("site %s: invalid health path: %w", s.Name, err)
		}
	}
	if s.UploadsDir != "" {
		if err := security.ValidateRemotePath(s.UploadsDir); err != nil {
			return fmt.Errorf("site %s: invalid uploads dir: %w", s.Name, err)
		}
	}
	if needCert {
		if len(s.ServerNames) == 0 {
			return fmt.Errorf("site %s: HTTPS requires at least one server name", s.Name)
		}
		if err := security.ValidateDomain(s.CertName); err != nil {
			return fmt.Errorf("site %s: invalid certificate name: %w", s.Name, err)
		}
	}
	return nil
}

// ValidateServerName accepts a domain, an IP address, localhost or the
// catch-all name.
func ValidateServerName(name string) error {
	if name == CatchAll || name == "localhost" {
		return nil
	}
	if err := security.ValidateDomain(name); err != nil {
		return fmt.Errorf("invalid server_name: %w", err)
	}
	return nil
}
