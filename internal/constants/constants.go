package constants

import (
	"path"
	"time"
)

// Environment variables read by opsrun
const (
	EnvServer           = "OPSRUN_SERVER"
	EnvSSHKey           = "OPSRUN_SSH_KEY"
	EnvSSHPassword      = "OPSRUN_SSH_PASSWORD"
	EnvKnownHosts       = "OPSRUN_KNOWN_HOSTS"
	EnvSkipHostKeyCheck = "OPSRUN_SKIP_HOST_KEY_CHECK"
	EnvFlagPrefix       = "OPSRUN_"
	EnvFunctionsToken   = "SUPABASE_ACCESS_TOKEN"
)

// Remote layout defaults
const (
	WebRoot              = "/var/www"
	DefaultFrontendPath  = WebRoot + "/app"
	DefaultBackendPath   = WebRoot + "/backend"
	DefaultDistDir       = "dist"
	NginxSitesAvailable  = "/etc/nginx/sites-available"
	NginxSitesEnabled    = "/etc/nginx/sites-enabled"
	NginxDefaultSite     = NginxSitesEnabled + "/default"
	LetsEncryptLive      = "/etc/letsencrypt/live"
	ACMEChallengeRoot    = "/var/www/html"
	RemoteTempDir        = "/tmp"
	DefaultProcessName   = "backend"
	DefaultBackendPort   = 3000
	DefaultNodeVersion   = "20"
	DefaultHealthPath    = "/health"
	DefaultHealthMarker  = "ok"
	DefaultDatabaseOwner = "postgres"
)

// Timeouts per step class
const (
	ShortStepTimeout   = 30 * time.Second
	InstallStepTimeout = 5 * time.Minute
	BuildStepTimeout   = 10 * time.Minute
	CertStepTimeout    = 3 * time.Minute
	CheckStepTimeout   = 15 * time.Second
	PostRestartDelay   = 2 * time.Second
)

// Defaults for the function deployment API
const (
	FunctionsAPIBaseURL = "https://api.supabase.com"
	FunctionsHostSuffix = ".supabase.co"
)

// SiteConfigPath returns the sites-available path for an nginx site.
func SiteConfigPath(site string) string {
	return path.Join(NginxSitesAvailable, site)
}

// SiteEnabledPath returns the sites-enabled symlink path for an nginx site.
func SiteEnabledPath(site string) string {
	return path.Join(NginxSitesEnabled, site)
}

// CertificateDir returns the Let's Encrypt live directory for a certificate name.
func CertificateDir(certName string) string {
	return path.Join(LetsEncryptLive, certName)
}

// EnvFilePath returns the .env path inside an application directory.
func EnvFilePath(appPath string) string {
	return path.Join(appPath, ".env")
}
