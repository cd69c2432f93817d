package nginx

import (
	"fmt"

	"github.com/sweetstyle/opsrun/internal/constants"
	"github.com/sweetstyle/opsrun/internal/security"
)

// InstallCommand installs nginx unless it is already present.
func InstallCommand() string {
	return "command -v nginx >/dev/null 2>&1 || (apt-get update -qq && DEBIAN_FRONTEND=noninteractive apt-get install -y -qq nginx)"
}

// EnableSiteCommands links the site into sites-enabled. With removeDefault
// the distribution's default site is dropped so it cannot shadow ours.
func EnableSiteCommands(name string, removeDefault bool) []string {
	cmds := []string{
		fmt.Sprintf("ln -sf %s %s",
			security.ShellEscape(constants.SiteConfigPath(name)),
			security.ShellEscape(constants.SiteEnabledPath(name))),
	}
	if removeDefault && constants.SiteEnabledPath(name) != constants.NginxDefaultSite {
		cmds = append(cmds, "rm -f "+constants.NginxDefaultSite)
	}
	return cmds
}

// DisableSiteCommands removes the site from sites-enabled and sites-available.
func DisableSiteCommands(name string) []string {
	return []string{
		"rm -f " + security.ShellEscape(constants.SiteEnabledPath(name)),
		"rm -f " + security.ShellEscape(constants.SiteConfigPath(name)),
	}
}

// TestAndReloadCommands validates the configuration before reloading.
func TestAndReloadCommands() []string {
	return []string{
		"nginx -t",
		"systemctl reload nginx",
	}
}

// RestartCommands restarts nginx and reports whether it came back.
func RestartCommands() []string {
	return []string{
		"nginx -t && systemctl restart nginx",
		"systemctl is-active nginx",
	}
}
