package nginx

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticSite(t *testing.T) {
	out, err := StaticSite(Site{
		Name:          "app",
		ServerNames:   []string{"example.com", "www.example.com"},
		Root:          "/var/www/app/dist",
		DefaultServer: true,
	})
	require.NoError(t, err)

	assert.Contains(t, out, "listen 80 default_server;")
	assert.Contains(t, out, "server_name example.com www.example.com;")
	assert.Contains(t, out, "root /var/www/app/dist;")
	assert.Contains(t, out, "gzip on;")
	assert.Contains(t, out, "expires 1y;")
	assert.Contains(t, out, `add_header X-Content-Type-Options "nosniff" always;`)
	assert.Contains(t, out, "try_files $uri $uri/ /index.html;")
	assert.NotContains(t, out, "location /api/")
	assert.NotContains(t, out, "<no value>")
}

func TestStaticSite_WithAPI(t *testing.T) {
	out, err := StaticSite(Site{Name: "app", Root: "/var/www/app/dist", BackendPort: 3000})
	require.NoError(t, err)

	assert.Contains(t, out, "server_name _;")
	assert.Contains(t, out, "location /api/ {")
	assert.Contains(t, out, "proxy_pass http://127.0.0.1:3000;")
	assert.Contains(t, out, "proxy_read_timeout 60s;")
}

func TestAPIProxySite(t *testing.T) {
	out, err := APIProxySite(Site{
		Name:        "api",
		ServerNames: []string{"203.0.113.10"},
		BackendPort: 4000,
		HealthPath:  "/health",
		UploadsDir:  "/var/www/backend/uploads",
	})
	require.NoError(t, err)

	assert.Contains(t, out, "server_name 203.0.113.10;")
	assert.Contains(t, out, "location = /health {")
	assert.Contains(t, out, "proxy_set_header Upgrade $http_upgrade;")
	assert.Contains(t, out, "proxy_set_header Connection 'upgrade';")
	assert.Contains(t, out, "alias /var/www/backend/uploads/;")
	assert.Contains(t, out, "client_max_body_size 20m;")
	assert.Equal(t, 3, strings.Count(out, "proxy_pass http://127.0.0.1:4000;"))
}

func TestAPIProxySite_RequiresPort(t *testing.T) {
	_, err := APIProxySite(Site{Name: "api"})
	assert.Error(t, err)
}

func TestTLSBootstrapSite(t *testing.T) {
	out, err := TLSBootstrapSite(Site{
		Name:        "app",
		ServerNames: []string{"example.com"},
		Root:        "/var/www/app/dist",
		BackendPort: 3000,
	})
	require.NoError(t, err)

	assert.Contains(t, out, "location /.well-known/acme-challenge/ {")
	assert.Contains(t, out, "root /var/www/html;")
	assert.Contains(t, out, "location /api/ {")
	assert.NotContains(t, out, "listen 443")
}

func TestHTTPSSite(t *testing.T) {
	out, err := HTTPSSite(Site{
		Name:        "app",
		ServerNames: []string{"example.com", "www.example.com"},
		Root:        "/var/www/app/dist",
		BackendPort: 3000,
		HealthPath:  "/health",
		CertName:    "example.com-0002",
	})
	require.NoError(t, err)

	assert.Contains(t, out, "return 301 https://$host$request_uri;")
	assert.Contains(t, out, "listen 443 ssl http2;")
	assert.Contains(t, out, "ssl_certificate /etc/letsencrypt/live/example.com-0002/fullchain.pem;")
	assert.Contains(t, out, "ssl_certificate_key /etc/letsencrypt/live/example.com-0002/privkey.pem;")
	assert.Contains(t, out, "include /etc/letsencrypt/options-ssl-nginx.conf;")
	assert.Contains(t, out, "ssl_dhparam /etc/letsencrypt/ssl-dhparams.pem;")
	assert.Contains(t, out, "location = /health {")
	assert.Contains(t, out, "proxy_read_timeout 60s;")
	assert.Contains(t, out, "try_files $uri $uri/ /index.html;")
	assert.Equal(t, 2, strings.Count(out, "server_name example.com www.example.com;"))

	// redirect server comes first
	assert.Less(t, strings.Index(out, "return 301"), strings.Index(out, "listen 443"))
}

func TestHTTPSSite_Validation(t *testing.T) {
	base := Site{Name: "app", ServerNames: []string{"example.com"}, Root: "/var/www/app/dist", CertName: "example.com"}

	tests := []struct {
		name   string
		mutate func(*Site)
	}{
		{"no server names", func(s *Site) { s.ServerNames = nil }},
		{"no cert", func(s *Site) { s.CertName = "" }},
		{"bad cert", func(s *Site) { s.CertName = "../etc" }},
		{"bad root", func(s *Site) { s.Root = "relative/dist" }},
		{"bad server name", func(s *Site) { s.ServerNames = []string{"example.com; include /etc/passwd"} }},
		{"bad site name", func(s *Site) { s.Name = "../default" }},
		{"bad port", func(s *Site) { s.BackendPort = 70000 }},
		{"bad health path", func(s *Site) { s.HealthPath = "health; return 200" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			site := base
			tt.mutate(&site)
			_, err := HTTPSSite(site)
			assert.Error(t, err)
		})
	}
}

func TestValidateServerName(t *testing.T) {
	for _, name := range []string{"_", "localhost", "example.com", "api.example.co.uk", "198.51.100.7", "2001:db8::1"} {
		assert.NoError(t, ValidateServerName(name), name)
	}
	for _, name := range []string{"", "example", "exa mple.com", "example.com;", "*.example.com"} {
		assert.Error(t, ValidateServerName(name), name)
	}
}

func TestTemplateLoader_UnknownTemplate(t *testing.T) {
	l, err := NewTemplateLoader()
	require.NoError(t, err)

	_, err = l.Execute("missing.tmpl", nil)
	assert.Error(t, err)
}

func TestEnableSiteCommands(t *testing.T) {
	cmds := EnableSiteCommands("app", true)
	require.Len(t, cmds, 2)
	assert.Equal(t, "ln -sf '/etc/nginx/sites-available/app' '/etc/nginx/sites-enabled/app'", cmds[0])
	assert.Equal(t, "rm -f /etc/nginx/sites-enabled/default", cmds[1])

	assert.Len(t, EnableSiteCommands("default", true), 1, "never remove the site being enabled")
	assert.Len(t, EnableSiteCommands("app", false), 1)
}

func TestReloadAndRestartCommands(t *testing.T) {
	assert.Equal(t, []string{"nginx -t", "systemctl reload nginx"}, TestAndReloadCommands())

	restart := RestartCommands()
	assert.Contains(t, restart[0], "nginx -t")
	assert.Equal(t, "systemctl is-active nginx", restart[1])

	assert.Len(t, DisableSiteCommands("app"), 2)
	assert.Contains(t, InstallCommand(), "apt-get install")
}
