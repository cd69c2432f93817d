package cmd

import (
	"testing"

	"github.com/sweetstyle/opsrun/internal/config"
)

func TestParseHostSpec(t *testing.T) {
	tests := []struct {
		spec     string
		wantUser string
		wantHost string
		wantErr  bool
	}{
		{"deploy@203.0.113.10", "deploy", "203.0.113.10", false},
		{"203.0.113.10", "root", "203.0.113.10", false},
		{"ubuntu@vps.example.com", "ubuntu", "vps.example.com", false},
		{"@203.0.113.10", "", "", true},
		{"deploy@", "", "", true},
		{"", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			user, host, err := parseHostSpec(tt.spec)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseHostSpec(%q) error = %v, wantErr %v", tt.spec, err, tt.wantErr)
			}
			if user != tt.wantUser || host != tt.wantHost {
				t.Errorf("parseHostSpec(%q) = %q, %q, want %q, %q", tt.spec, user, host, tt.wantUser, tt.wantHost)
			}
		})
	}
}

func TestApplyServerSetting(t *testing.T) {
	base := func() *config.ServerConfig {
		return &config.ServerConfig{Host: "203.0.113.10", User: "root", Port: 22}
	}

	tests := []struct {
		key     string
		value   string
		check   func(*config.ServerConfig) bool
		wantErr bool
	}{
		{"user", "deploy", func(s *config.ServerConfig) bool { return s.User == "deploy" }, false},
		{"port", "2222", func(s *config.ServerConfig) bool { return s.Port == 2222 }, false},
		{"port", "abc", nil, true},
		{"port", "70000", nil, true},
		{"key_path", "~/.ssh/id_ed25519", func(s *config.ServerConfig) bool { return s.KeyPath == "~/.ssh/id_ed25519" }, false},
		{"password_env", "VPS_PASSWORD", func(s *config.ServerConfig) bool { return s.PasswordEnv == "VPS_PASSWORD" }, false},
		{"password_env", "not-valid", nil, true},
		{"use_agent", "true", func(s *config.ServerConfig) bool { return s.UseAgent }, false},
		{"use_agent", "maybe", nil, true},
		{"timeout", "30s", func(s *config.ServerConfig) bool { return s.Timeout == "30s" }, false},
		{"timeout", "1h", nil, true},
		{"host", "198.51.100.1", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			server := base()
			err := applyServerSetting(server, tt.key, tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("applyServerSetting(%s, %s) error = %v, wantErr %v", tt.key, tt.value, err, tt.wantErr)
			}
			if tt.check != nil && !tt.check(server) {
				t.Errorf("setting %s=%s not applied: %+v", tt.key, tt.value, server)
			}
		})
	}
}
