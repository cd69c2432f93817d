package cmd

import (
	"context"
	"strings"
	"testing"

	"github.com/sweetstyle/opsrun/internal/envfile"
	"github.com/sweetstyle/opsrun/internal/ssh"
)

func TestParseAssignments(t *testing.T) {
	vars, err := parseAssignments([]string{"PORT=3000", "DATABASE_URL=postgres://localhost/shop?sslmode=disable"}, false)
	if err != nil {
		t.Fatalf("parseAssignments() error = %v", err)
	}
	if vars["PORT"] != "3000" {
		t.Errorf("PORT = %q", vars["PORT"])
	}
	// only the first '=' separates key and value
	if vars["DATABASE_URL"] != "postgres://localhost/shop?sslmode=disable" {
		t.Errorf("DATABASE_URL = %q", vars["DATABASE_URL"])
	}

	if _, err := parseAssignments([]string{"JWT_SECRET"}, false); err == nil {
		t.Error("expected error for a bare key without --generate")
	}
	if _, err := parseAssignments([]string{"BAD-KEY=x"}, false); err == nil {
		t.Error("expected error for an invalid key")
	}

	vars, err = parseAssignments([]string{"JWT_SECRET"}, true)
	if err != nil {
		t.Fatalf("parseAssignments(--generate) error = %v", err)
	}
	if vars["JWT_SECRET"] == "" {
		t.Error("expected a generated secret")
	}
}

func TestRemoveKeys(t *testing.T) {
	vars := map[string]string{"A": "1", "B": "2"}
	out, err := removeKeys(vars, []string{"A"})
	if err != nil {
		t.Fatalf("removeKeys() error = %v", err)
	}
	if _, ok := out["A"]; ok || out["B"] != "2" {
		t.Errorf("removeKeys() = %v", out)
	}

	if _, err := removeKeys(map[string]string{"A": "1"}, []string{"MISSING"}); err == nil {
		t.Error("expected error for an unknown key")
	}
}

func TestRemoteEnvRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := "/var/www/backend/.env"
	mock := &ssh.MockExecutor{}

	if err := writeRemoteEnv(ctx, mock, path, map[string]string{"PORT": "3000", "DB_NAME": "shop"}); err != nil {
		t.Fatalf("writeRemoteEnv() error = %v", err)
	}
	written, ok := mock.Uploads[path]
	if !ok {
		t.Fatalf("nothing uploaded to %s", path)
	}
	if !strings.Contains(written, `PORT=3000`) && !strings.Contains(written, `PORT="3000"`) {
		t.Errorf("unexpected env content: %q", written)
	}

	mock.ExecFunc = func(ctx context.Context, command string) (*ssh.ExecResult, error) {
		return &ssh.ExecResult{Stdout: written}, nil
	}
	vars, err := readRemoteEnv(ctx, mock, path)
	if err != nil {
		t.Fatalf("readRemoteEnv() error = %v", err)
	}
	if vars["PORT"] != "3000" || vars["DB_NAME"] != "shop" {
		t.Errorf("readRemoteEnv() = %v", vars)
	}
	if got := mock.Commands[len(mock.Commands)-1]; got != envfile.ReadCommand(path) {
		t.Errorf("read command = %q", got)
	}
}

func TestReadRemoteEnv_Missing(t *testing.T) {
	vars, err := readRemoteEnv(context.Background(), &ssh.MockExecutor{}, "/var/www/backend/.env")
	if err != nil {
		t.Fatalf("readRemoteEnv() error = %v", err)
	}
	if len(vars) != 0 {
		t.Errorf("expected no variables, got %v", vars)
	}
}
