package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sweetstyle/opsrun/internal/config"
)

func TestFunctionTargets(t *testing.T) {
	projectDir := t.TempDir()
	for _, name := range []string{"send-email", "resize-image"} {
		dir := filepath.Join(projectDir, "supabase", "functions", name)
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "index.ts"), []byte("export {}"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	cfg := &config.ProjectConfig{Functions: config.FunctionsConfig{Dir: "supabase/functions"}}

	targets, err := functionTargets(cfg, projectDir, nil, true)
	if err != nil {
		t.Fatalf("functionTargets(--all) error = %v", err)
	}
	if len(targets) != 2 || targets[0].Name != "resize-image" || targets[1].Name != "send-email" {
		t.Errorf("targets = %+v", targets)
	}

	targets, err = functionTargets(cfg, projectDir, []string{"send-email"}, false)
	if err != nil {
		t.Fatalf("functionTargets(name) error = %v", err)
	}
	want := filepath.Join(projectDir, "supabase", "functions", "send-email", "index.ts")
	if len(targets) != 1 || targets[0].Path != want {
		t.Errorf("targets = %+v, want path %s", targets, want)
	}

	targets, err = functionTargets(&config.ProjectConfig{}, projectDir, []string{"hello", "hello.ts"}, false)
	if err != nil || targets[0].Path != "hello.ts" {
		t.Errorf("functionTargets(name, file) = %+v, %v", targets, err)
	}
}

func TestFunctionTargets_Errors(t *testing.T) {
	empty := &config.ProjectConfig{}
	cases := []struct {
		name string
		args []string
		all  bool
	}{
		{"nothing", nil, false},
		{"all without dir", nil, true},
		{"name without dir", []string{"hello"}, false},
		{"all with name", []string{"hello"}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := functionTargets(empty, t.TempDir(), c.args, c.all); err == nil {
				t.Error("expected error")
			}
		})
	}
}
