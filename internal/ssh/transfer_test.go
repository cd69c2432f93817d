package ssh

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestTransfer(t *testing.T) {
	srv := newTestServer(t, echoHandler)
	client, err := srv.dial(t, testPassword)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	local := filepath.Join(t.TempDir(), "server.js")
	if err := os.WriteFile(local, []byte("console.log('hi')\n"), 0640); err != nil {
		t.Fatal(err)
	}
	remote := filepath.Join(t.TempDir(), "backend", "nested", "server.js")

	n, err := client.Transfer(context.Background(), local, remote)
	if err != nil {
		t.Fatalf("Transfer() error = %v", err)
	}
	if n != int64(len("console.log('hi')\n")) {
		t.Errorf("Transfer() wrote %d bytes", n)
	}

	got, err := os.ReadFile(remote)
	if err != nil {
		t.Fatalf("remote file missing: %v", err)
	}
	if string(got) != "console.log('hi')\n" {
		t.Errorf("remote content = %q", got)
	}
	info, err := os.Stat(remote)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0640 {
		t.Errorf("remote mode = %v, want 0640", info.Mode().Perm())
	}
}

func TestTransferBatch_SkipsMissing(t *testing.T) {
	srv := newTestServer(t, echoHandler)
	client, err := srv.dial(t, testPassword)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	localDir := t.TempDir()
	remoteDir := t.TempDir()
	for _, name := range []string{"a.js", "c.js"} {
		if err := os.WriteFile(filepath.Join(localDir, name), []byte(name), 0644); err != nil {
			t.Fatal(err)
		}
	}

	pairs := []FilePair{
		{Local: filepath.Join(localDir, "a.js"), Remote: filepath.Join(remoteDir, "a.js")},
		{Local: filepath.Join(localDir, "b.js"), Remote: filepath.Join(remoteDir, "b.js")},
		{Local: filepath.Join(localDir, "c.js"), Remote: filepath.Join(remoteDir, "c.js")},
	}

	var events []TransferEvent
	report, err := client.TransferBatch(context.Background(), pairs, func(ev TransferEvent) {
		events = append(events, ev)
	})
	if err != nil {
		t.Fatalf("TransferBatch() error = %v", err)
	}

	if len(events) != 3 {
		t.Fatalf("expected an event per pair, got %d", len(events))
	}
	if events[1].Status != TransferSkipped {
		t.Errorf("missing file status = %v, want skipped", events[1].Status)
	}
	if len(report.Uploaded) != 2 || len(report.Skipped) != 1 {
		t.Errorf("report uploaded=%d skipped=%d, want 2/1", len(report.Uploaded), len(report.Skipped))
	}
	for _, name := range []string{"a.js", "c.js"} {
		if _, err := os.Stat(filepath.Join(remoteDir, name)); err != nil {
			t.Errorf("%s was not transferred: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(remoteDir, "b.js")); !os.IsNotExist(err) {
		t.Error("b.js should not exist remotely")
	}
}

func TestUploadDir(t *testing.T) {
	srv := newTestServer(t, echoHandler)
	client, err := srv.dial(t, testPassword)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	dist := t.TempDir()
	files := map[string]string{
		"index.html":          "<html></html>",
		"assets/app.js":       "app()",
		"assets/img/logo.svg": "<svg/>",
	}
	for rel, content := range files {
		p := filepath.Join(dist, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	remote := filepath.Join(t.TempDir(), "dist")
	report, err := client.UploadDir(context.Background(), dist, remote, nil)
	if err != nil {
		t.Fatalf("UploadDir() error = %v", err)
	}
	if len(report.Uploaded) != len(files) {
		t.Errorf("uploaded %d files, want %d", len(report.Uploaded), len(files))
	}
	for rel, content := range files {
		got, err := os.ReadFile(filepath.Join(remote, filepath.FromSlash(rel)))
		if err != nil {
			t.Errorf("%s missing remotely: %v", rel, err)
			continue
		}
		if string(got) != content {
			t.Errorf("%s content = %q, want %q", rel, got, content)
		}
	}
}

func TestUploadDir_NotADirectory(t *testing.T) {
	client := NewClient("host", "user", 22, "")
	file := filepath.Join(t.TempDir(), "f")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := client.UploadDir(context.Background(), file, "/tmp/x", nil); err == nil {
		t.Error("expected an error for a file argument")
	}
}

func TestUploadContent(t *testing.T) {
	srv := newTestServer(t, echoHandler)
	client, err := srv.dial(t, testPassword)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	remote := filepath.Join(t.TempDir(), "app", ".env")
	if err := client.UploadContent(context.Background(), []byte("PORT=3000\n"), remote, 0600); err != nil {
		t.Fatalf("UploadContent() error = %v", err)
	}

	got, err := os.ReadFile(remote)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "PORT=3000\n" {
		t.Errorf("content = %q", got)
	}
	info, _ := os.Stat(remote)
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestTransfer_NotConnected(t *testing.T) {
	client := NewClient("host", "user", 22, "")
	local := filepath.Join(t.TempDir(), "f")
	if err := os.WriteFile(local, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := client.Transfer(context.Background(), local, "/tmp/f"); err == nil {
		t.Error("expected an error without a connection")
	}
}

func TestMockExecutor_TransferBatch(t *testing.T) {
	local := filepath.Join(t.TempDir(), "present.js")
	if err := os.WriteFile(local, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	mock := &MockExecutor{}
	report, err := mock.TransferBatch(context.Background(), []FilePair{
		{Local: local, Remote: "/r/present.js"},
		{Local: "/does/not/exist.js", Remote: "/r/exist.js"},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Uploaded) != 1 || len(report.Skipped) != 1 {
		t.Errorf("report = %+v", report)
	}
	if len(mock.Transfers) != 1 {
		t.Errorf("mock recorded %d transfers, want 1", len(mock.Transfers))
	}
}

func TestMockExecutor_TransferBatch_StatErrorStops(t *testing.T) {
	local := filepath.Join(t.TempDir(), "present.js")
	if err := os.WriteFile(local, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	// a path below a regular file fails with ENOTDIR, not ErrNotExist
	mock := &MockExecutor{}
	report, err := mock.TransferBatch(context.Background(), []FilePair{
		{Local: filepath.Join(local, "child.js"), Remote: "/r/child.js"},
		{Local: local, Remote: "/r/present.js"},
	}, nil)
	if err == nil {
		t.Fatal("expected the batch to stop on a stat error")
	}
	if len(report.Uploaded) != 0 || len(report.Skipped) != 0 {
		t.Errorf("report = %+v", report)
	}
	if len(mock.Transfers) != 0 {
		t.Errorf("mock recorded %d transfers after the failure, want 0", len(mock.Transfers))
	}
}
