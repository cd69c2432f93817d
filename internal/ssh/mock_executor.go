package ssh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// MockExecutor is a test double that records commands and uploads and returns configured results.
type MockExecutor struct {
	ExecFunc          func(ctx context.Context, command string) (*ExecResult, error)
	TransferFunc      func(ctx context.Context, localPath, remotePath string) (int64, error)
	UploadContentFunc func(ctx context.Context, content []byte, remotePath string, mode os.FileMode) error

	Commands  []string
	Transfers []FilePair
	Uploads   map[string]string
	Closed    bool
}

var _ Executor = (*MockExecutor)(nil)

// Exec records the command and delegates to ExecFunc.
func (m *MockExecutor) Exec(ctx context.Context, command string) (*ExecResult, error) {
	m.Commands = append(m.Commands, command)
	if m.ExecFunc != nil {
		return m.ExecFunc(ctx, command)
	}
	return &ExecResult{}, nil
}

// ExecStream behaves like Exec and writes the captured stdout to w.
func (m *MockExecutor) ExecStream(ctx context.Context, command string, w io.Writer) (*ExecResult, error) {
	result, err := m.Exec(ctx, command)
	if w != nil && result != nil && result.Stdout != "" {
		fmt.Fprint(w, result.Stdout)
	}
	return result, err
}

// Transfer records the pair and delegates to TransferFunc.
func (m *MockExecutor) Transfer(ctx context.Context, localPath, remotePath string) (int64, error) {
	m.Transfers = append(m.Transfers, FilePair{Local: localPath, Remote: remotePath})
	if m.TransferFunc != nil {
		return m.TransferFunc(ctx, localPath, remotePath)
	}
	return 0, nil
}

// TransferBatch runs Transfer for each pair with the same rules as Client:
// missing local files are skipped, any other stat or transfer error stops
// the batch.
func (m *MockExecutor) TransferBatch(ctx context.Context, pairs []FilePair, onEvent func(TransferEvent)) (*TransferReport, error) {
	report := &TransferReport{}
	emit := func(ev TransferEvent) {
		report.record(ev)
		if onEvent != nil {
			onEvent(ev)
		}
	}

	for _, pair := range pairs {
		if _, err := os.Stat(pair.Local); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				emit(TransferEvent{Pair: pair, Status: TransferSkipped, Err: err})
				continue
			}
			emit(TransferEvent{Pair: pair, Status: TransferFailed, Err: err})
			return report, fmt.Errorf("failed to stat %s: %w", pair.Local, err)
		}

		n, err := m.Transfer(ctx, pair.Local, pair.Remote)
		if err != nil {
			emit(TransferEvent{Pair: pair, Status: TransferFailed, Bytes: n, Err: err})
			return report, fmt.Errorf("failed to transfer %s: %w", pair.Local, err)
		}
		emit(TransferEvent{Pair: pair, Status: TransferUploaded, Bytes: n})
	}
	return report, nil
}

// UploadDir records a single pair for the whole directory.
func (m *MockExecutor) UploadDir(ctx context.Context, localDir, remoteDir string, onEvent func(TransferEvent)) (*TransferReport, error) {
	pair := FilePair{Local: localDir, Remote: remoteDir}
	m.Transfers = append(m.Transfers, pair)
	ev := TransferEvent{Pair: pair, Status: TransferUploaded}
	if onEvent != nil {
		onEvent(ev)
	}
	report := &TransferReport{}
	report.record(ev)
	return report, nil
}

// UploadContent stores the content under its remote path.
func (m *MockExecutor) UploadContent(ctx context.Context, content []byte, remotePath string, mode os.FileMode) error {
	if m.Uploads == nil {
		m.Uploads = make(map[string]string)
	}
	m.Uploads[remotePath] = string(content)
	if m.UploadContentFunc != nil {
		return m.UploadContentFunc(ctx, content, remotePath, mode)
	}
	return nil
}

// Close marks the mock closed.
func (m *MockExecutor) Close() error {
	m.Closed = true
	return nil
}
