package ssh

import (
	"context"
	"io"
	"os"
)

// Executor abstracts remote command execution and file transfer for testability.
type Executor interface {
	Exec(ctx context.Context, command string) (*ExecResult, error)
	ExecStream(ctx context.Context, command string, w io.Writer) (*ExecResult, error)
	Transfer(ctx context.Context, localPath, remotePath string) (int64, error)
	TransferBatch(ctx context.Context, pairs []FilePair, onEvent func(TransferEvent)) (*TransferReport, error)
	UploadDir(ctx context.Context, localDir, remoteDir string, onEvent func(TransferEvent)) (*TransferReport, error)
	UploadContent(ctx context.Context, content []byte, remotePath string, mode os.FileMode) error
	Close() error
}

var _ Executor = (*Client)(nil)
