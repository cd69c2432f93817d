package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	kfs "github.com/kr/fs"
	"github.com/pkg/sftp"
)

// FilePair maps a local file to its remote destination.
type FilePair struct {
	Local  string
	Remote string
}

// TransferStatus describes what happened to one file of a batch.
type TransferStatus int

const (
	TransferUploaded TransferStatus = iota
	TransferSkipped
	TransferFailed
)

func (s TransferStatus) String() string {
	switch s {
	case TransferUploaded:
		return "uploaded"
	case TransferSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// TransferEvent is reported once per file of a batch.
type TransferEvent struct {
	Pair   FilePair
	Status TransferStatus
	Bytes  int64
	Err    error
}

// TransferReport summarizes a batch.
type TransferReport struct {
	Uploaded []FilePair
	Skipped  []FilePair
	Bytes    int64
}

func (r *TransferReport) record(ev TransferEvent) {
	switch ev.Status {
	case TransferUploaded:
		r.Uploaded = append(r.Uploaded, ev.Pair)
		r.Bytes += ev.Bytes
	case TransferSkipped:
		r.Skipped = append(r.Skipped, ev.Pair)
	}
}

// sftpClient lazily opens the SFTP subsystem on the existing connection.
func (c *Client) sftpClient() (*sftp.Client, error) {
	if c.client == nil {
		return nil, ErrNotConnected
	}
	if c.sftp != nil {
		return c.sftp, nil
	}
	client, err := sftp.NewClient(c.client)
	if err != nil {
		return nil, &Error{Kind: FailureConnection, Op: "sftp", Addr: c.Addr(), Err: err}
	}
	c.sftp = client
	return client, nil
}

// Transfer copies one local file to remotePath, creating parent directories
// and keeping the local permission bits.
func (c *Client) Transfer(ctx context.Context, localPath, remotePath string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	src, err := os.Open(localPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open local file: %w", err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat local file: %w", err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory, use UploadDir", localPath)
	}

	return c.writeRemote(ctx, src, remotePath, info.Mode().Perm())
}

// UploadContent writes in-memory content to remotePath.
func (c *Client) UploadContent(ctx context.Context, content []byte, remotePath string, mode os.FileMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if mode == 0 {
		mode = 0644
	}
	_, err := c.writeRemote(ctx, bytes.NewReader(content), remotePath, mode)
	return err
}

func (c *Client) writeRemote(ctx context.Context, src io.Reader, remotePath string, mode os.FileMode) (int64, error) {
	client, err := c.sftpClient()
	if err != nil {
		return 0, err
	}

	if err := client.MkdirAll(path.Dir(remotePath)); err != nil {
		return 0, fmt.Errorf("failed to create remote directory %s: %w", path.Dir(remotePath), err)
	}

	dst, err := client.OpenFile(remotePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return 0, fmt.Errorf("failed to create remote file %s: %w", remotePath, err)
	}
	defer dst.Close()

	n, err := io.Copy(dst, &ctxReader{ctx: ctx, r: src})
	if err != nil {
		return n, fmt.Errorf("failed to copy to %s: %w", remotePath, err)
	}

	if err := dst.Chmod(mode); err != nil {
		return n, fmt.Errorf("failed to chmod %s: %w", remotePath, err)
	}
	return n, nil
}

// TransferBatch uploads pairs in order. A missing local file is skipped and
// reported; any other failure stops the batch and is returned together with
// the report so far.
func (c *Client) TransferBatch(ctx context.Context, pairs []FilePair, onEvent func(TransferEvent)) (*TransferReport, error) {
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

		n, err := c.Transfer(ctx, pair.Local, pair.Remote)
		if err != nil {
			emit(TransferEvent{Pair: pair, Status: TransferFailed, Bytes: n, Err: err})
			return report, fmt.Errorf("failed to transfer %s: %w", pair.Local, err)
		}
		emit(TransferEvent{Pair: pair, Status: TransferUploaded, Bytes: n})
	}

	return report, nil
}

// UploadDir uploads every regular file under localDir into remoteDir,
// keeping the relative layout.
func (c *Client) UploadDir(ctx context.Context, localDir, remoteDir string, onEvent func(TransferEvent)) (*TransferReport, error) {
	info, err := os.Stat(localDir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", localDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", localDir)
	}

	var pairs []FilePair
	walker := kfs.Walk(localDir)
	for walker.Step() {
		if err := walker.Err(); err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", localDir, err)
		}
		if !walker.Stat().Mode().IsRegular() {
			continue
		}
		rel, err := filepath.Rel(localDir, walker.Path())
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, FilePair{
			Local:  walker.Path(),
			Remote: path.Join(remoteDir, filepath.ToSlash(rel)),
		})
	}

	return c.TransferBatch(ctx, pairs, onEvent)
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
