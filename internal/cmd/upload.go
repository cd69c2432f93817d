package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/sweetstyle/opsrun/internal/deploy"
	"github.com/sweetstyle/opsrun/internal/security"
	"github.com/sweetstyle/opsrun/internal/ssh"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <server> [local:remote]...",
	Short: "Upload files to a server over SFTP",
	Long: `Uploads each local file to its remote path. Missing local files are
reported and skipped; every other file is still uploaded.

Example:
  opsrun upload prod server.js:/var/www/backend/server.js routes/auth.js:/var/www/backend/routes/auth.js
  opsrun upload prod --dir dist:/var/www/app/dist`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

var uploadDirs []string

func init() {
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.Flags().StringArrayVar(&uploadDirs, "dir", nil, "Upload a directory tree (local:remote), repeatable")
}

// parsePair parses local:remote. The last colon separates the two.
func parsePair(spec string) (ssh.FilePair, error) {
	i := strings.LastIndex(spec, ":")
	if i <= 0 || i == len(spec)-1 {
		return ssh.FilePair{}, fmt.Errorf("invalid %q, use local:remote", spec)
	}
	pair := ssh.FilePair{Local: spec[:i], Remote: spec[i+1:]}
	if err := security.ValidateRemotePath(pair.Remote); err != nil {
		return ssh.FilePair{}, fmt.Errorf("invalid remote path %q: %w", pair.Remote, err)
	}
	return pair, nil
}

func parsePairs(specs []string) ([]ssh.FilePair, error) {
	pairs := make([]ssh.FilePair, 0, len(specs))
	for _, s := range specs {
		p, err := parsePair(s)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, nil
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	serverName, err := serverArg(args[:1])
	if err != nil {
		return err
	}
	files, err := parsePairs(args[1:])
	if err != nil {
		return err
	}
	dirs, err := parsePairs(uploadDirs)
	if err != nil {
		return err
	}
	rb, err := deploy.FilesRunbook(files, dirs)
	if err != nil {
		return err
	}

	conn, err := connectServer(ctx, serverName)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = runRunbook(ctx, conn.Client, rb)
	return err
}
