package ssh

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/crypto/ssh"
)

// SSHKeyInfo contains information about an SSH key
type SSHKeyInfo struct {
	Path        string // Full path to the key file
	Name        string // Key filename (e.g., "id_ed25519")
	Type        string // Key type (e.g., "ed25519", "rsa", "ecdsa")
	Fingerprint string // SHA256 fingerprint, empty when the key is encrypted and carries no public part
	IsEncrypted bool   // True if key is passphrase-protected
}

// DiscoverSSHKeys scans ~/.ssh/ for private keys, ed25519 first.
func DiscoverSSHKeys() ([]SSHKeyInfo, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("cannot determine home directory: %w", err)
	}
	return discoverKeysIn(filepath.Join(homeDir, ".ssh"))
}

func discoverKeysIn(dir string) ([]SSHKeyInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var keys []SSHKeyInfo
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasSuffix(name, ".pub") {
			continue
		}
		if !strings.HasPrefix(name, "id_") && !strings.HasSuffix(name, ".pem") {
			continue
		}

		info, err := ValidateSSHKey(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		keys = append(keys, *info)
	}

	sort.SliceStable(keys, func(i, j int) bool {
		return keyTypePriority(keys[i].Type) < keyTypePriority(keys[j].Type)
	})

	return keys, nil
}

// keyTypePriority returns sort priority for key types (lower is better)
func keyTypePriority(keyType string) int {
	switch keyType {
	case "ed25519":
		return 1
	case "rsa":
		return 2
	case "ecdsa":
		return 3
	default:
		return 4
	}
}

// ValidateSSHKey parses a key file and returns its info. Passphrase-protected
// keys are accepted and flagged.
func ValidateSSHKey(path string) (*SSHKeyInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	info := &SSHKeyInfo{
		Path: path,
		Name: filepath.Base(path),
	}

	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if !errors.As(err, &missing) {
			return nil, fmt.Errorf("invalid SSH key: %w", err)
		}
		info.IsEncrypted = true
		if missing.PublicKey != nil {
			info.Type = normalizeKeyType(missing.PublicKey.Type())
			info.Fingerprint = ssh.FingerprintSHA256(missing.PublicKey)
		} else {
			info.Type = detectKeyType(data)
		}
		return info, nil
	}

	info.Type = normalizeKeyType(signer.PublicKey().Type())
	info.Fingerprint = ssh.FingerprintSHA256(signer.PublicKey())
	return info, nil
}

// normalizeKeyType maps an SSH wire key type to its short name.
func normalizeKeyType(wireType string) string {
	switch {
	case wireType == ssh.KeyAlgoED25519:
		return "ed25519"
	case wireType == ssh.KeyAlgoRSA:
		return "rsa"
	case strings.HasPrefix(wireType, "ecdsa-"):
		return "ecdsa"
	case strings.Contains(wireType, "dss"):
		return "dsa"
	default:
		return "unknown"
	}
}

// detectKeyType guesses the key type from the PEM header of legacy keys.
func detectKeyType(data []byte) string {
	content := string(data)
	switch {
	case strings.Contains(content, "RSA PRIVATE KEY"):
		return "rsa"
	case strings.Contains(content, "EC PRIVATE KEY"):
		return "ecdsa"
	case strings.Contains(content, "DSA PRIVATE KEY"):
		return "dsa"
	case strings.Contains(content, "OPENSSH PRIVATE KEY"):
		// modern default
		return "ed25519"
	default:
		return "unknown"
	}
}

// TryConnect connects and disconnects once, returning the classified failure
// if the server cannot be reached or rejects the credentials.
func TryConnect(ctx context.Context, host, user string, port int, keyPath string, opts ...ClientOption) error {
	client := NewClient(host, user, port, keyPath, opts...)
	if err := client.Connect(ctx); err != nil {
		return err
	}
	return client.Close()
}
