// Package functions deploys edge functions through the hosting provider's
// management API.
package functions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/sweetstyle/opsrun/internal/constants"
)

// DefaultEntrypoint is the source file read for each function directory.
const DefaultEntrypoint = "index.ts"

const maxErrorBody = 4 << 10

var nameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,62}$`)

// Function is one deployable function.
type Function struct {
	Name      string `json:"name"`
	Body      string `json:"body"`
	VerifyJWT bool   `json:"verify_jwt"`
}

// APIError is returned for any non-success response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("function deploy failed: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("function deploy failed: HTTP %d: %s", e.StatusCode, e.Body)
}

// Client talks to the management API.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewClient returns a client for the public API.
func NewClient(token string) *Client {
	return &Client{
		BaseURL:    constants.FunctionsAPIBaseURL,
		Token:      token,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// NewClientFromEnv reads the access token from the named environment
// variable.
func NewClientFromEnv(tokenEnv string) (*Client, error) {
	if tokenEnv == "" {
		tokenEnv = constants.EnvFunctionsToken
	}
	token := os.Getenv(tokenEnv)
	if token == "" {
		return nil, fmt.Errorf("%s is not set: create an access token in the dashboard and export it", tokenEnv)
	}
	return NewClient(token), nil
}

// Deploy uploads fn and returns its invoke URL.
func (c *Client) Deploy(ctx context.Context, projectRef string, fn Function) (string, error) {
	if c.Token == "" {
		return "", fmt.Errorf("access token is required")
	}
	if projectRef == "" {
		return "", fmt.Errorf("project ref is required")
	}
	if err := ValidateName(fn.Name); err != nil {
		return "", err
	}

	payload, err := json.Marshal(fn)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	base := c.BaseURL
	if base == "" {
		base = constants.FunctionsAPIBaseURL
	}
	endpoint := fmt.Sprintf("%s/v1/projects/%s/functions/%s",
		strings.TrimRight(base, "/"), url.PathEscape(projectRef), url.PathEscape(fn.Name))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Content-Type", "application/json")

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call function API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	return InvokeURL(projectRef, fn.Name), nil
}

// InvokeURL returns the public URL of a deployed function.
func InvokeURL(projectRef, name string) string {
	return fmt.Sprintf("https://%s%s/functions/v1/%s", projectRef, constants.FunctionsHostSuffix, name)
}

// ValidateName checks a function name.
func ValidateName(name string) error {
	if !nameRegex.MatchString(name) {
		return fmt.Errorf("invalid function name %q: use lowercase letters, numbers, hyphens and underscores", name)
	}
	return nil
}

// Load reads a function body from file.
func Load(name, path string, verifyJWT bool) (Function, error) {
	if err := ValidateName(name); err != nil {
		return Function{}, err
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return Function{}, fmt.Errorf("failed to read function %s: %w", name, err)
	}
	return Function{Name: name, Body: string(body), VerifyJWT: verifyJWT}, nil
}

// Discover lists function directories under dir that contain an entrypoint,
// sorted by name.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read functions directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() || ValidateName(e.Name()) != nil {
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, e.Name(), DefaultEntrypoint)); err == nil {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
