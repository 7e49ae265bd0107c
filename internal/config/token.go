package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const tokenEnv = "IMPROVER_API_TOKEN"

// EnsureToken returns the API token used by the HTTP surface. The
// IMPROVER_API_TOKEN environment variable wins; otherwise the token is
// read from <dataDir>/token, generated and persisted with 0600 on first
// use.
func EnsureToken(dataDir string) (string, error) {
	if tok := os.Getenv(tokenEnv); tok != "" {
		return tok, nil
	}

	path := filepath.Join(dataDir, "token")
	data, err := os.ReadFile(path)
	if err == nil {
		if tok := strings.TrimSpace(string(data)); tok != "" {
			return tok, nil
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("reading token file %s: %w", path, err)
	}

	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return "", fmt.Errorf("creating data dir: %w", err)
	}
	tok := uuid.New().String()
	if err := os.WriteFile(path, []byte(tok+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("writing token file %s: %w", path, err)
	}
	return tok, nil
}
