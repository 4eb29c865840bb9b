package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio"
)

const (
	credentialsFileName = "credentials"
	credentialKey       = "API_KEY"
)

// ErrNoCredential is the expected first-run state: no credentials file,
// or one without a usable key. Callers recover by prompting the user
// and calling SaveCredential.
var ErrNoCredential = errors.New("no credential found")

func credentialsPath(configDir string) string {
	return filepath.Join(configDir, credentialsFileName)
}

// LoadCredential reads the API key from the credentials file inside
// configDir. The file holds a single 'API_KEY=<value>' line.
func LoadCredential(configDir string) (string, error) {
	b, err := os.ReadFile(credentialsPath(configDir))
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrNoCredential
	}
	if err != nil {
		return "", fmt.Errorf("failed to read credentials file: %w", err)
	}
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		val, found := strings.CutPrefix(line, credentialKey+"=")
		if !found {
			return "", fmt.Errorf("malformed credentials file, expected '%v=<value>', got: '%v'", credentialKey, line)
		}
		if val == "" {
			return "", ErrNoCredential
		}
		return val, nil
	}
	return "", ErrNoCredential
}

// SaveCredential persists the API key. The write is atomic via rename,
// so a crash mid-write never corrupts a previously stored key.
func SaveCredential(configDir, key string) error {
	content := fmt.Sprintf("%v=%v\n", credentialKey, key)
	err := renameio.WriteFile(credentialsPath(configDir), []byte(content), 0o600)
	if err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}
	return nil
}
