package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"reflect"

	"github.com/baalimago/go_away_boilerplate/pkg/ancli"
	"github.com/baalimago/go_away_boilerplate/pkg/misc"
)

const configFileName = "gmcliConfig.json"

// Config holds the chat settings. Zero fields are backfilled from
// Default on load, so configs written by older versions keep working
// after new fields are added.
type Config struct {
	Model          string `json:"model"`
	BaseURL        string `json:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	// HistoryWindow caps how many of the most recent messages are sent
	// per request. 0 means the full conversation is sent every time.
	HistoryWindow int  `json:"history_window"`
	Raw           bool `json:"raw"`
}

var Default = Config{
	Model:          "gemini-2.5-flash",
	BaseURL:        "https://generativelanguage.googleapis.com/v1beta/models",
	TimeoutSeconds: 30,
	HistoryWindow:  0,
	Raw:            false,
}

// Dir returns the path to the gmcli configuration directory,
// <UserConfigDir>/gmcli unless overridden by GMCLI_CONFIG_HOME.
func Dir() (string, error) {
	if configHome := os.Getenv("GMCLI_CONFIG_HOME"); configHome != "" {
		return configHome, nil
	}
	cfg, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return path.Join(cfg, "gmcli"), nil
}

// EnsureDir creates the config directory and its conversations
// subdirectory if either is missing.
func EnsureDir(configDir string) error {
	conversationsDir := filepath.Join(configDir, "conversations")
	if err := os.MkdirAll(conversationsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return nil
}

// Load reads the settings file from configDir, creating it with
// defaults on first run.
func Load(configDir string) (Config, error) {
	configPath := filepath.Join(configDir, configFileName)
	if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
		if err := CreateFile(configPath, &Default); err != nil {
			return Config{}, fmt.Errorf("failed to create default config: %w", err)
		}
		if misc.Truthy(os.Getenv("DEBUG")) {
			ancli.PrintOK(fmt.Sprintf("created default config at: '%v'\n", configPath))
		}
	}

	var conf Config
	if err := ReadAndUnmarshal(configPath, &conf); err != nil {
		return Config{}, fmt.Errorf("failed to load config '%v': %w", configFileName, err)
	}

	if setZeroValueFields(&conf, &Default) {
		if err := CreateFile(configPath, &conf); err != nil {
			return conf, fmt.Errorf("failed to update config post zero-field backfill: %w", err)
		}
		if misc.Truthy(os.Getenv("DEBUG")) {
			ancli.PrintOK(fmt.Sprintf("appended new fields to config file: '%v'\n", configPath))
		}
	}

	if misc.Truthy(os.Getenv("DEBUG")) {
		ancli.PrintOK(fmt.Sprintf("found config: %+v\n", conf))
	}
	return conf, nil
}

// setZeroValueFields on a using b as template, reporting whether any
// field changed.
func setZeroValueFields[T any](a, b *T) bool {
	hasChanged := false
	t := reflect.TypeOf(*a)
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		aVal := reflect.ValueOf(a).Elem().FieldByName(f.Name)
		bVal := reflect.ValueOf(b).Elem().FieldByName(f.Name)
		if f.IsExported() && aVal.IsZero() && !bVal.IsZero() {
			hasChanged = true
			aVal.Set(bVal)
		}
	}
	return hasChanged
}
