package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/baalimago/go_away_boilerplate/pkg/ancli"
	"github.com/klints/gmcli/internal/config"
	"golang.org/x/term"
)

// setupCredential loads the stored API key, prompting for it and
// persisting it on first run. A failed save is returned as an error
// since there's no point chatting with a key which won't survive the
// process.
func setupCredential(configDir string, stdin *bufio.Reader) (string, error) {
	apiKey, err := config.LoadCredential(configDir)
	if err == nil {
		return apiKey, nil
	}
	if !errors.Is(err, config.ErrNoCredential) {
		return "", fmt.Errorf("failed to load credential: %w", err)
	}

	apiKey, err = promptForKey(stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read API key: %w", err)
	}
	if err := config.SaveCredential(configDir, apiKey); err != nil {
		return "", fmt.Errorf("failed to persist API key: %w", err)
	}
	ancli.PrintOK(fmt.Sprintf("stored API key in: '%v'\n", configDir))
	return apiKey, nil
}

func promptForKey(stdin *bufio.Reader) (string, error) {
	fmt.Print("Enter your Gemini API key: ")
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		return validateKey(string(b))
	}
	line, err := stdin.ReadString('\n')
	if err != nil {
		return "", err
	}
	return validateKey(line)
}

func validateKey(raw string) (string, error) {
	apiKey := strings.TrimSpace(raw)
	if apiKey == "" {
		return "", errors.New("API key can't be empty")
	}
	return apiKey, nil
}
