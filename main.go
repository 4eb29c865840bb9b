package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/baalimago/go_away_boilerplate/pkg/ancli"
	"github.com/baalimago/go_away_boilerplate/pkg/misc"
	"github.com/baalimago/go_away_boilerplate/pkg/shutdown"
	"github.com/klints/gmcli/internal/config"
	"github.com/klints/gmcli/internal/gemini"
	"github.com/klints/gmcli/internal/session"
)

const usage = `gmcli - (g)e(m)ini (c)ommand (l)ine (i)nterface

Prerequisites:
  - A Gemini API key. You'll be prompted for one on first run, it's then
    stored in the gmcli config directory as 'credentials'.
  - (Optional) Set the NO_COLOR environment variable to disable ansi color output
  - (Optional) Set the GMCLI_CONFIG_HOME environment variable to relocate the config directory

Usage: gmcli [flags]

Flags:
  -cm, -chat-model string      Set the chat model to use. (default is found in gmcliConfig.json)
  -url string                  Set the base URL of the completion endpoint. (default is found in gmcliConfig.json)
  -hw, -history-window int     Cap how many of the most recent messages are sent per request. 0 sends the full conversation.
  -r, -raw bool                Set to true to print without ansi colors. (default false)

Once the chat is running, type a message and press enter. Type 'exit' to quit.
`

func main() {
	ancli.SetupSlog()
	flags := setupFlags()

	configDir, err := config.Dir()
	if err != nil {
		ancli.Errf("failed to find config dir path: %v", err)
		os.Exit(1)
	}
	if err := config.EnsureDir(configDir); err != nil {
		ancli.Errf("failed to create config dir: %v", err)
		os.Exit(1)
	}
	conf, err := config.Load(configDir)
	if err != nil {
		ancli.Errf("failed to load config: %v", err)
		os.Exit(1)
	}
	applyFlags(&conf, flags)

	stdin := bufio.NewReader(os.Stdin)
	apiKey, err := setupCredential(configDir, stdin)
	if err != nil {
		ancli.PrintErr(fmt.Sprintf("failed to setup credential: %v\n", err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() { shutdown.Monitor(cancel) }()

	client := gemini.NewClient(apiKey, time.Duration(conf.TimeoutSeconds)*time.Second)
	sess := session.New(conf, configDir, client, stdin)
	if err := sess.Run(ctx); err != nil {
		ancli.PrintErr(fmt.Sprintf("failed to run chat session: %v\n", err))
		os.Exit(1)
	}
	cancel()
	if misc.Truthy(os.Getenv("DEBUG")) {
		ancli.PrintOK("things seems to have worked out. Bye bye! 🚀\n")
	}
}
