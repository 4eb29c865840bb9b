package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/baalimago/go_away_boilerplate/pkg/ancli"
	"github.com/klints/gmcli/internal/config"
)

// historyWindowUnset lets an explicit '-hw 0' (send everything) be told
// apart from the flag not being passed at all.
const historyWindowUnset = -1

type flagSet struct {
	chatModel     string
	baseURL       string
	historyWindow int
	printRaw      bool
}

func setupFlags() flagSet {
	cmShort := flag.String("cm", "", "Set the chat model to use. Mutually exclusive with chat-model flag.")
	cmLong := flag.String("chat-model", "", "Set the chat model to use. Mutually exclusive with cm flag.")

	baseURL := flag.String("url", "", "Set the base URL of the completion endpoint.")

	hwShort := flag.Int("hw", historyWindowUnset, "Cap how many of the most recent messages are sent per request. 0 sends the full conversation. Mutually exclusive with history-window flag.")
	hwLong := flag.Int("history-window", historyWindowUnset, "Cap how many of the most recent messages are sent per request. 0 sends the full conversation. Mutually exclusive with hw flag.")

	rawShort := flag.Bool("r", false, "Set to true to print without ansi colors.")
	rawLong := flag.Bool("raw", false, "Set to true to print without ansi colors.")

	flag.Usage = func() { fmt.Print(usage) }
	flag.Parse()

	chatModel, err := returnNonDefault(*cmShort, *cmLong, "")
	exitWithFlagError(err, "cm", "chat-model")
	historyWindow, err := returnNonDefault(*hwShort, *hwLong, historyWindowUnset)
	exitWithFlagError(err, "hw", "history-window")

	return flagSet{
		chatModel:     chatModel,
		baseURL:       *baseURL,
		historyWindow: historyWindow,
		printRaw:      *rawShort || *rawLong,
	}
}

// applyFlags onto the loaded config, flags win over file values.
func applyFlags(conf *config.Config, flags flagSet) {
	if flags.chatModel != "" {
		conf.Model = flags.chatModel
	}
	if flags.baseURL != "" {
		conf.BaseURL = flags.baseURL
	}
	if flags.historyWindow != historyWindowUnset {
		conf.HistoryWindow = flags.historyWindow
	}
	if flags.printRaw {
		conf.Raw = true
	}
}

func returnNonDefault[T comparable](a, b, defaultVal T) (T, error) {
	if a != defaultVal && b != defaultVal {
		return defaultVal, fmt.Errorf("values are mutually exclusive")
	}
	if a != defaultVal {
		return a, nil
	}
	return b, nil
}

func exitWithFlagError(err error, shortFlag, longFlag string) {
	if err != nil {
		ancli.PrintErr(fmt.Sprintf("flags: '%v' and '%v' are mutually exclusive, err: %v\n", shortFlag, longFlag, err))
		os.Exit(1)
	}
}
