package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/baalimago/go_away_boilerplate/pkg/ancli"
	"github.com/baalimago/go_away_boilerplate/pkg/debug"
	"github.com/baalimago/go_away_boilerplate/pkg/misc"
	"github.com/google/uuid"
	"github.com/klints/gmcli/internal/config"
	"github.com/klints/gmcli/internal/gemini"
	"github.com/klints/gmcli/internal/models"
)

// exitKeyword ends the session. Exact, case-sensitive match.
const exitKeyword = "exit"

// Session runs the interactive chat loop. It owns the conversation;
// nothing else holds a reference to it across calls.
type Session struct {
	model         string
	baseURL       string
	historyWindow int
	confDir       string
	sender        models.Sender
	conv          models.Conversation
	input         *bufio.Reader
	transcriptID  string
	raw           bool
	debug         bool
}

func New(conf config.Config, confDir string, sender models.Sender, input io.Reader) *Session {
	return &Session{
		model:         conf.Model,
		baseURL:       conf.BaseURL,
		historyWindow: conf.HistoryWindow,
		confDir:       confDir,
		sender:        sender,
		input:         bufio.NewReader(input),
		transcriptID:  uuid.NewString(),
		raw:           conf.Raw,
		debug:         misc.Truthy(os.Getenv("DEBUG")),
	}
}

func (s *Session) userPrefix() string {
	if s.raw {
		return "You"
	}
	return ancli.ColoredMessage(ancli.CYAN, "You")
}

func (s *Session) aiPrefix() string {
	if s.raw {
		return "AI"
	}
	return ancli.ColoredMessage(ancli.MAGENTA, "AI")
}

// History returns a snapshot of the conversation so far.
func (s *Session) History() []models.Message {
	return s.conv.Messages()
}

// Run blocks on user input, exchanges each line with the completion
// endpoint and prints the reply, until the exit keyword, EOF or
// context cancellation. Failed exchanges are reported and the loop
// continues; the unanswered user turn stays in history so the model
// still sees it on the next request.
func (s *Session) Run(ctx context.Context) error {
	defer s.saveTranscript()
	for {
		fmt.Printf("%v: ", s.userPrefix())
		line, err := s.input.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Println()
				return nil
			}
			return fmt.Errorf("failed to read user input: %w", err)
		}
		if ctx.Err() != nil {
			return nil
		}
		userInput := strings.TrimRight(line, "\r\n")
		if userInput == exitKeyword {
			ancli.Okf("Bye bye!\n")
			return nil
		}
		if strings.TrimSpace(userInput) == "" {
			continue
		}

		s.conv.Append(models.Message{Role: models.RoleUser, Content: userInput})
		reply, err := s.exchange(ctx)
		if err != nil {
			ancli.PrintErr(fmt.Sprintf("exchange failed: %v\n", err))
			continue
		}
		s.conv.Append(models.Message{Role: models.RoleAssistant, Content: reply})
		fmt.Printf("%v: %v\n", s.aiPrefix(), reply)
	}
}

func (s *Session) exchange(ctx context.Context) (string, error) {
	window := s.windowedHistory()
	body, err := gemini.EncodeRequest(window)
	if err != nil {
		return "", fmt.Errorf("failed to encode completion request: %w", err)
	}
	respBody, err := s.sender.Send(ctx, gemini.RequestURL(s.baseURL, s.model), body)
	if err != nil {
		return "", err
	}
	reply, err := gemini.DecodeResponse(respBody)
	if err != nil {
		if s.debug {
			ancli.PrintWarn(fmt.Sprintf("undecodable response body (on new line):\n%v\n", string(respBody)))
		}
		return "", err
	}
	return reply, nil
}

// windowedHistory trims what gets sent, never what gets stored. With
// window 0 the full conversation goes out every time.
func (s *Session) windowedHistory() []models.Message {
	msgs := s.conv.Messages()
	if s.historyWindow <= 0 || len(msgs) <= s.historyWindow {
		return msgs
	}
	return msgs[len(msgs)-s.historyWindow:]
}

func (s *Session) saveTranscript() {
	if s.conv.Len() == 0 || s.confDir == "" {
		return
	}
	chat := models.Chat{ID: s.transcriptID, Messages: s.conv.Messages()}
	path := filepath.Join(s.confDir, "conversations", chat.ID+".json")
	if err := config.CreateFile(path, &chat); err != nil {
		ancli.PrintWarn(fmt.Sprintf("failed to save conversation: %v\n", err))
		return
	}
	if s.debug {
		ancli.PrintOK(fmt.Sprintf("saved conversation to '%v', content: %v\n", path, debug.IndentedJsonFmt(chat)))
	}
}
