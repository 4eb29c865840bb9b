package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/baalimago/go_away_boilerplate/pkg/testboil"
	"github.com/klints/gmcli/internal/config"
	"github.com/klints/gmcli/internal/gemini"
	"github.com/klints/gmcli/internal/models"
)

type senderFunc func(ctx context.Context, url string, body []byte) ([]byte, error)

func (f senderFunc) Send(ctx context.Context, url string, body []byte) ([]byte, error) {
	return f(ctx, url, body)
}

func replyWith(text string) senderFunc {
	return func(ctx context.Context, url string, body []byte) ([]byte, error) {
		resp := fmt.Sprintf(`{"candidates":[{"content":{"role":"model","parts":[{"text":%q}]}}]}`, text)
		return []byte(resp), nil
	}
}

func newTestSession(t *testing.T, sender models.Sender, input string) *Session {
	t.Helper()
	confDir := t.TempDir()
	if err := config.EnsureDir(confDir); err != nil {
		t.Fatalf("EnsureDir: %v", err)
	}
	conf := config.Default
	return New(conf, confDir, sender, strings.NewReader(input))
}

func TestRunExitFirstInput(t *testing.T) {
	s := newTestSession(t, replyWith("should never be sent"), "exit\n")
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := len(s.History()); got != 0 {
		t.Fatalf("expected empty conversation, got %v messages", got)
	}
}

func TestRunExitIsCaseSensitive(t *testing.T) {
	calls := 0
	s := newTestSession(t, senderFunc(func(ctx context.Context, url string, body []byte) ([]byte, error) {
		calls++
		return []byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`), nil
	}), "EXIT\nexit\n")
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 'EXIT' to be sent as a regular message, got %v calls", calls)
	}
}

func TestRunSingleExchange(t *testing.T) {
	s := newTestSession(t, replyWith("Hi there"), "Hello\nexit\n")

	got := testboil.CaptureStdout(t, func(t *testing.T) {
		t.Helper()
		if err := s.Run(context.Background()); err != nil {
			t.Fatalf("Run: %v", err)
		}
	})

	testboil.AssertStringContains(t, got, "Hi there")
	history := s.History()
	if len(history) != 2 {
		t.Fatalf("expected 2 messages, got %v: %+v", len(history), history)
	}
	testboil.FailTestIfDiff(t, history[0].Role, models.RoleUser)
	testboil.FailTestIfDiff(t, history[0].Content, "Hello")
	testboil.FailTestIfDiff(t, history[1].Role, models.RoleAssistant)
	testboil.FailTestIfDiff(t, history[1].Content, "Hi there")
}

func TestRunAlternatingRolesAfterSeveralExchanges(t *testing.T) {
	s := newTestSession(t, replyWith("ack"), "one\ntwo\nthree\nexit\n")
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	history := s.History()
	if len(history) != 6 {
		t.Fatalf("expected 6 messages after 3 exchanges, got %v", len(history))
	}
	for i, msg := range history {
		want := models.RoleUser
		if i%2 == 1 {
			want = models.RoleAssistant
		}
		testboil.FailTestIfDiff(t, msg.Role, want)
	}
}

func TestRunTransportErrorKeepsUserTurn(t *testing.T) {
	s := newTestSession(t, senderFunc(func(ctx context.Context, url string, body []byte) ([]byte, error) {
		return nil, fmt.Errorf("%w: connection refused", gemini.ErrUnreachable)
	}), "Hello\nexit\n")

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	history := s.History()
	if len(history) != 1 {
		t.Fatalf("expected only the user turn to remain, got %v messages", len(history))
	}
	testboil.FailTestIfDiff(t, history[0].Role, models.RoleUser)
}

func TestRunDecodeErrorKeepsUserTurn(t *testing.T) {
	s := newTestSession(t, senderFunc(func(ctx context.Context, url string, body []byte) ([]byte, error) {
		return []byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`), nil
	}), "Hello\nexit\n")

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	history := s.History()
	if len(history) != 1 {
		t.Fatalf("expected only the user turn to remain, got %v messages", len(history))
	}
}

func TestRunFailedExchangeHistoryIncludedInNextRequest(t *testing.T) {
	var secondRequest []byte
	calls := 0
	s := newTestSession(t, senderFunc(func(ctx context.Context, url string, body []byte) ([]byte, error) {
		calls++
		if calls == 1 {
			return nil, gemini.ErrTimeout
		}
		secondRequest = body
		return []byte(`{"candidates":[{"content":{"parts":[{"text":"late answer"}]}}]}`), nil
	}), "first question\nsecond question\nexit\n")

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	testboil.AssertStringContains(t, string(secondRequest), "first question")
	testboil.AssertStringContains(t, string(secondRequest), "second question")
}

func TestRunHistoryWindowTrimsRequestNotState(t *testing.T) {
	var lastRequest []byte
	sender := senderFunc(func(ctx context.Context, url string, body []byte) ([]byte, error) {
		lastRequest = body
		return []byte(`{"candidates":[{"content":{"parts":[{"text":"ack"}]}}]}`), nil
	})
	confDir := t.TempDir()
	if err := config.EnsureDir(confDir); err != nil {
		t.Fatalf("EnsureDir: %v", err)
	}
	conf := config.Default
	conf.HistoryWindow = 2
	s := New(conf, confDir, sender, strings.NewReader("alpha\nbravo\ncharlie\nexit\n"))

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Last request should hold only the latest assistant reply and the
	// new user turn, not the start of the conversation.
	got := string(lastRequest)
	testboil.AssertStringContains(t, got, "charlie")
	if strings.Contains(got, "alpha") {
		t.Fatalf("expected windowed request to drop old turns, got: %v", got)
	}
	if len(s.History()) != 6 {
		t.Fatalf("stored conversation should never be trimmed, got %v messages", len(s.History()))
	}
}

func TestRunEOFExitsCleanly(t *testing.T) {
	s := newTestSession(t, replyWith("unused"), "")
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("expected clean exit on EOF, got: %v", err)
	}
}

func TestRunRequestURLUsesConfiguredModel(t *testing.T) {
	var gotURL string
	s := newTestSession(t, senderFunc(func(ctx context.Context, url string, body []byte) ([]byte, error) {
		gotURL = url
		return []byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`), nil
	}), "hi\nexit\n")

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	testboil.FailTestIfDiff(t, gotURL, gemini.RequestURL(config.Default.BaseURL, config.Default.Model))
}

func TestRunSavesTranscriptOnExit(t *testing.T) {
	confDir := t.TempDir()
	if err := config.EnsureDir(confDir); err != nil {
		t.Fatalf("EnsureDir: %v", err)
	}
	s := New(config.Default, confDir, replyWith("Hi there"), strings.NewReader("Hello\nexit\n"))
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(confDir, "conversations"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one transcript, got %v", len(entries))
	}
	var chat models.Chat
	err = config.ReadAndUnmarshal(filepath.Join(confDir, "conversations", entries[0].Name()), &chat)
	if err != nil {
		t.Fatalf("ReadAndUnmarshal: %v", err)
	}
	if len(chat.Messages) != 2 {
		t.Fatalf("expected 2 messages in transcript, got %v", len(chat.Messages))
	}
	testboil.FailTestIfDiff(t, chat.Messages[1].Content, "Hi there")
}

func TestRunNoTranscriptWhenNothingSaid(t *testing.T) {
	confDir := t.TempDir()
	if err := config.EnsureDir(confDir); err != nil {
		t.Fatalf("EnsureDir: %v", err)
	}
	s := New(config.Default, confDir, replyWith("unused"), strings.NewReader("exit\n"))
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	entries, err := os.ReadDir(filepath.Join(confDir, "conversations"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no transcript, got %v", len(entries))
	}
}

func TestRunErrorDiagnosticsNameTheKind(t *testing.T) {
	for _, tC := range []struct {
		desc   string
		sender senderFunc
	}{
		{
			desc: "timeout",
			sender: func(ctx context.Context, url string, body []byte) ([]byte, error) {
				return nil, fmt.Errorf("%w: deadline exceeded", gemini.ErrTimeout)
			},
		},
		{
			desc: "empty candidates",
			sender: func(ctx context.Context, url string, body []byte) ([]byte, error) {
				return []byte(`{"candidates":[]}`), nil
			},
		},
	} {
		t.Run(tC.desc, func(t *testing.T) {
			s := newTestSession(t, tC.sender, "Hello\nexit\n")
			if err := s.Run(context.Background()); err != nil {
				t.Fatalf("Run: %v", err)
			}
			// The loop must survive the failure and still accept the
			// exit keyword, which is implied by Run returning nil.
			if len(s.History()) != 1 {
				t.Fatalf("expected 1 message, got %v", len(s.History()))
			}
		})
	}
}

func TestExchangeErrorsAreTyped(t *testing.T) {
	s := newTestSession(t, senderFunc(func(ctx context.Context, url string, body []byte) ([]byte, error) {
		return nil, &gemini.ResponseError{StatusCode: 401, Body: "API key not valid"}
	}), "")
	s.conv.Append(models.Message{Role: models.RoleUser, Content: "hi"})

	_, err := s.exchange(context.Background())
	var respErr *gemini.ResponseError
	if !errors.As(err, &respErr) {
		t.Fatalf("expected ResponseError to surface unwrapped, got: %v", err)
	}
	if respErr.StatusCode != 401 {
		t.Fatalf("expected status 401, got: %v", respErr.StatusCode)
	}
}
