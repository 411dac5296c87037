package data

import (
	"context"
	"errors"
	"testing"

	"github.com/groupbot-dev/groupbot/internal/infra/openai"
)

type mockChatter struct {
	user    string
	message string
	reply   string
	err     error
}

func (m *mockChatter) Chat(ctx context.Context, user, message string) (string, error) {
	m.user = user
	m.message = message
	return m.reply, m.err
}

func TestChatbotRepo_Reply(t *testing.T) {
	chatter := &mockChatter{reply: "  hi there \n"}
	r := NewChatbotRepo(chatter)

	reply, err := r.Reply(context.Background(), "alice", "hello")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if reply != "hi there" {
		t.Errorf("Expected trimmed reply, got %q", reply)
	}
	if chatter.user != "alice" || chatter.message != "hello" {
		t.Errorf("Unexpected request (%q, %q)", chatter.user, chatter.message)
	}
}

func TestChatbotRepo_Error(t *testing.T) {
	r := NewChatbotRepo(&mockChatter{err: errors.New("rate limited")})
	if _, err := r.Reply(context.Background(), "alice", "hello"); err == nil {
		t.Error("Expected error")
	}
}

func TestChatbotRepo_Disabled(t *testing.T) {
	if r := NewChatbotRepo(nil); r != nil {
		t.Error("Expected nil repo for nil client")
	}
	if r := NewChatbotRepoFromConfig(openai.Config{}); r != nil {
		t.Error("Expected nil repo without an API key")
	}
}
