package data

import (
	"context"
	"strings"

	"github.com/groupbot-dev/groupbot/internal/biz/repo"
	"github.com/groupbot-dev/groupbot/internal/infra/openai"
)

// Chatter is the completion client behind the chatbot repository
type Chatter interface {
	Chat(ctx context.Context, user, message string) (string, error)
}

// chatbotRepo implements the chat repository over an OpenAI-compatible API
type chatbotRepo struct {
	client Chatter
}

// NewChatbotRepo creates a chat repository. Returns nil when client is nil.
func NewChatbotRepo(client Chatter) repo.ChatRepo {
	if client == nil {
		return nil
	}
	return &chatbotRepo{client: client}
}

// NewChatbotRepoFromConfig creates a chat repository, or nil when no API key is set
func NewChatbotRepoFromConfig(cfg openai.Config) repo.ChatRepo {
	if cfg.APIKey == "" {
		return nil
	}
	return &chatbotRepo{client: openai.NewClient(cfg)}
}

// Reply returns the chatbot's answer
func (r *chatbotRepo) Reply(ctx context.Context, userID, text string) (string, error) {
	reply, err := r.client.Chat(ctx, userID, text)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}
