package usecase

import (
	"context"
	"fmt"

	"github.com/groupbot-dev/groupbot/internal/biz/domain"
	"github.com/groupbot-dev/groupbot/internal/biz/repo"
)

// ChatUsecase produces conversational replies for messages nothing else answers
type ChatUsecase struct {
	chatRepo repo.ChatRepo
	botName  string
}

// NewChatUsecase creates a new chat usecase. chatRepo may be nil to disable replies.
func NewChatUsecase(chatRepo repo.ChatRepo, botName string) *ChatUsecase {
	return &ChatUsecase{
		chatRepo: chatRepo,
		botName:  botName,
	}
}

// IsEnabled returns whether a chatbot is configured
func (uc *ChatUsecase) IsEnabled() bool {
	return uc.chatRepo != nil
}

// Reply returns a reply for msg, "" for none
func (uc *ChatUsecase) Reply(ctx context.Context, msg *domain.Message) (string, error) {
	if uc.chatRepo == nil {
		return "", nil
	}

	text := StripMention(msg.Text, uc.botName)
	if text == "" {
		return "", nil
	}

	reply, err := uc.chatRepo.Reply(ctx, msg.EffectiveSender().ID, text)
	if err != nil {
		return "", fmt.Errorf("chatbot reply: %w", err)
	}
	return reply, nil
}
