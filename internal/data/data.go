package data

import (
	"github.com/groupbot-dev/groupbot/internal/biz/repo"
	"github.com/groupbot-dev/groupbot/internal/infra/openai"
)

// Repositories contains all repositories
type Repositories struct {
	History repo.HistoryRepo
	Login   repo.LoginRepo
	Chat    repo.ChatRepo // nil when no chatbot is configured
}

// NewRepositories creates all repositories
func NewRepositories(sessionDBPath string, historySize int, chatbot openai.Config) (*Repositories, error) {
	loginRepo, err := NewLoginRepo(sessionDBPath)
	if err != nil {
		return nil, err
	}

	return &Repositories{
		History: NewHistoryRepo(historySize),
		Login:   loginRepo,
		Chat:    NewChatbotRepoFromConfig(chatbot),
	}, nil
}

// Close releases the repositories
func (r *Repositories) Close() error {
	return r.Login.Close()
}
