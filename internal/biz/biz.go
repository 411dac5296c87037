package biz

import (
	"github.com/groupbot-dev/groupbot/internal/biz/usecase"
)

// Usecases contains all usecases
type Usecases struct {
	Auth       *usecase.AuthUsecase
	RateLimit  *usecase.RateLimitUsecase
	Command    *usecase.CommandUsecase
	Keyword    *usecase.KeywordUsecase
	Group      *usecase.GroupUsecase
	Invite     *usecase.InviteUsecase
	Moderation *usecase.ModerationUsecase
	Filter     *usecase.FilterUsecase
	Chat       *usecase.ChatUsecase
	Status     *usecase.StatusUsecase
}
