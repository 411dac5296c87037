package usecase

import (
	"github.com/groupbot-dev/groupbot/internal/biz/domain"
)

// Fallback replies for message types the bot cannot read
const (
	RecordingReply = "🙉"
	MediaReply     = "🙈"
	OtherReply     = "🐒"
)

// FilterUsecase decides which message types get a real answer
type FilterUsecase struct{}

// NewFilterUsecase creates a new filter usecase
func NewFilterUsecase() *FilterUsecase {
	return &FilterUsecase{}
}

// IsIgnored checks if msg is a type that never gets any reply
func (uc *FilterUsecase) IsIgnored(msg *domain.Message) bool {
	switch msg.Type {
	case domain.MsgNote, domain.MsgSystem, domain.MsgFriendRequest:
		return true
	}
	return false
}

// Supported checks if msg can be answered. When it cannot, fallback is the
// placeholder reply, or "" for ignored types.
func (uc *FilterUsecase) Supported(msg *domain.Message) (ok bool, fallback string) {
	if msg.Type == domain.MsgText {
		return true, ""
	}
	if uc.IsIgnored(msg) {
		return false, ""
	}

	switch msg.Type {
	case domain.MsgRecording:
		return false, RecordingReply
	case domain.MsgPicture, domain.MsgVideo:
		return false, MediaReply
	default:
		return false, OtherReply
	}
}
