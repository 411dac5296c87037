package repo

import (
	"context"

	"github.com/groupbot-dev/groupbot/internal/biz/domain"
)

// MessageHandler receives inbound messages one at a time
type MessageHandler func(msg *domain.Message)

// PlatformRepo is the chat platform collaborator.
// It owns transport, login and group membership; the bot only calls into it.
type PlatformRepo interface {
	// Name returns the platform name (wechat, feishu)
	Name() string

	// Login establishes the session, reusing a stored one when possible
	Login(ctx context.Context) error

	// Self returns the bot's own identity
	Self(ctx context.Context) (domain.User, error)

	// Friends lists the bot's contacts
	Friends(ctx context.Context) ([]domain.User, error)

	// Groups lists the groups the bot is in. refresh forces a reload of member counts.
	Groups(ctx context.Context, refresh bool) ([]domain.Group, error)

	// Members lists the members of a group
	Members(ctx context.Context, groupID string) ([]domain.User, error)

	// SendText sends a text message to a user or group
	SendText(ctx context.Context, chatID, text string) error

	// AddMember invites a user into a group
	AddMember(ctx context.Context, groupID string, user domain.User) error

	// RemoveMember removes a member from a group
	RemoveMember(ctx context.Context, groupID string, user domain.User) error

	// AcceptFriend accepts the friend request carried by msg and returns the new friend
	AcceptFriend(ctx context.Context, msg *domain.Message) (domain.User, error)

	// DumpSession persists the login session blob
	DumpSession(ctx context.Context) error

	// Run delivers messages to handler until ctx is done or the connection ends
	Run(ctx context.Context, handler MessageHandler) error
}
