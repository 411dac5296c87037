package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/groupbot-dev/groupbot/internal/biz/domain"
	"github.com/groupbot-dev/groupbot/internal/biz/usecase"
	"github.com/groupbot-dev/groupbot/internal/metrics"
)

const missingCodeReply = "Hello %s，你忘了填写加群口令，快回去找找口令吧"

// NewRoutes builds the bot's routes in priority order
func NewRoutes(bc *Context) []Route {
	managed := bc.UC.Group.IDs()

	adminChats := []string{bc.Self.ID}
	if bc.AdminGroup.ID != "" {
		adminChats = append(adminChats, bc.AdminGroup.ID)
	}
	for _, admin := range bc.UC.Auth.Admins() {
		adminChats = append(adminChats, admin.ID)
	}

	return []Route{
		{
			Name: "welcome",
			Match: Predicate{
				Kinds: []domain.ChatKind{domain.ChatGroup},
				Types: []domain.MsgType{domain.MsgNote, domain.MsgSystem},
				Chats: managed,
			},
			Handle: handleWelcome,
		},
		{
			Name: "admins",
			Match: Predicate{
				Types:       []domain.MsgType{domain.MsgText},
				Chats:       adminChats,
				IncludeSelf: true,
			},
			Handle: handleAdmin,
		},
		{
			Name: "managed_groups",
			Match: Predicate{
				Kinds:       []domain.ChatKind{domain.ChatGroup},
				Types:       []domain.MsgType{domain.MsgText},
				Chats:       managed,
				IncludeSelf: true,
			},
			Handle: handleManagedGroup,
		},
		{
			Name: "other_groups",
			Match: Predicate{
				Kinds: []domain.ChatKind{domain.ChatGroup},
				Types: []domain.MsgType{domain.MsgText},
				Where: func(msg *domain.Message) bool {
					return msg.IsAt && !bc.UC.Group.IsManaged(msg.ChatID)
				},
			},
			Handle: handleOtherGroup,
		},
		{
			Name: "friend_requests",
			Match: Predicate{
				Types: []domain.MsgType{domain.MsgFriendRequest},
			},
			Handle: handleFriendRequest,
		},
		{
			Name: "friends",
			Match: Predicate{
				Kinds: []domain.ChatKind{domain.ChatDirect},
			},
			Guards: []Guard{RateLimitGuard},
			Handle: handleFriend,
		},
	}
}

// RateLimitGuard answers with the throttle placeholder when the sender is too fast
func RateLimitGuard(ctx context.Context, bc *Context, msg *domain.Message) GuardResult {
	if !bc.UC.RateLimit.ShouldThrottle(msg) {
		return GuardResult{Proceed: true}
	}
	metrics.Throttled.Inc()
	bc.Logger.Info().Str("sender", msg.EffectiveSender().Name).Msg("throttled")
	return GuardResult{Reply: Reply{usecase.ThrottleReply}}
}

// handleWelcome greets new members of managed groups
func handleWelcome(ctx context.Context, bc *Context, msg *domain.Message) (Reply, error) {
	text, ok := bc.UC.Moderation.Welcome(msg)
	if !ok {
		return nil, nil
	}
	return Reply{text}, nil
}

// handleAdmin runs admin commands. Text that is not a command from an admin
// falls back to ordinary friend handling in direct chats.
func handleAdmin(ctx context.Context, bc *Context, msg *domain.Message) (Reply, error) {
	err := runAdminCommand(ctx, bc, msg)
	if err == nil {
		return nil, nil
	}
	if !errors.Is(err, domain.ErrUnauthorized) {
		return nil, err
	}
	if msg.IsGroup() || msg.FromSelf {
		return nil, nil
	}
	return WithGuards(handleFriend, RateLimitGuard)(ctx, bc, msg)
}

func runAdminCommand(ctx context.Context, bc *Context, msg *domain.Message) error {
	if err := bc.UC.Auth.Require(msg); err != nil {
		return err
	}

	action, err := bc.UC.Command.Dispatch(ctx, msg.Text)
	if err != nil {
		return err
	}
	metrics.AdminCommands.WithLabelValues(string(action.Branch)).Inc()
	return bc.SendOutput(ctx, msg.ChatID, action.Output)
}

// handleManagedGroup handles remote kicks and forwards @-mentions to the sibling groups
func handleManagedGroup(ctx context.Context, bc *Context, msg *domain.Message) (Reply, error) {
	result, err := bc.UC.Moderation.Kick(ctx, msg)
	if err != nil {
		return nil, err
	}
	if result != nil {
		return Reply{result.Reply}, nil
	}

	if msg.IsAt && !msg.FromSelf {
		return nil, bc.UC.Moderation.SemiSync(ctx, msg)
	}
	return nil, nil
}

// handleOtherGroup answers @-mentions in groups the bot does not manage
func handleOtherGroup(ctx context.Context, bc *Context, msg *domain.Message) (Reply, error) {
	reply, err := bc.UC.Chat.Reply(ctx, msg)
	if err != nil {
		return nil, err
	}
	return Reply{reply}, nil
}

// handleFriendRequest accepts every request and invites those who know the group code
func handleFriendRequest(ctx context.Context, bc *Context, msg *domain.Message) (Reply, error) {
	friend, err := bc.Platform.AcceptFriend(ctx, msg)
	if err != nil {
		return nil, err
	}
	bc.Logger.Info().Str("friend", friend.Name).Msg("accepted friend request")

	if bc.UC.Invite.ValidCode(msg.VerifyText) {
		return nil, invite(ctx, bc, friend)
	}
	bc.Send(ctx, friend.ID, fmt.Sprintf(missingCodeReply, friend.Name))
	return nil, nil
}

// handleFriend answers direct messages: group code, FAQ keywords, then the chatbot
func handleFriend(ctx context.Context, bc *Context, msg *domain.Message) (Reply, error) {
	ok, fallback := bc.UC.Filter.Supported(msg)
	if !ok {
		if fallback == "" {
			return nil, nil
		}
		return Reply{fallback}, nil
	}

	if bc.UC.Invite.ValidCode(msg.Text) {
		return nil, invite(ctx, bc, msg.Sender)
	}

	if reply, ok := bc.UC.Keyword.Match(msg.Text); ok {
		bc.Logger.Info().Str("sender", msg.Sender.Name).Msg("keyword reply")
		return Reply{reply}, nil
	}

	reply, err := bc.UC.Chat.Reply(ctx, msg)
	if err != nil {
		return nil, err
	}
	return Reply{reply}, nil
}

func invite(ctx context.Context, bc *Context, user domain.User) error {
	result, err := bc.UC.Invite.Invite(ctx, user)
	if err != nil {
		return err
	}
	if result.Added != nil {
		metrics.Invites.WithLabelValues("added").Inc()
	} else {
		metrics.Invites.WithLabelValues("joined").Inc()
	}
	return nil
}
