package wechat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/eatmoreapple/openwechat"
	"github.com/rs/zerolog"

	"github.com/groupbot-dev/groupbot/internal/biz/domain"
	"github.com/groupbot-dev/groupbot/internal/biz/repo"
)

const (
	groupPrefix   = "@@"
	fileHelperID  = "filehelper"
	requestMaxAge = 24 * time.Hour
)

// ErrWrongAccount is returned when the logged in account is not the configured bot
var ErrWrongAccount = errors.New("wechat: logged in as the wrong account")

// Client is the WeChat platform backed by openwechat
type Client struct {
	bot     *openwechat.Bot
	self    *openwechat.Self
	storage openwechat.HotReloadStorage
	botName string
	logger  zerolog.Logger

	mu       sync.Mutex
	requests map[string]*openwechat.Message // Pending friend requests by message ID
}

// NewClient creates a new WeChat client. botName, when set, must match the
// nickname of the account that logs in.
func NewClient(storage openwechat.HotReloadStorage, botName string, logger zerolog.Logger) *Client {
	return &Client{
		storage:  storage,
		botName:  botName,
		logger:   logger.With().Str("platform", "wechat").Logger(),
		requests: make(map[string]*openwechat.Message),
	}
}

var _ repo.PlatformRepo = (*Client)(nil)

// Name returns the platform name
func (c *Client) Name() string {
	return "wechat"
}

// Login performs a hot login, falling back to a QR code scan
func (c *Client) Login(ctx context.Context) error {
	c.bot = openwechat.DefaultBot(openwechat.Desktop)
	c.bot.UUIDCallback = openwechat.PrintlnQrcodeUrl

	if err := c.bot.HotLogin(c.storage, openwechat.NewRetryLoginOption()); err != nil {
		return fmt.Errorf("hot login: %w", err)
	}

	self, err := c.bot.GetCurrentUser()
	if err != nil {
		return fmt.Errorf("get current user: %w", err)
	}
	if c.botName != "" && self.NickName != c.botName {
		return fmt.Errorf("%w: %s", ErrWrongAccount, self.NickName)
	}
	c.self = self

	c.logger.Info().Str("name", self.NickName).Msg("logged in")
	return nil
}

// Self returns the bot identity
func (c *Client) Self(ctx context.Context) (domain.User, error) {
	if c.self == nil {
		return domain.User{}, errors.New("wechat: not logged in")
	}
	return toUser(c.self.User), nil
}

// Friends lists the bot's contacts
func (c *Client) Friends(ctx context.Context) ([]domain.User, error) {
	friends, err := c.self.Friends()
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	users := make([]domain.User, 0, len(friends))
	for _, f := range friends {
		users = append(users, toUser(f.User))
	}
	return users, nil
}

// Groups lists the groups the bot is in
func (c *Client) Groups(ctx context.Context, refresh bool) ([]domain.Group, error) {
	groups, err := c.self.Groups(refresh)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}

	out := make([]domain.Group, 0, len(groups))
	for _, g := range groups {
		size := len(g.MemberList)
		if refresh || size == 0 {
			members, err := g.Members()
			if err != nil {
				return nil, fmt.Errorf("members of %s: %w", g.NickName, err)
			}
			size = len(members)
		}
		out = append(out, domain.Group{ID: g.UserName, Name: g.NickName, Size: size})
	}
	return out, nil
}

// Members lists the members of a group
func (c *Client) Members(ctx context.Context, groupID string) ([]domain.User, error) {
	group, err := c.findGroup(groupID)
	if err != nil {
		return nil, err
	}
	members, err := group.Members()
	if err != nil {
		return nil, fmt.Errorf("members of %s: %w", group.NickName, err)
	}
	users := make([]domain.User, 0, len(members))
	for _, m := range members {
		users = append(users, toMember(m))
	}
	return users, nil
}

// SendText sends text to a group, a friend, or the bot's file helper
func (c *Client) SendText(ctx context.Context, chatID, text string) error {
	if chatID == c.self.UserName || chatID == fileHelperID {
		_, err := c.self.FileHelper().SendText(text)
		return err
	}

	if strings.HasPrefix(chatID, groupPrefix) {
		group, err := c.findGroup(chatID)
		if err != nil {
			return err
		}
		_, err = group.SendText(text)
		return err
	}

	friend, err := c.findFriend(chatID)
	if err != nil {
		return err
	}
	_, err = friend.SendText(text)
	return err
}

// AddMember invites a friend into a group
func (c *Client) AddMember(ctx context.Context, groupID string, user domain.User) error {
	group, err := c.findGroup(groupID)
	if err != nil {
		return err
	}
	friend, err := c.findFriend(user.ID)
	if err != nil {
		return err
	}
	return group.AddFriendsIn(friend)
}

// RemoveMember removes a member from a group
func (c *Client) RemoveMember(ctx context.Context, groupID string, user domain.User) error {
	group, err := c.findGroup(groupID)
	if err != nil {
		return err
	}
	members, err := group.Members()
	if err != nil {
		return fmt.Errorf("members of %s: %w", group.NickName, err)
	}
	for _, m := range members {
		if m.UserName == user.ID {
			return group.RemoveMembers(openwechat.Members{m})
		}
	}
	return fmt.Errorf("%w: %s in %s", domain.ErrUserNotFound, user.Name, group.NickName)
}

// AcceptFriend accepts a pending friend request
func (c *Client) AcceptFriend(ctx context.Context, msg *domain.Message) (domain.User, error) {
	c.mu.Lock()
	raw, ok := c.requests[msg.ID]
	delete(c.requests, msg.ID)
	c.mu.Unlock()
	if !ok {
		return domain.User{}, fmt.Errorf("no pending friend request %s", msg.ID)
	}

	friend, err := raw.Agree()
	if err != nil {
		return domain.User{}, fmt.Errorf("accept friend: %w", err)
	}
	return toUser(friend.User), nil
}

// DumpSession writes the login session to the hot reload storage
func (c *Client) DumpSession(ctx context.Context) error {
	return c.bot.DumpHotReloadStorage()
}

// Run delivers messages until ctx is done or the bot logs out
func (c *Client) Run(ctx context.Context, handler repo.MessageHandler) error {
	c.bot.MessageHandler = func(raw *openwechat.Message) {
		msg, err := c.convert(raw)
		if err != nil {
			c.logger.Warn().Err(err).Str("msg_id", raw.MsgId).Msg("failed to convert message")
			return
		}
		handler(msg)
	}

	go func() {
		<-ctx.Done()
		c.bot.Exit()
	}()

	return c.bot.Block()
}

// convert builds a domain message from an openwechat message
func (c *Client) convert(raw *openwechat.Message) (*domain.Message, error) {
	msg := &domain.Message{
		ID:       raw.MsgId,
		Type:     messageType(raw),
		Text:     raw.Content,
		FromSelf: raw.IsSendBySelf(),
		ChatKind: domain.ChatDirect,
	}
	if raw.CreateTime > 0 {
		msg.CreateTime = time.Unix(raw.CreateTime, 0)
	}

	// The chat is the other side: the receiver when the bot sent it
	var chat *openwechat.User
	var err error
	if msg.FromSelf {
		chat, err = raw.Receiver()
	} else {
		chat, err = raw.Sender()
	}
	if err != nil {
		return nil, fmt.Errorf("resolve chat: %w", err)
	}
	msg.ChatID = chat.UserName

	if strings.HasPrefix(raw.FromUserName, groupPrefix) || strings.HasPrefix(raw.ToUserName, groupPrefix) {
		msg.ChatKind = domain.ChatGroup
		msg.Sender = domain.User{ID: chat.UserName, Name: chat.NickName}
		msg.IsAt = raw.IsAt()

		member := toUser(c.self.User)
		if !msg.FromSelf {
			m, err := raw.SenderInGroup()
			if err != nil {
				return nil, fmt.Errorf("resolve group member: %w", err)
			}
			member = toMember(m)
		}
		msg.Member = &member
	} else if msg.FromSelf {
		msg.Sender = toUser(c.self.User)
	} else {
		msg.Sender = toUser(chat)
	}

	if msg.Type == domain.MsgFriendRequest {
		msg.VerifyText = raw.RecommendInfo.Content
		c.trackRequest(msg.ID, raw)
	}
	return msg, nil
}

// trackRequest remembers a friend request until it is accepted, dropping stale ones
func (c *Client) trackRequest(id string, raw *openwechat.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := time.Now().Add(-requestMaxAge).Unix()
	for k, m := range c.requests {
		if m.CreateTime < cutoff {
			delete(c.requests, k)
		}
	}
	c.requests[id] = raw
}

func (c *Client) findGroup(id string) (*openwechat.Group, error) {
	groups, err := c.self.Groups()
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	for _, g := range groups {
		if g.UserName == id {
			return g, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrGroupNotFound, id)
}

func (c *Client) findFriend(id string) (*openwechat.Friend, error) {
	friends, err := c.self.Friends()
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	for _, f := range friends {
		if f.UserName == id {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrUserNotFound, id)
}

// messageType maps openwechat message kinds to domain types
func messageType(raw *openwechat.Message) domain.MsgType {
	switch {
	case raw.IsFriendAdd():
		return domain.MsgFriendRequest
	case raw.IsText():
		return domain.MsgText
	case raw.IsSystem():
		return domain.MsgNote
	case raw.IsPicture():
		return domain.MsgPicture
	case raw.IsVoice():
		return domain.MsgRecording
	case raw.IsVideo():
		return domain.MsgVideo
	default:
		return domain.MsgOther
	}
}

// toUser converts a contact, preferring the remark name
func toUser(u *openwechat.User) domain.User {
	name := u.RemarkName
	if name == "" {
		name = u.NickName
	}
	return domain.User{ID: u.UserName, Name: name}
}

// toMember converts a group member, preferring the in-group display name
func toMember(u *openwechat.User) domain.User {
	name := u.DisplayName
	if name == "" {
		name = u.NickName
	}
	return domain.User{ID: u.UserName, Name: name}
}
