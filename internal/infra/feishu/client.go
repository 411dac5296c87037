package feishu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"
	"github.com/rs/zerolog"

	"github.com/groupbot-dev/groupbot/internal/biz/domain"
	"github.com/groupbot-dev/groupbot/internal/biz/repo"
)

const openAPIBase = "https://open.feishu.cn/open-apis"

// ErrUnsupported is returned for operations Feishu bots cannot perform
var ErrUnsupported = errors.New("feishu: unsupported operation")

// Client is the Feishu platform: IM API calls plus a websocket event stream
type Client struct {
	appID     string
	appSecret string
	larkCli   *lark.Client
	logger    zerolog.Logger

	self domain.User

	mu      sync.Mutex
	groups  map[string]domain.Group  // chat_id -> group, last known sizes
	members map[string][]domain.User // chat_id -> members
}

// NewClient creates a new Feishu client
func NewClient(appID, appSecret string, logger zerolog.Logger) *Client {
	return &Client{
		appID:     appID,
		appSecret: appSecret,
		logger:    logger.With().Str("platform", "feishu").Logger(),
		groups:    make(map[string]domain.Group),
		members:   make(map[string][]domain.User),
	}
}

var _ repo.PlatformRepo = (*Client)(nil)

// Name returns the platform name
func (c *Client) Name() string {
	return "feishu"
}

// Login creates the API client and fetches the bot identity
func (c *Client) Login(ctx context.Context) error {
	c.larkCli = lark.NewClient(c.appID, c.appSecret)

	self, err := c.fetchBotInfo(ctx)
	if err != nil {
		return fmt.Errorf("fetch bot info: %w", err)
	}
	c.self = self
	c.logger.Info().Str("open_id", self.ID).Str("name", self.Name).Msg("logged in")
	return nil
}

// fetchBotInfo fetches the bot's own open_id and app name
func (c *Client) fetchBotInfo(ctx context.Context) (domain.User, error) {
	// 1. First get tenant_access_token
	tokenReq := fmt.Sprintf(`{"app_id":%q,"app_secret":%q}`, c.appID, c.appSecret)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		openAPIBase+"/auth/v3/tenant_access_token/internal", strings.NewReader(tokenReq))
	if err != nil {
		return domain.User{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	tokenResp, err := http.DefaultClient.Do(req)
	if err != nil {
		return domain.User{}, fmt.Errorf("get token: %w", err)
	}
	defer tokenResp.Body.Close()

	var tokenResult struct {
		Code              int    `json:"code"`
		Msg               string `json:"msg"`
		TenantAccessToken string `json:"tenant_access_token"`
	}
	if err := json.NewDecoder(tokenResp.Body).Decode(&tokenResult); err != nil {
		return domain.User{}, fmt.Errorf("decode token: %w", err)
	}
	if tokenResult.Code != 0 {
		return domain.User{}, fmt.Errorf("token API error: %s", tokenResult.Msg)
	}

	// 2. Get bot info
	req, err = http.NewRequestWithContext(ctx, http.MethodGet, openAPIBase+"/bot/v3/info", nil)
	if err != nil {
		return domain.User{}, err
	}
	req.Header.Set("Authorization", "Bearer "+tokenResult.TenantAccessToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return domain.User{}, fmt.Errorf("get bot info: %w", err)
	}
	defer resp.Body.Close()

	var botResult struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Bot  struct {
			OpenID  string `json:"open_id"`
			AppName string `json:"app_name"`
		} `json:"bot"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&botResult); err != nil {
		return domain.User{}, fmt.Errorf("decode bot info: %w", err)
	}
	if botResult.Code != 0 {
		return domain.User{}, fmt.Errorf("API error: %s", botResult.Msg)
	}

	return domain.User{ID: botResult.Bot.OpenID, Name: botResult.Bot.AppName}, nil
}

// Self returns the bot identity
func (c *Client) Self(ctx context.Context) (domain.User, error) {
	if c.self.ID == "" {
		return domain.User{}, errors.New("feishu: not logged in")
	}
	return c.self, nil
}

// Friends returns nil: Feishu bots have no contact list
func (c *Client) Friends(ctx context.Context) ([]domain.User, error) {
	return nil, nil
}

// Groups lists the chats the bot is in
func (c *Client) Groups(ctx context.Context, refresh bool) ([]domain.Group, error) {
	var groups []domain.Group
	var pageToken string

	for {
		reqBuilder := larkim.NewListChatReqBuilder().PageSize(100)
		if pageToken != "" {
			reqBuilder = reqBuilder.PageToken(pageToken)
		}

		resp, err := c.larkCli.Im.Chat.List(ctx, reqBuilder.Build())
		if err != nil {
			return nil, fmt.Errorf("list chats failed: %w", err)
		}
		if !resp.Success() {
			return nil, fmt.Errorf("list chats error: %s", resp.Msg)
		}

		for _, item := range resp.Data.Items {
			if item.ChatId == nil {
				continue
			}
			g := domain.Group{ID: *item.ChatId}
			if item.Name != nil {
				g.Name = *item.Name
			}
			groups = append(groups, g)
		}

		if resp.Data.HasMore == nil || !*resp.Data.HasMore || resp.Data.PageToken == nil {
			break
		}
		pageToken = *resp.Data.PageToken
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, g := range groups {
		cached, ok := c.groups[g.ID]
		if ok && !refresh {
			groups[i].Size = cached.Size
			continue
		}
		size, err := c.chatSize(ctx, g.ID)
		if err != nil {
			return nil, err
		}
		groups[i].Size = size
		c.groups[g.ID] = groups[i]
	}
	return groups, nil
}

// chatSize returns the member count of a chat
func (c *Client) chatSize(ctx context.Context, chatID string) (int, error) {
	req := larkim.NewGetChatReqBuilder().ChatId(chatID).Build()

	resp, err := c.larkCli.Im.Chat.Get(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("get chat info failed: %w", err)
	}
	if !resp.Success() {
		return 0, fmt.Errorf("get chat info error: %s", resp.Msg)
	}

	var count int
	if resp.Data.UserCount != nil {
		count, _ = strconv.Atoi(*resp.Data.UserCount)
	}
	return count, nil
}

// Members retrieves the members of a chat, using pagination
func (c *Client) Members(ctx context.Context, groupID string) ([]domain.User, error) {
	var members []domain.User
	var pageToken string

	for {
		reqBuilder := larkim.NewGetChatMembersReqBuilder().
			MemberIdType("open_id").
			ChatId(groupID).
			PageSize(100)
		if pageToken != "" {
			reqBuilder = reqBuilder.PageToken(pageToken)
		}

		resp, err := c.larkCli.Im.ChatMembers.Get(ctx, reqBuilder.Build())
		if err != nil {
			return nil, fmt.Errorf("get chat members failed: %w", err)
		}
		if !resp.Success() {
			return nil, fmt.Errorf("get chat members error: %s", resp.Msg)
		}

		for _, item := range resp.Data.Items {
			var u domain.User
			if item.MemberId != nil {
				u.ID = *item.MemberId
			}
			if item.Name != nil {
				u.Name = *item.Name
			}
			members = append(members, u)
		}

		if resp.Data.PageToken == nil || *resp.Data.PageToken == "" {
			break
		}
		pageToken = *resp.Data.PageToken
	}

	c.mu.Lock()
	c.members[groupID] = members
	c.mu.Unlock()

	c.logger.Debug().Str("chat_id", groupID).Int("count", len(members)).Msg("retrieved members")
	return members, nil
}

// SendText sends a text message to a chat or, for open_id targets, to a user
func (c *Client) SendText(ctx context.Context, chatID, text string) error {
	content := map[string]string{"text": text}
	contentJSON, _ := json.Marshal(content)

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(receiveIDType(chatID)).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(chatID).
			MsgType(larkim.MsgTypeText).
			Content(string(contentJSON)).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("send message failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("send message error: %s", resp.Msg)
	}
	return nil
}

// receiveIDType picks the receive id type from the id prefix
func receiveIDType(id string) string {
	if strings.HasPrefix(id, "ou_") {
		return larkim.ReceiveIdTypeOpenId
	}
	return larkim.ReceiveIdTypeChatId
}

// AddMember adds a user to a chat
func (c *Client) AddMember(ctx context.Context, groupID string, user domain.User) error {
	req := larkim.NewCreateChatMembersReqBuilder().
		ChatId(groupID).
		MemberIdType("open_id").
		Body(larkim.NewCreateChatMembersReqBodyBuilder().
			IdList([]string{user.ID}).
			Build()).
		Build()

	resp, err := c.larkCli.Im.ChatMembers.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("add chat member failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("add chat member error: %s", resp.Msg)
	}
	if resp.Data != nil && len(resp.Data.InvalidIdList) > 0 {
		return fmt.Errorf("add chat member: invalid id %s", user.ID)
	}
	return nil
}

// RemoveMember removes a user from a chat
func (c *Client) RemoveMember(ctx context.Context, groupID string, user domain.User) error {
	req := larkim.NewDeleteChatMembersReqBuilder().
		ChatId(groupID).
		MemberIdType("open_id").
		Body(larkim.NewDeleteChatMembersReqBodyBuilder().
			IdList([]string{user.ID}).
			Build()).
		Build()

	resp, err := c.larkCli.Im.ChatMembers.Delete(ctx, req)
	if err != nil {
		return fmt.Errorf("remove chat member failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("remove chat member error: %s", resp.Msg)
	}
	return nil
}

// AcceptFriend is not supported: Feishu has no friend requests for bots
func (c *Client) AcceptFriend(ctx context.Context, msg *domain.Message) (domain.User, error) {
	return domain.User{}, ErrUnsupported
}

// DumpSession is a no-op: app credentials need no session storage
func (c *Client) DumpSession(ctx context.Context) error {
	return nil
}

// Run connects via websocket and delivers events until ctx is done
func (c *Client) Run(ctx context.Context, handler repo.MessageHandler) error {
	// Handlers must return quickly so the SDK can send the ACK, otherwise Feishu retries
	eventHandler := dispatcher.NewEventDispatcher("", "").
		OnP2MessageReceiveV1(func(_ context.Context, event *larkim.P2MessageReceiveV1) error {
			if msg := c.convertMessage(ctx, event); msg != nil {
				go handler(msg)
			}
			return nil
		}).
		OnP2ChatMemberUserAddedV1(func(_ context.Context, event *larkim.P2ChatMemberUserAddedV1) error {
			for _, msg := range c.convertMemberAdded(event) {
				go handler(msg)
			}
			return nil
		})

	wsCli := larkws.NewClient(c.appID, c.appSecret,
		larkws.WithEventHandler(eventHandler),
		larkws.WithLogLevel(larkcore.LogLevelInfo),
	)

	c.logger.Info().Msg("starting websocket connection")
	return wsCli.Start(ctx)
}

// convertMessage converts a message event, returning nil for messages to drop
func (c *Client) convertMessage(ctx context.Context, event *larkim.P2MessageReceiveV1) *domain.Message {
	rawMsg := event.Event.Message
	if rawMsg == nil || rawMsg.ChatId == nil || rawMsg.MessageId == nil {
		return nil
	}

	// Messages sent by the app itself
	if event.Event.Sender != nil && event.Event.Sender.SenderType != nil && *event.Event.Sender.SenderType == "app" {
		return nil
	}

	msg := &domain.Message{
		ID:       *rawMsg.MessageId,
		ChatID:   *rawMsg.ChatId,
		ChatKind: domain.ChatDirect,
	}

	if rawMsg.CreateTime != nil {
		if ts, err := strconv.ParseInt(*rawMsg.CreateTime, 10, 64); err == nil {
			msg.CreateTime = time.UnixMilli(ts)
		}
	}

	var sender domain.User
	if event.Event.Sender != nil && event.Event.Sender.SenderId != nil && event.Event.Sender.SenderId.OpenId != nil {
		sender.ID = *event.Event.Sender.SenderId.OpenId
	}

	// Mention key (@_user_1) -> real name
	mentionMap := make(map[string]string)
	for _, mention := range rawMsg.Mentions {
		if mention.Id != nil && mention.Id.OpenId != nil && *mention.Id.OpenId == c.self.ID {
			msg.IsAt = true
		}
		if mention.Key != nil && mention.Name != nil {
			mentionMap[*mention.Key] = *mention.Name
		}
	}

	if rawMsg.ChatType != nil && *rawMsg.ChatType == "group" {
		msg.ChatKind = domain.ChatGroup
		msg.Sender = c.groupHandle(msg.ChatID)
		sender.Name = c.memberName(ctx, msg.ChatID, sender.ID)
		msg.Member = &sender
	} else {
		sender.Name = sender.ID
		msg.Sender = sender
	}

	content := ""
	if rawMsg.Content != nil {
		content = *rawMsg.Content
	}
	msgType := ""
	if rawMsg.MessageType != nil {
		msgType = *rawMsg.MessageType
	}

	switch msgType {
	case "text":
		msg.Type = domain.MsgText
		msg.Text = parseTextContent(content, mentionMap)
	case "post":
		msg.Type = domain.MsgText
		msg.Text = parsePostContent(content, mentionMap)
	case "image":
		msg.Type = domain.MsgPicture
	case "audio":
		msg.Type = domain.MsgRecording
	case "media":
		msg.Type = domain.MsgVideo
	case "system":
		msg.Type = domain.MsgSystem
	default:
		msg.Type = domain.MsgOther
	}

	c.logger.Debug().
		Str("type", msgType).
		Str("chat_id", msg.ChatID).
		Str("sender", sender.ID).
		Msg("received message")
	return msg
}

// convertMemberAdded turns a member-added event into join notes, one per user
func (c *Client) convertMemberAdded(event *larkim.P2ChatMemberUserAddedV1) []*domain.Message {
	if event.Event == nil || event.Event.ChatId == nil {
		return nil
	}
	chatID := *event.Event.ChatId
	now := time.Now()

	var msgs []*domain.Message
	for _, u := range event.Event.Users {
		if u.Name == nil {
			continue
		}
		msgs = append(msgs, &domain.Message{
			ID:         "join-" + uuid.NewString(),
			ChatID:     chatID,
			ChatKind:   domain.ChatGroup,
			Type:       domain.MsgNote,
			Sender:     c.groupHandle(chatID),
			Text:       fmt.Sprintf(`邀请"%s"加入了群聊`, *u.Name),
			CreateTime: now,
		})
	}

	c.mu.Lock()
	delete(c.members, chatID)
	c.mu.Unlock()
	return msgs
}

// groupHandle returns the cached group for chatID
func (c *Client) groupHandle(chatID string) domain.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	if g, ok := c.groups[chatID]; ok {
		return domain.User{ID: g.ID, Name: g.Name}
	}
	return domain.User{ID: chatID, Name: chatID}
}

// memberName resolves a member's display name, loading the member list once on a miss
func (c *Client) memberName(ctx context.Context, chatID, openID string) string {
	lookup := func() (string, bool) {
		c.mu.Lock()
		defer c.mu.Unlock()
		for _, m := range c.members[chatID] {
			if m.ID == openID {
				return m.Name, true
			}
		}
		return "", false
	}

	if name, ok := lookup(); ok {
		return name
	}
	if _, err := c.Members(ctx, chatID); err != nil {
		c.logger.Warn().Err(err).Str("chat_id", chatID).Msg("failed to load members")
		return openID
	}
	if name, ok := lookup(); ok {
		return name
	}
	return openID
}

// parseTextContent extracts text from a text message
// It also replaces mention placeholders (@_user_1) with real names
func parseTextContent(content string, mentionMap map[string]string) string {
	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return ""
	}
	return replaceMentions(parsed.Text, mentionMap)
}

// parsePostContent extracts the text of a rich text message
func parsePostContent(content string, mentionMap map[string]string) string {
	var parsed struct {
		Title   string `json:"title"`
		Content [][]struct {
			Tag    string `json:"tag"`
			Text   string `json:"text,omitempty"`
			UserID string `json:"user_id,omitempty"` // for "at" tags
		} `json:"content"`
	}

	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return ""
	}

	var textParts []string
	if parsed.Title != "" {
		textParts = append(textParts, parsed.Title)
	}

	for _, line := range parsed.Content {
		var lineParts []string
		for _, elem := range line {
			switch elem.Tag {
			case "text":
				if elem.Text != "" {
					lineParts = append(lineParts, elem.Text)
				}
			case "at":
				if elem.UserID == "" {
					continue
				}
				if name, ok := mentionMap[elem.UserID]; ok {
					lineParts = append(lineParts, "@"+name)
				} else {
					lineParts = append(lineParts, "@"+elem.UserID)
				}
			}
		}
		if len(lineParts) > 0 {
			textParts = append(textParts, strings.Join(lineParts, ""))
		}
	}

	return replaceMentions(strings.Join(textParts, "\n"), mentionMap)
}

// replaceMentions replaces mention placeholders (@_user_1, @_user_2, etc.) with real names
func replaceMentions(text string, mentionMap map[string]string) string {
	result := text
	for key, name := range mentionMap {
		result = strings.ReplaceAll(result, key, "@"+name)
	}
	return result
}
