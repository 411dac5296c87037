package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/groupbot-dev/groupbot/internal/biz"
	"github.com/groupbot-dev/groupbot/internal/biz/domain"
	"github.com/groupbot-dev/groupbot/internal/biz/repo"
	"github.com/groupbot-dev/groupbot/internal/biz/usecase"
)

// Mock implementations

type mockHistoryRepo struct {
	messages []*domain.Message
}

func (m *mockHistoryRepo) Append(msg *domain.Message) {
	m.messages = append(m.messages, msg)
}

func (m *mockHistoryRepo) Reverse(yield func(msg *domain.Message) bool) {
	for i := len(m.messages) - 1; i >= 0; i-- {
		if !yield(m.messages[i]) {
			return
		}
	}
}

func (m *mockHistoryRepo) Recent(n int) []*domain.Message {
	if n > len(m.messages) {
		n = len(m.messages)
	}
	return m.messages[len(m.messages)-n:]
}

func (m *mockHistoryRepo) Last() *domain.Message {
	if len(m.messages) == 0 {
		return nil
	}
	return m.messages[len(m.messages)-1]
}

func (m *mockHistoryRepo) Len() int {
	return len(m.messages)
}

type sentText struct {
	ChatID string
	Text   string
}

type mockPlatformRepo struct {
	mu      sync.Mutex
	self    domain.User
	groups  []domain.Group
	members map[string][]domain.User

	sent     []sentText
	added    []string // groupID/userID
	removed  []string
	accepted []domain.User
	sendErr  error
}

func newMockPlatformRepo() *mockPlatformRepo {
	return &mockPlatformRepo{
		self:    domain.User{ID: "bot", Name: "GroupBot"},
		members: make(map[string][]domain.User),
	}
}

func (m *mockPlatformRepo) Name() string { return "mock" }

func (m *mockPlatformRepo) Login(ctx context.Context) error { return nil }

func (m *mockPlatformRepo) Self(ctx context.Context) (domain.User, error) {
	return m.self, nil
}

func (m *mockPlatformRepo) Friends(ctx context.Context) ([]domain.User, error) {
	return nil, nil
}

func (m *mockPlatformRepo) Groups(ctx context.Context, refresh bool) ([]domain.Group, error) {
	return m.groups, nil
}

func (m *mockPlatformRepo) Members(ctx context.Context, groupID string) ([]domain.User, error) {
	members, ok := m.members[groupID]
	if !ok {
		return nil, errors.New("no such group")
	}
	return members, nil
}

func (m *mockPlatformRepo) SendText(ctx context.Context, chatID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, sentText{ChatID: chatID, Text: text})
	return nil
}

func (m *mockPlatformRepo) AddMember(ctx context.Context, groupID string, user domain.User) error {
	m.added = append(m.added, groupID+"/"+user.ID)
	return nil
}

func (m *mockPlatformRepo) RemoveMember(ctx context.Context, groupID string, user domain.User) error {
	m.removed = append(m.removed, groupID+"/"+user.ID)
	return nil
}

func (m *mockPlatformRepo) AcceptFriend(ctx context.Context, msg *domain.Message) (domain.User, error) {
	m.accepted = append(m.accepted, msg.Sender)
	return msg.Sender, nil
}

func (m *mockPlatformRepo) DumpSession(ctx context.Context) error {
	return nil
}

func (m *mockPlatformRepo) Run(ctx context.Context, handler repo.MessageHandler) error {
	<-ctx.Done()
	return nil
}

func (m *mockPlatformRepo) sentTo(chatID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var texts []string
	for _, s := range m.sent {
		if s.ChatID == chatID {
			texts = append(texts, s.Text)
		}
	}
	return texts
}

func (m *mockPlatformRepo) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type mockChatRepo struct {
	reply string
	err   error
	calls int
}

func (m *mockChatRepo) Reply(ctx context.Context, userID, text string) (string, error) {
	m.calls++
	return m.reply, m.err
}

var (
	testAdmin = domain.User{ID: "admin", Name: "Admin"}
	testAlice = domain.User{ID: "alice", Name: "Alice"}
	testBob   = domain.User{ID: "bob", Name: "Bob"}
	testCarol = domain.User{ID: "carol", Name: "Carol"}
	testDave  = domain.User{ID: "dave", Name: "Dave"}
)

type botFixture struct {
	platform *mockPlatformRepo
	history  *mockHistoryRepo
	chat     *mockChatRepo
	bc       *Context
	router   *Router
}

func newBotFixture(t *testing.T) *botFixture {
	t.Helper()

	platform := newMockPlatformRepo()
	platform.groups = []domain.Group{
		{ID: "g1", Name: "Group 1", Size: 10},
		{ID: "g2", Name: "Group 2", Size: 20},
		{ID: "other", Name: "Other", Size: 5},
		{ID: "admins", Name: "Admins", Size: 2},
	}
	platform.members["g1"] = []domain.User{testAdmin, testAlice, testBob}
	platform.members["g2"] = []domain.User{testCarol}

	history := &mockHistoryRepo{}
	chat := &mockChatRepo{reply: "chatbot says hi"}

	self := platform.self
	authUC := usecase.NewAuthUsecase(self, []domain.User{testAdmin})
	groupUC := usecase.NewGroupUsecase(platform, []string{"g1", "g2"})
	statusUC := usecase.NewStatusUsecase(history)
	inviteUC := usecase.NewInviteUsecase(platform, groupUC, usecase.InviteConfig{Code: "wxpy"}, zerolog.Nop())
	deps := usecase.AdminDeps{
		Platform: platform,
		History:  history,
		Groups:   groupUC,
		Invite:   inviteUC,
		Status:   statusUC,
		Restart:  func() error { return nil },
	}

	uc := &biz.Usecases{
		Auth:      authUC,
		RateLimit: usecase.NewRateLimitUsecase(history, usecase.DefaultRateLimitConfig()),
		Command: usecase.NewCommandUsecase(
			usecase.NewCommandTable(deps),
			usecase.NewAdminGrammar(deps),
			usecase.DefaultShellConfig(),
			zerolog.Nop(),
		),
		Keyword: usecase.NewKeywordUsecase([]usecase.KeywordReply{
			{Reply: "pip install wxpy", Keywords: []string{"install"}},
		}),
		Group:      groupUC,
		Invite:     inviteUC,
		Moderation: usecase.NewModerationUsecase(platform, authUC, groupUC, "", zerolog.Nop()),
		Filter:     usecase.NewFilterUsecase(),
		Chat:       usecase.NewChatUsecase(chat, self.Name),
		Status:     statusUC,
	}

	bc := &Context{
		Platform:   platform,
		History:    history,
		UC:         uc,
		Self:       self,
		AdminGroup: domain.Group{ID: "admins", Name: "Admins"},
		Logger:     zerolog.Nop(),
	}

	return &botFixture{
		platform: platform,
		history:  history,
		chat:     chat,
		bc:       bc,
		router:   NewRouter(bc, NewRoutes(bc)),
	}
}
