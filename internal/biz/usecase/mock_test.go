package usecase

import (
	"context"
	"errors"

	"github.com/groupbot-dev/groupbot/internal/biz/domain"
	"github.com/groupbot-dev/groupbot/internal/biz/repo"
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

type membership struct {
	GroupID string
	UserID  string
}

type mockPlatformRepo struct {
	self    domain.User
	friends []domain.User
	groups  []domain.Group
	members map[string][]domain.User

	sent    []sentText
	added   []membership
	removed []membership
	dumped  int

	refreshed int
	addErr    error
	sendErr   error
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
	return m.friends, nil
}

func (m *mockPlatformRepo) Groups(ctx context.Context, refresh bool) ([]domain.Group, error) {
	if refresh {
		m.refreshed++
	}
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
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, sentText{ChatID: chatID, Text: text})
	return nil
}

func (m *mockPlatformRepo) AddMember(ctx context.Context, groupID string, user domain.User) error {
	if m.addErr != nil {
		return m.addErr
	}
	m.added = append(m.added, membership{GroupID: groupID, UserID: user.ID})
	return nil
}

func (m *mockPlatformRepo) RemoveMember(ctx context.Context, groupID string, user domain.User) error {
	m.removed = append(m.removed, membership{GroupID: groupID, UserID: user.ID})
	return nil
}

func (m *mockPlatformRepo) AcceptFriend(ctx context.Context, msg *domain.Message) (domain.User, error) {
	return msg.Sender, nil
}

func (m *mockPlatformRepo) DumpSession(ctx context.Context) error {
	m.dumped++
	return nil
}

func (m *mockPlatformRepo) Run(ctx context.Context, handler repo.MessageHandler) error {
	<-ctx.Done()
	return nil
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
