package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/groupbot-dev/groupbot/internal/biz/domain"
)

func newTestInvite(platform *mockPlatformRepo) *InviteUsecase {
	var ids []string
	for _, g := range platform.groups {
		ids = append(ids, g.ID)
	}
	groupUC := NewGroupUsecase(platform, ids)
	return NewInviteUsecase(platform, groupUC, InviteConfig{Code: "wxpy", Capacity: 495}, zerolog.Nop())
}

func TestPickGroup(t *testing.T) {
	tests := []struct {
		name   string
		groups []domain.Group
		want   string
		ok     bool
	}{
		{
			name:   "fullest with room",
			groups: []domain.Group{{ID: "a", Size: 100}, {ID: "b", Size: 480}, {ID: "c", Size: 300}},
			want:   "b",
			ok:     true,
		},
		{
			name:   "skips full groups",
			groups: []domain.Group{{ID: "a", Size: 495}, {ID: "b", Size: 480}, {ID: "c", Size: 500}},
			want:   "b",
			ok:     true,
		},
		{
			name:   "largest below capacity",
			groups: []domain.Group{{ID: "a", Size: 500}, {ID: "b", Size: 480}, {ID: "c", Size: 300}},
			want:   "b",
			ok:     true,
		},
		{
			name:   "all at or above capacity",
			groups: []domain.Group{{ID: "a", Size: 500}, {ID: "b", Size: 495}, {ID: "c", Size: 496}},
			want:   "a",
			ok:     false,
		},
		{
			name:   "all full returns largest",
			groups: []domain.Group{{ID: "a", Size: 495}, {ID: "b", Size: 500}, {ID: "c", Size: 496}},
			want:   "b",
			ok:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PickGroup(tt.groups, 495)
			if got.ID != tt.want || ok != tt.ok {
				t.Errorf("Expected (%s, %v), got (%s, %v)", tt.want, tt.ok, got.ID, ok)
			}
		})
	}
}

func TestInvite_ValidCode(t *testing.T) {
	uc := newTestInvite(newMockPlatformRepo())

	if !uc.ValidCode("I want to join, code WXPY please") {
		t.Error("Expected case-insensitive code match")
	}
	if uc.ValidCode("hello") {
		t.Error("Expected no match without the code")
	}

	noCode := NewInviteUsecase(newMockPlatformRepo(), nil, InviteConfig{}, zerolog.Nop())
	if noCode.ValidCode("anything") {
		t.Error("An empty code should never match")
	}
}

func TestInvite_AlreadyJoined(t *testing.T) {
	platform := newMockPlatformRepo()
	alice := domain.User{ID: "alice", Name: "Alice"}
	platform.groups = []domain.Group{
		{ID: "g1", Name: "A", Size: 10},
		{ID: "g2", Name: "B", Size: 20},
		{ID: "g3", Name: "C", Size: 30},
	}
	platform.members["g1"] = []domain.User{alice}
	platform.members["g2"] = []domain.User{{ID: "bob"}, alice}
	platform.members["g3"] = []domain.User{{ID: "bob"}}

	result, err := newTestInvite(platform).Invite(context.Background(), alice)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(result.Joined) != 2 || result.Added != nil {
		t.Errorf("Expected two joined groups and no add, got %+v", result)
	}
	if len(platform.sent) != 1 || platform.sent[0] != (sentText{ChatID: "alice", Text: "你已加入了\nA\nB"}) {
		t.Errorf("Expected joined reply, got %+v", platform.sent)
	}
	if len(platform.added) != 0 {
		t.Error("Expected no membership change")
	}
}

func TestInvite_AddsToFullestGroup(t *testing.T) {
	platform := newMockPlatformRepo()
	alice := domain.User{ID: "alice", Name: "Alice"}
	platform.groups = []domain.Group{{ID: "g1", Name: "Group 1", Size: 10}, {ID: "g2", Name: "Group 2", Size: 20}}
	platform.members["g1"] = nil
	platform.members["g2"] = nil

	result, err := newTestInvite(platform).Invite(context.Background(), alice)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if result.Added == nil || result.Added.ID != "g2" {
		t.Errorf("Expected add to g2, got %+v", result.Added)
	}
	if len(platform.sent) != 1 || platform.sent[0].Text != "验证通过 [嘿哈]" {
		t.Errorf("Expected verified reply, got %+v", platform.sent)
	}
	if len(platform.added) != 1 || platform.added[0] != (membership{GroupID: "g2", UserID: "alice"}) {
		t.Errorf("Expected alice added to g2, got %+v", platform.added)
	}
}

func TestInvite_AddFailurePropagates(t *testing.T) {
	platform := newMockPlatformRepo()
	platform.groups = []domain.Group{{ID: "g1", Name: "Group 1"}}
	platform.members["g1"] = nil
	platform.addErr = errors.New("too many invitations")

	_, err := newTestInvite(platform).Invite(context.Background(), domain.User{ID: "alice", Name: "Alice"})
	if err == nil || !strings.Contains(err.Error(), "too many invitations") {
		t.Errorf("Expected add error, got %v", err)
	}
}

func TestInvite_NoManagedGroups(t *testing.T) {
	_, err := newTestInvite(newMockPlatformRepo()).Invite(context.Background(), domain.User{ID: "alice"})
	if !errors.Is(err, domain.ErrGroupNotFound) {
		t.Errorf("Expected ErrGroupNotFound, got %v", err)
	}
}
