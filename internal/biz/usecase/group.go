package usecase

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/groupbot-dev/groupbot/internal/biz/domain"
	"github.com/groupbot-dev/groupbot/internal/biz/repo"
)

// GroupUsecase tracks the managed groups. The set is resolved once at startup;
// sizes are read from the platform on demand.
type GroupUsecase struct {
	platform repo.PlatformRepo
	managed  []string // Group IDs, config order
}

// NewGroupUsecase creates a new group usecase over already resolved group IDs
func NewGroupUsecase(platform repo.PlatformRepo, managedIDs []string) *GroupUsecase {
	return &GroupUsecase{
		platform: platform,
		managed:  managedIDs,
	}
}

// ResolveGroups maps configured keys (ID or name) to the platform's groups
func ResolveGroups(ctx context.Context, platform repo.PlatformRepo, keys []string) ([]domain.Group, error) {
	groups, err := platform.Groups(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}

	var resolved []domain.Group
	for _, key := range keys {
		g, ok := findGroup(groups, key)
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrGroupNotFound, key)
		}
		resolved = append(resolved, g)
	}
	return resolved, nil
}

// IDs returns the managed group IDs
func (uc *GroupUsecase) IDs() []string {
	return uc.managed
}

// IsManaged checks if chatID is a managed group
func (uc *GroupUsecase) IsManaged(chatID string) bool {
	for _, id := range uc.managed {
		if id == chatID {
			return true
		}
	}
	return false
}

// List returns the managed groups in config order. refresh reloads member counts.
func (uc *GroupUsecase) List(ctx context.Context, refresh bool) ([]domain.Group, error) {
	groups, err := uc.platform.Groups(ctx, refresh)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}

	managed := make([]domain.Group, 0, len(uc.managed))
	for _, id := range uc.managed {
		if g, ok := findGroup(groups, id); ok {
			managed = append(managed, g)
		}
	}
	return managed, nil
}

// Find returns the managed group with the given ID or name
func (uc *GroupUsecase) Find(ctx context.Context, key string) (domain.Group, error) {
	groups, err := uc.List(ctx, false)
	if err != nil {
		return domain.Group{}, err
	}
	g, ok := findGroup(groups, key)
	if !ok {
		return domain.Group{}, fmt.Errorf("%w: %s", domain.ErrGroupNotFound, key)
	}
	return g, nil
}

// FindPrefix returns the managed group whose ID or name is the longest prefix of
// text ending at whitespace or at the end of text, and the remainder after it
func (uc *GroupUsecase) FindPrefix(ctx context.Context, text string) (domain.Group, string, error) {
	groups, err := uc.List(ctx, false)
	if err != nil {
		return domain.Group{}, "", err
	}

	var best domain.Group
	bestLen := 0
	for _, g := range groups {
		for _, key := range []string{g.ID, g.Name} {
			if len(key) > bestLen && hasKeyPrefix(text, key) {
				best, bestLen = g, len(key)
			}
		}
	}
	if bestLen == 0 {
		key, _, _ := strings.Cut(strings.TrimSpace(text), " ")
		return domain.Group{}, "", fmt.Errorf("%w: %s", domain.ErrGroupNotFound, key)
	}
	return best, strings.TrimLeftFunc(text[bestLen:], unicode.IsSpace), nil
}

func hasKeyPrefix(text, key string) bool {
	if key == "" || !strings.HasPrefix(text, key) {
		return false
	}
	rest := text[len(key):]
	if rest == "" {
		return true
	}
	r, _ := utf8.DecodeRuneInString(rest)
	return unicode.IsSpace(r)
}

// findGroup matches by ID first, then by name
func findGroup(groups []domain.Group, key string) (domain.Group, bool) {
	for _, g := range groups {
		if g.ID == key {
			return g, true
		}
	}
	for _, g := range groups {
		if g.Name == key {
			return g, true
		}
	}
	return domain.Group{}, false
}
