package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/groupbot-dev/groupbot/internal/biz/domain"
	"github.com/groupbot-dev/groupbot/internal/biz/repo"
)

const (
	// DefaultGroupCapacity is the member count at which a group is treated as full
	DefaultGroupCapacity = 495

	alreadyJoinedReply = "你已加入了\n"
	verifiedReply      = "验证通过 [嘿哈]"
)

// InviteConfig contains join flow configuration
type InviteConfig struct {
	Code     string // Group code a user must mention to be invited
	Capacity int
}

// InviteResult describes what the join flow did
type InviteResult struct {
	Joined []domain.Group // Managed groups the user was already in
	Added  *domain.Group  // Group the user was invited into
}

// InviteUsecase invites users into the managed groups
type InviteUsecase struct {
	platform repo.PlatformRepo
	groupUC  *GroupUsecase
	config   InviteConfig
	logger   zerolog.Logger
}

// NewInviteUsecase creates a new invite usecase
func NewInviteUsecase(platform repo.PlatformRepo, groupUC *GroupUsecase, config InviteConfig, logger zerolog.Logger) *InviteUsecase {
	if config.Capacity <= 0 {
		config.Capacity = DefaultGroupCapacity
	}
	return &InviteUsecase{
		platform: platform,
		groupUC:  groupUC,
		config:   config,
		logger:   logger,
	}
}

// ValidCode checks if text contains the group code, ignoring case
func (uc *InviteUsecase) ValidCode(text string) bool {
	if uc.config.Code == "" {
		return false
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(uc.config.Code))
}

// Invite tells a user which managed groups they are already in, or adds them to one
func (uc *InviteUsecase) Invite(ctx context.Context, user domain.User) (*InviteResult, error) {
	groups, err := uc.groupUC.List(ctx, false)
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("%w: no managed groups", domain.ErrGroupNotFound)
	}

	result := &InviteResult{}
	for _, g := range groups {
		members, err := uc.platform.Members(ctx, g.ID)
		if err != nil {
			return nil, fmt.Errorf("list members of %s: %w", g.Name, err)
		}
		if domain.Has(members, user) {
			result.Joined = append(result.Joined, g)
		}
	}

	if len(result.Joined) > 0 {
		names := make([]string, len(result.Joined))
		for i, g := range result.Joined {
			names[i] = g.Name
		}
		return result, uc.platform.SendText(ctx, user.ID, alreadyJoinedReply+strings.Join(names, "\n"))
	}

	group, ok := PickGroup(groups, uc.config.Capacity)
	if !ok {
		uc.logger.Warn().Int("capacity", uc.config.Capacity).Msg("all groups are full")
	}

	if err := uc.platform.SendText(ctx, user.ID, verifiedReply); err != nil {
		return nil, fmt.Errorf("send verified reply: %w", err)
	}
	if err := uc.platform.AddMember(ctx, group.ID, user); err != nil {
		return nil, fmt.Errorf("add %s to %s: %w", user.Name, group.Name, err)
	}

	uc.logger.Info().Str("user", user.Name).Str("group", group.Name).Msg("invited user")
	result.Added = &group
	return result, nil
}

// PickGroup returns the fullest group that still has room. When every group is
// at capacity it returns the largest one and false. groups must not be empty.
func PickGroup(groups []domain.Group, capacity int) (domain.Group, bool) {
	var best, largest domain.Group
	found := false
	for i, g := range groups {
		if i == 0 || g.Size > largest.Size {
			largest = g
		}
		if g.Size < capacity && (!found || g.Size > best.Size) {
			best = g
			found = true
		}
	}
	if !found {
		return largest, false
	}
	return best, true
}
