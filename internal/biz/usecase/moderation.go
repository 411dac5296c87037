package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/groupbot-dev/groupbot/internal/biz/domain"
	"github.com/groupbot-dev/groupbot/internal/biz/repo"
)

// SyncSuffix is appended to messages forwarded between managed groups
const SyncSuffix = "↑隔壁消息↑回复请@机器人"

// DefaultWelcome is the welcome template; {name} is replaced by the new member's name
const DefaultWelcome = "🎉 欢迎 @{name} 的加入！"

// mentionSeparator follows an @name mention in WeChat text
const mentionSeparator = "\u2005"

var (
	joinPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^"(.+)"通过`),
		regexp.MustCompile(`邀请"(.+)"加入`),
	}
	kickPattern = regexp.MustCompile(`^移出\s*@(.+?)(?:\x{2005}?\s*$)`)
)

// KickResult is the reply to a remote kick request
type KickResult struct {
	Reply   string
	Removed *domain.User
}

// ModerationUsecase handles managed group housekeeping: welcomes, remote kicks
// and forwarding @-mentions between groups
type ModerationUsecase struct {
	platform repo.PlatformRepo
	authUC   *AuthUsecase
	groupUC  *GroupUsecase
	welcome  string
	logger   zerolog.Logger
}

// NewModerationUsecase creates a new moderation usecase
func NewModerationUsecase(
	platform repo.PlatformRepo,
	authUC *AuthUsecase,
	groupUC *GroupUsecase,
	welcome string,
	logger zerolog.Logger,
) *ModerationUsecase {
	if welcome == "" {
		welcome = DefaultWelcome
	}
	return &ModerationUsecase{
		platform: platform,
		authUC:   authUC,
		groupUC:  groupUC,
		welcome:  welcome,
		logger:   logger,
	}
}

// NewMemberName extracts the joiner's name from a group join notice
func NewMemberName(text string) (string, bool) {
	for _, re := range joinPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// Welcome returns the welcome text for a join notice
func (uc *ModerationUsecase) Welcome(msg *domain.Message) (string, bool) {
	name, ok := NewMemberName(msg.Text)
	if !ok {
		return "", false
	}
	return strings.ReplaceAll(uc.welcome, "{name}", name), true
}

// ParseKick extracts the target name from a "移出 @name" request
func ParseKick(text string) (string, bool) {
	m := kickPattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Kick handles a remote kick request in a managed group.
// It returns nil when msg is not a kick request.
func (uc *ModerationUsecase) Kick(ctx context.Context, msg *domain.Message) (*KickResult, error) {
	name, ok := ParseKick(msg.Text)
	if !ok {
		return nil, nil
	}

	issuer := msg.EffectiveSender()
	if !uc.authUC.IsPrivilegedUser(issuer) {
		uc.logger.Warn().
			Str("issuer", issuer.Name).
			Str("target", name).
			Msg(fmt.Sprintf("%s tried to remove %s", issuer.Name, name))
		return &KickResult{Reply: "感觉有点不对劲… " + issuer.FormatMention()}, nil
	}

	members, err := uc.platform.Members(ctx, msg.ChatID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}

	var matches []domain.User
	for _, m := range members {
		if m.Name == name {
			matches = append(matches, m)
		}
	}
	if len(matches) != 1 {
		return nil, fmt.Errorf("%w: %d members named %q", domain.ErrUserNotFound, len(matches), name)
	}
	target := matches[0]

	if uc.authUC.IsPrivilegedUser(target) {
		return &KickResult{Reply: "无法移出 " + target.FormatMention()}, nil
	}

	if err := uc.platform.RemoveMember(ctx, msg.ChatID, target); err != nil {
		return nil, fmt.Errorf("remove %s: %w", target.Name, err)
	}
	uc.logger.Info().Str("issuer", issuer.Name).Str("target", target.Name).Msg("removed member")
	return &KickResult{Reply: "成功移出 " + target.FormatMention(), Removed: &target}, nil
}

// SemiSync forwards msg, with the bot mention stripped, to every other managed group
func (uc *ModerationUsecase) SemiSync(ctx context.Context, msg *domain.Message) error {
	self := uc.authUC.Self()
	text := StripMention(msg.Text, self.Name)
	if text == "" {
		return nil
	}

	forwarded := fmt.Sprintf("%s: %s\n%s", msg.EffectiveSender().Name, text, SyncSuffix)
	for _, id := range uc.groupUC.IDs() {
		if id == msg.ChatID {
			continue
		}
		if err := uc.platform.SendText(ctx, id, forwarded); err != nil {
			return fmt.Errorf("sync to %s: %w", id, err)
		}
	}
	return nil
}

// StripMention removes "@name" mentions of the bot from text
func StripMention(text, name string) string {
	if name == "" {
		return strings.TrimSpace(text)
	}
	mention := "@" + name
	text = strings.ReplaceAll(text, mention+mentionSeparator, "")
	text = strings.ReplaceAll(text, mention, "")
	return strings.TrimSpace(text)
}
