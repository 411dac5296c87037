package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/groupbot-dev/groupbot/internal/biz/domain"
	"github.com/groupbot-dev/groupbot/internal/biz/repo"
)

const (
	defaultHistoryLines = 5
	maxHistoryLines     = 50
	maxMemberNames      = 30
)

// AdminDeps are the collaborators of the admin commands
type AdminDeps struct {
	Platform repo.PlatformRepo
	History  repo.HistoryRepo
	Groups   *GroupUsecase
	Invite   *InviteUsecase
	Status   *StatusUsecase

	// Restart replaces the running process. It only returns on failure.
	Restart func() error
}

// NewCommandTable builds the fixed admin command table
func NewCommandTable(deps AdminDeps) []Command {
	return []Command{
		{
			Name:        "g",
			Description: "refresh managed groups",
			Run: func(ctx context.Context) Output {
				return func(yield func(string, error) bool) {
					if !yield("updating groups...", nil) {
						return
					}
					groups, err := deps.Groups.List(ctx, true)
					if err != nil {
						yield("", err)
						return
					}
					for _, g := range groups {
						if !yield(fmt.Sprintf("%s: %d", g.Name, g.Size), nil) {
							return
						}
					}
				}
			},
		},
		{
			Name:        "s",
			Description: "status",
			Run: func(ctx context.Context) Output {
				return func(yield func(string, error) bool) {
					yield(deps.Status.Snapshot().String(), nil)
				}
			},
		},
		{
			Name:        "r",
			Description: "restart",
			Run: func(ctx context.Context) Output {
				return func(yield func(string, error) bool) {
					if !yield("restarting bot...", nil) {
						return
					}
					if err := deps.Platform.DumpSession(ctx); err != nil {
						yield("", fmt.Errorf("dump session: %w", err))
						return
					}
					if err := deps.Restart(); err != nil {
						yield("", fmt.Errorf("restart: %w", err))
					}
				}
			},
		},
		{
			Name:        "l",
			Description: "latency of the last message",
			Run: func(ctx context.Context) Output {
				return func(yield func(string, error) bool) {
					latency, _ := deps.Status.LastLatency()
					yield(FormatLatency(latency), nil)
				}
			},
		},
	}
}

// NewAdminGrammar builds the admin command grammar
func NewAdminGrammar(deps AdminDeps) *Grammar {
	var grammar *Grammar
	grammar = NewGrammar(
		&Verb{
			Name:    "say",
			Usage:   "say <group> <text>",
			MinArgs: 1,
			MaxArgs: 1,
			Rest:    true,
			// Group names may contain spaces, so the split happens against the managed groups at run time
			Validate: func(args []string) error {
				if len(splitFields(args[0], 2)) < 2 {
					return errors.New("missing text")
				}
				return nil
			},
			Run: func(ctx context.Context, args []string) Output {
				g, text, err := deps.Groups.FindPrefix(ctx, args[0])
				if err != nil {
					return fail(err)
				}
				if text == "" {
					return fail(fmt.Errorf("say to %s: missing text", g.Name))
				}
				if err := deps.Platform.SendText(ctx, g.ID, text); err != nil {
					return fail(fmt.Errorf("send to %s: %w", g.Name, err))
				}
				return lines(okReply)
			},
		},
		&Verb{
			Name:    "invite",
			Usage:   "invite <friend>",
			MinArgs: 1,
			MaxArgs: 1,
			Rest:    true,
			Run: func(ctx context.Context, args []string) Output {
				friends, err := deps.Platform.Friends(ctx)
				if err != nil {
					return fail(fmt.Errorf("list friends: %w", err))
				}
				user, ok := findUser(friends, args[0])
				if !ok {
					return fail(fmt.Errorf("%w: %s", domain.ErrUserNotFound, args[0]))
				}
				result, err := deps.Invite.Invite(ctx, user)
				if err != nil {
					return fail(err)
				}
				if result.Added != nil {
					return lines(fmt.Sprintf("invited %s into %s", user.Name, result.Added.Name))
				}
				names := make([]string, len(result.Joined))
				for i, g := range result.Joined {
					names[i] = g.Name
				}
				return lines(fmt.Sprintf("%s is already in %s", user.Name, strings.Join(names, ", ")))
			},
		},
		&Verb{
			Name:     "history",
			Usage:    "history [n]",
			MinArgs:  0,
			MaxArgs:  1,
			Validate: validateHistoryArgs,
			Run: func(ctx context.Context, args []string) Output {
				n := defaultHistoryLines
				if len(args) == 1 {
					n, _ = strconv.Atoi(args[0])
				}
				recent := deps.History.Recent(n)
				if len(recent) == 0 {
					return lines("no messages")
				}
				entries := make([]string, len(recent))
				for i, m := range recent {
					entries[i] = formatHistoryEntry(m)
				}
				return lines(strings.Join(entries, "\n"))
			},
		},
		&Verb{
			Name:    "members",
			Usage:   "members <group>",
			MinArgs: 1,
			MaxArgs: 1,
			Rest:    true,
			Run: func(ctx context.Context, args []string) Output {
				g, err := deps.Groups.Find(ctx, args[0])
				if err != nil {
					return fail(err)
				}
				members, err := deps.Platform.Members(ctx, g.ID)
				if err != nil {
					return fail(fmt.Errorf("list members of %s: %w", g.Name, err))
				}
				shown := members
				if len(shown) > maxMemberNames {
					shown = shown[:maxMemberNames]
				}
				names := make([]string, len(shown))
				for i, m := range shown {
					names[i] = m.Name
				}
				return lines(fmt.Sprintf("%s (%d):\n%s", g.Name, len(members), strings.Join(names, ", ")))
			},
		},
		&Verb{
			Name:    "help",
			Usage:   "help",
			MaxArgs: 0,
			Run: func(ctx context.Context, args []string) Output {
				return lines(strings.Join(append([]string{"g | s | r | l | !<shell>"}, grammar.Usage()...), "\n"))
			},
		},
	)
	return grammar
}

func validateHistoryArgs(args []string) error {
	if len(args) == 0 {
		return nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return errors.New("n must be a number")
	}
	if n < 1 || n > maxHistoryLines {
		return fmt.Errorf("n must be between 1 and %d", maxHistoryLines)
	}
	return nil
}

func formatHistoryEntry(m *domain.Message) string {
	sender := m.EffectiveSender().Name
	if m.IsGroup() {
		sender = m.Sender.Name + "/" + sender
	}
	text := m.Text
	if m.Type != domain.MsgText {
		text = "[" + string(m.Type) + "]"
	}
	return fmt.Sprintf("[%s] %s: %s", messageTime(m).Format("15:04:05"), sender, text)
}
