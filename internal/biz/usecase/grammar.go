package usecase

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"strings"
	"unicode"

	"github.com/groupbot-dev/groupbot/internal/biz/domain"
)

// Output is a lazily produced sequence of reply lines
type Output = iter.Seq2[string, error]

// Verb is one form of the admin command grammar
type Verb struct {
	Name    string
	Usage   string
	MinArgs int
	MaxArgs int
	Rest    bool // The last argument takes the remainder of the text verbatim

	// Validate optionally checks argument values at parse time
	Validate func(args []string) error
	Run      func(ctx context.Context, args []string) Output
}

// Invocation is a parsed grammar command
type Invocation struct {
	Verb *Verb
	Args []string
}

// Grammar parses admin text into verb invocations
type Grammar struct {
	verbs map[string]*Verb
}

// NewGrammar creates a grammar from verbs. Verb names are matched case-insensitively.
func NewGrammar(verbs ...*Verb) *Grammar {
	g := &Grammar{verbs: make(map[string]*Verb, len(verbs))}
	for _, v := range verbs {
		g.verbs[strings.ToLower(v.Name)] = v
	}
	return g
}

// Parse parses text. Failures wrap domain.ErrMalformedCommand.
func (g *Grammar) Parse(text string) (*Invocation, error) {
	head := splitFields(text, 2)
	if len(head) == 0 {
		return nil, fmt.Errorf("%w: empty", domain.ErrMalformedCommand)
	}

	verb, ok := g.verbs[strings.ToLower(head[0])]
	if !ok {
		return nil, fmt.Errorf("%w: unknown verb %q", domain.ErrMalformedCommand, head[0])
	}

	var args []string
	if verb.Rest {
		args = splitFields(text, verb.MaxArgs+1)
	} else {
		args = strings.Fields(text)
	}
	args = args[1:]

	if len(args) < verb.MinArgs || len(args) > verb.MaxArgs {
		return nil, fmt.Errorf("%w: usage: %s", domain.ErrMalformedCommand, verb.Usage)
	}
	if verb.Validate != nil {
		if err := verb.Validate(args); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrMalformedCommand, verb.Name, err)
		}
	}
	return &Invocation{Verb: verb, Args: args}, nil
}

// Usage lists the usage line of every verb
func (g *Grammar) Usage() []string {
	var lines []string
	for _, v := range g.verbs {
		lines = append(lines, v.Usage)
	}
	sort.Strings(lines)
	return lines
}

// splitFields splits s into at most n whitespace-separated fields.
// The last field keeps the remainder verbatim.
func splitFields(s string, n int) []string {
	var fields []string
	s = strings.TrimSpace(s)
	for s != "" {
		if len(fields) == n-1 {
			return append(fields, s)
		}
		i := strings.IndexFunc(s, unicode.IsSpace)
		if i < 0 {
			return append(fields, s)
		}
		fields = append(fields, s[:i])
		s = strings.TrimLeftFunc(s[i:], unicode.IsSpace)
	}
	return fields
}
