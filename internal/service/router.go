package service

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/rs/zerolog"

	"github.com/groupbot-dev/groupbot/internal/biz"
	"github.com/groupbot-dev/groupbot/internal/biz/domain"
	"github.com/groupbot-dev/groupbot/internal/biz/repo"
	"github.com/groupbot-dev/groupbot/internal/biz/usecase"
	"github.com/groupbot-dev/groupbot/internal/metrics"
)

// Context is the bot state handed to every handler. It is built once after login.
type Context struct {
	Platform   repo.PlatformRepo
	History    repo.HistoryRepo
	UC         *biz.Usecases
	Self       domain.User
	AdminGroup domain.Group // Zero when no admin group is configured
	Logger     zerolog.Logger
}

// Send sends each non-empty line as its own message. Failures are logged, not returned.
func (bc *Context) Send(ctx context.Context, chatID string, lines ...string) {
	for _, line := range lines {
		if line == "" {
			continue
		}
		if err := bc.Platform.SendText(ctx, chatID, line); err != nil {
			metrics.RepliesSent.WithLabelValues("error").Inc()
			bc.Logger.Warn().Err(err).Str("chat_id", chatID).Msg(fmt.Sprintf("failed to send to %s: %v", chatID, err))
			continue
		}
		metrics.RepliesSent.WithLabelValues("ok").Inc()
	}
}

// SendOutput sends lazily produced lines in order and stops at the first error
func (bc *Context) SendOutput(ctx context.Context, chatID string, out usecase.Output) error {
	for line, err := range out {
		if err != nil {
			return err
		}
		bc.Send(ctx, chatID, line)
	}
	return nil
}

// Reply is zero or more outbound lines, each sent as its own message to the chat
type Reply []string

// Handler handles a routed message
type Handler func(ctx context.Context, bc *Context, msg *domain.Message) (Reply, error)

// GuardResult tells the router to proceed, or to stop with Reply
type GuardResult struct {
	Proceed bool
	Reply   Reply
}

// Guard runs before a handler and may short-circuit it
type Guard func(ctx context.Context, bc *Context, msg *domain.Message) GuardResult

// WithGuards wraps h so each guard runs first, in order
func WithGuards(h Handler, guards ...Guard) Handler {
	return func(ctx context.Context, bc *Context, msg *domain.Message) (Reply, error) {
		for _, g := range guards {
			if res := g(ctx, bc, msg); !res.Proceed {
				return res.Reply, nil
			}
		}
		return h(ctx, bc, msg)
	}
}

// Predicate selects messages for a route. Empty fields match anything.
type Predicate struct {
	Kinds       []domain.ChatKind
	Types       []domain.MsgType
	Chats       []string // Chat IDs
	IncludeSelf bool     // Also match messages sent by the bot account
	Where       func(msg *domain.Message) bool
}

// Match checks if msg satisfies every condition
func (p Predicate) Match(msg *domain.Message) bool {
	if msg.FromSelf && !p.IncludeSelf {
		return false
	}
	if len(p.Kinds) > 0 && !contains(p.Kinds, msg.ChatKind) {
		return false
	}
	if len(p.Types) > 0 && !contains(p.Types, msg.Type) {
		return false
	}
	if len(p.Chats) > 0 && !contains(p.Chats, msg.ChatID) {
		return false
	}
	if p.Where != nil && !p.Where(msg) {
		return false
	}
	return true
}

func contains[T comparable](items []T, v T) bool {
	for _, item := range items {
		if item == v {
			return true
		}
	}
	return false
}

// Route pairs a predicate with a guarded handler
type Route struct {
	Name   string
	Match  Predicate
	Guards []Guard
	Handle Handler
}

// Router dispatches each message to the first matching route
type Router struct {
	bc     *Context
	routes []Route
}

// NewRouter creates a router over routes, in priority order
func NewRouter(bc *Context, routes []Route) *Router {
	return &Router{
		bc:     bc,
		routes: routes,
	}
}

// Dispatch routes msg and sends the reply. Errors and panics in handlers are
// logged and never escape. Returns false when no route matched.
func (r *Router) Dispatch(ctx context.Context, msg *domain.Message) bool {
	route := r.match(msg)
	if route == nil {
		return false
	}
	metrics.RouteHits.WithLabelValues(route.Name).Inc()

	reply, err := r.run(ctx, route, msg)
	if err != nil {
		metrics.HandlerErrors.WithLabelValues(route.Name, "error").Inc()
		r.bc.Logger.Error().
			Err(err).
			Str("route", route.Name).
			Str("msg_id", msg.ID).
			Msg(fmt.Sprintf("uncaught error in %s: %v", route.Name, err))
		return true
	}

	r.bc.Send(ctx, msg.ChatID, reply...)
	return true
}

func (r *Router) match(msg *domain.Message) *Route {
	for i := range r.routes {
		if r.routes[i].Match.Match(msg) {
			return &r.routes[i]
		}
	}
	return nil
}

// run calls the guarded handler, converting a panic into an error
func (r *Router) run(ctx context.Context, route *Route, msg *domain.Message) (reply Reply, err error) {
	defer func() {
		if p := recover(); p != nil {
			metrics.HandlerErrors.WithLabelValues(route.Name, "panic").Inc()
			r.bc.Logger.Debug().Str("stack", string(debug.Stack())).Msg("handler panic")
			reply, err = nil, fmt.Errorf("panic: %v", p)
		}
	}()
	return WithGuards(route.Handle, route.Guards...)(ctx, r.bc, msg)
}
