package server

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/groupbot-dev/groupbot/internal/biz/domain"
	"github.com/groupbot-dev/groupbot/internal/biz/repo"
	"github.com/groupbot-dev/groupbot/internal/biz/usecase"
	"github.com/groupbot-dev/groupbot/internal/metrics"
	"github.com/groupbot-dev/groupbot/internal/service"
)

// dedupWindow is how long a message ID is remembered
const dedupWindow = 5 * time.Minute

// BotServer feeds platform events through the router one at a time
type BotServer struct {
	platform  repo.PlatformRepo
	history   repo.HistoryRepo
	statusUC  *usecase.StatusUsecase
	router    *service.Router
	heartbeat *service.Heartbeat // nil when there is nowhere to report
	reportTo  string             // Chat for the startup report, "" for none
	logger    zerolog.Logger
	now       func() time.Time

	// Platforms may deliver from several goroutines; handlers run one at a time
	dispatchMu sync.Mutex

	// Message deduplication cache
	seenMsgsMu sync.Mutex
	seenMsgs   map[string]time.Time // msgID -> timestamp
}

// NewBotServer creates a new bot server
func NewBotServer(bc *service.Context, router *service.Router, heartbeat *service.Heartbeat, reportTo string) *BotServer {
	return &BotServer{
		platform:  bc.Platform,
		history:   bc.History,
		statusUC:  bc.UC.Status,
		router:    router,
		heartbeat: heartbeat,
		reportTo:  reportTo,
		logger:    bc.Logger,
		now:       time.Now,
		seenMsgs:  make(map[string]time.Time),
	}
}

// Start reports status, persists the login session and blocks receiving
// messages until ctx is cancelled or the platform disconnects.
func (s *BotServer) Start(ctx context.Context) error {
	if s.reportTo != "" {
		if err := s.platform.SendText(ctx, s.reportTo, s.statusUC.Snapshot().String()); err != nil {
			s.logger.Warn().Err(err).Msg("failed to send startup report")
		}
	}

	if err := s.platform.DumpSession(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("failed to dump login session")
	}

	if s.heartbeat != nil {
		s.heartbeat.Start()
		defer s.heartbeat.Stop()
	}

	s.logger.Info().Str("platform", s.platform.Name()).Msg("bot started")
	return s.platform.Run(ctx, s.HandleMessage)
}

// HandleMessage handles one inbound message
func (s *BotServer) HandleMessage(msg *domain.Message) {
	if !s.markMessageSeen(msg.ID) {
		metrics.MessagesDuplicate.Inc()
		s.logger.Debug().Str("msg_id", msg.ID).Msg("duplicate message ignored")
		return
	}

	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	if msg.ReceiveTime.IsZero() {
		msg.ReceiveTime = s.now()
	}
	metrics.MessagesReceived.WithLabelValues(string(msg.ChatKind), string(msg.Type)).Inc()
	if latency := msg.Latency(); latency > 0 {
		metrics.MessageLatency.Observe(latency.Seconds())
	}
	s.statusUC.MarkReceived(msg)

	s.logger.Debug().
		Str("msg_id", msg.ID).
		Str("chat_id", msg.ChatID).
		Str("type", string(msg.Type)).
		Str("sender", msg.EffectiveSender().Name).
		Msg("received " + truncate(msg.Text, 50))

	s.router.Dispatch(context.Background(), msg)

	// Appended after dispatch so the rate limiter never sees the message it is judging
	s.history.Append(msg)
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// markMessageSeen records msgID and reports whether it was new.
// Messages without an ID are always new.
func (s *BotServer) markMessageSeen(msgID string) bool {
	if msgID == "" {
		return true
	}

	s.seenMsgsMu.Lock()
	defer s.seenMsgsMu.Unlock()

	now := s.now()
	if ts, exists := s.seenMsgs[msgID]; exists && now.Sub(ts) <= dedupWindow {
		return false
	}
	s.seenMsgs[msgID] = now

	// Clean up expired records while holding the lock
	cutoff := now.Add(-dedupWindow)
	for id, ts := range s.seenMsgs {
		if ts.Before(cutoff) {
			delete(s.seenMsgs, id)
		}
	}
	return true
}
