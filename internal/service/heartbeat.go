package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/groupbot-dev/groupbot/internal/biz/repo"
	"github.com/groupbot-dev/groupbot/internal/biz/usecase"
	"github.com/groupbot-dev/groupbot/internal/metrics"
)

// DefaultHeartbeatInterval is how often the status report goes to the admin group
const DefaultHeartbeatInterval = 10 * time.Minute

// Heartbeat periodically reports the status snapshot to a chat
type Heartbeat struct {
	platform repo.PlatformRepo
	statusUC *usecase.StatusUsecase
	chatID   string
	logger   zerolog.Logger

	interval time.Duration
	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewHeartbeat creates a heartbeat reporting to chatID every interval
func NewHeartbeat(platform repo.PlatformRepo, statusUC *usecase.StatusUsecase, chatID string, interval time.Duration, logger zerolog.Logger) *Heartbeat {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &Heartbeat{
		platform: platform,
		statusUC: statusUC,
		chatID:   chatID,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start starts the loop. The first report is sent after one interval.
func (h *Heartbeat) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return
	}
	h.running = true
	h.wg.Add(1)
	go h.loop()
	h.logger.Info().Dur("interval", h.interval).Str("chat_id", h.chatID).Msg("heartbeat started")
}

// Stop stops the loop and waits for it to exit
func (h *Heartbeat) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	close(h.stopCh)
	h.mu.Unlock()

	h.wg.Wait()
	h.logger.Info().Msg("heartbeat stopped")
}

func (h *Heartbeat) loop() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.Beat(context.Background())
		case <-h.stopCh:
			return
		}
	}
}

// Beat sends one status report
func (h *Heartbeat) Beat(ctx context.Context) {
	text := h.statusUC.Snapshot().String()
	if err := h.platform.SendText(ctx, h.chatID, text); err != nil {
		metrics.HeartbeatsSent.WithLabelValues("error").Inc()
		h.logger.Warn().Err(err).Str("chat_id", h.chatID).Msg("heartbeat failed: " + err.Error())
		return
	}
	metrics.HeartbeatsSent.WithLabelValues("ok").Inc()
	h.logger.Debug().Str("chat_id", h.chatID).Msg("heartbeat sent")
}
