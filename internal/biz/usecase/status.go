package usecase

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/groupbot-dev/groupbot/internal/biz/domain"
	"github.com/groupbot-dev/groupbot/internal/biz/repo"
)

// Snapshot is a point-in-time status report
type Snapshot struct {
	Now         time.Time     `json:"now"`
	Uptime      time.Duration `json:"uptime"`
	MemoryBytes uint64        `json:"memory_bytes"`
	Messages    int           `json:"messages"`
}

// String formats the snapshot for chat
func (s Snapshot) String() string {
	return fmt.Sprintf("[now] %s\n[uptime] %s\n[memory] %s\n[messages] %d",
		s.Now.Format("15:04:05"),
		s.Uptime.Truncate(time.Second),
		humanize.IBytes(s.MemoryBytes),
		s.Messages,
	)
}

// StatusUsecase reports process health
type StatusUsecase struct {
	historyRepo repo.HistoryRepo
	startedAt   time.Time
	now         func() time.Time
	memory      func() uint64

	lastReceived atomic.Pointer[domain.Message]
}

// NewStatusUsecase creates a new status usecase. Uptime counts from now.
func NewStatusUsecase(historyRepo repo.HistoryRepo) *StatusUsecase {
	return &StatusUsecase{
		historyRepo: historyRepo,
		startedAt:   time.Now(),
		now:         time.Now,
		memory:      runtimeMemory,
	}
}

// SetClock replaces the time source and restarts the uptime counter (tests)
func (uc *StatusUsecase) SetClock(now func() time.Time) {
	uc.now = now
	uc.startedAt = now()
}

// Snapshot returns the current status
func (uc *StatusUsecase) Snapshot() Snapshot {
	now := uc.now()
	return Snapshot{
		Now:         now,
		Uptime:      now.Sub(uc.startedAt),
		MemoryBytes: uc.memory(),
		Messages:    uc.historyRepo.Len(),
	}
}

// MarkReceived records msg as the last received message
func (uc *StatusUsecase) MarkReceived(msg *domain.Message) {
	uc.lastReceived.Store(msg)
}

// LastLatency returns the latency of the last received message
func (uc *StatusUsecase) LastLatency() (time.Duration, bool) {
	msg := uc.lastReceived.Load()
	if msg == nil {
		return 0, false
	}
	return msg.Latency(), true
}

// FormatLatency formats a latency in seconds
func FormatLatency(d time.Duration) string {
	return fmt.Sprintf("%.2f", d.Seconds())
}

func runtimeMemory() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.Sys
}
