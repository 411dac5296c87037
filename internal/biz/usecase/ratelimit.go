package usecase

import (
	"time"

	"github.com/groupbot-dev/groupbot/internal/biz/domain"
	"github.com/groupbot-dev/groupbot/internal/biz/repo"
)

// ThrottleReply is sent in place of a reply when a sender is throttled
const ThrottleReply = "🙊"

// RateLimitConfig contains rate limit configuration
type RateLimitConfig struct {
	Period      time.Duration // Sliding window length
	MaxMessages int           // Messages allowed per window, the current one included
}

// DefaultRateLimitConfig returns the default rate limit configuration
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Period:      10 * time.Second,
		MaxMessages: 3,
	}
}

// RateLimitUsecase decides whether a sender is sending too fast
type RateLimitUsecase struct {
	historyRepo repo.HistoryRepo
	config      RateLimitConfig
	now         func() time.Time
}

// NewRateLimitUsecase creates a new rate limit usecase
func NewRateLimitUsecase(historyRepo repo.HistoryRepo, config RateLimitConfig) *RateLimitUsecase {
	return &RateLimitUsecase{
		historyRepo: historyRepo,
		config:      config,
		now:         time.Now,
	}
}

// SetClock replaces the time source (tests)
func (uc *RateLimitUsecase) SetClock(now func() time.Time) {
	uc.now = now
}

// Config returns the rate limit configuration
func (uc *RateLimitUsecase) Config() RateLimitConfig {
	return uc.config
}

// Count returns how many messages the effective sender of msg has sent within
// the period, msg included. msg must not be in the history log yet.
func (uc *RateLimitUsecase) Count(msg *domain.Message) int {
	now := uc.now()
	sender := msg.EffectiveSender()
	count := 1

	uc.historyRepo.Reverse(func(m *domain.Message) bool {
		if !m.EffectiveSender().Is(sender) {
			return true
		}
		if now.Sub(messageTime(m)) > uc.config.Period {
			return false
		}
		count++
		return true
	})
	return count
}

// ShouldThrottle checks if msg exceeds the limit.
// Group messages are only throttled when they @-mention the bot.
func (uc *RateLimitUsecase) ShouldThrottle(msg *domain.Message) bool {
	if msg.IsGroup() && !msg.IsAt {
		return false
	}
	return uc.Count(msg) > uc.config.MaxMessages
}

// messageTime prefers the platform timestamp and falls back to receipt time
func messageTime(m *domain.Message) time.Time {
	if !m.CreateTime.IsZero() {
		return m.CreateTime
	}
	return m.ReceiveTime
}
