package data

import (
	"sync"

	"github.com/groupbot-dev/groupbot/internal/biz/domain"
	"github.com/groupbot-dev/groupbot/internal/biz/repo"
)

// DefaultHistorySize is the number of messages retained by default
const DefaultHistorySize = 200

// historyRepo is the in-memory message log
type historyRepo struct {
	mu       sync.RWMutex
	messages []*domain.Message
	max      int
}

// NewHistoryRepo creates an in-memory history keeping the last max messages
func NewHistoryRepo(max int) repo.HistoryRepo {
	if max <= 0 {
		max = DefaultHistorySize
	}
	return &historyRepo{
		messages: make([]*domain.Message, 0, max),
		max:      max,
	}
}

// Append adds a message, dropping the oldest when full
func (r *historyRepo) Append(msg *domain.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.messages) == r.max {
		copy(r.messages, r.messages[1:])
		r.messages[len(r.messages)-1] = msg
		return
	}
	r.messages = append(r.messages, msg)
}

// Reverse yields messages newest first
func (r *historyRepo) Reverse(yield func(msg *domain.Message) bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := len(r.messages) - 1; i >= 0; i-- {
		if !yield(r.messages[i]) {
			return
		}
	}
}

// Recent returns up to n most recent messages, oldest first
func (r *historyRepo) Recent(n int) []*domain.Message {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n > len(r.messages) {
		n = len(r.messages)
	}
	if n <= 0 {
		return nil
	}
	out := make([]*domain.Message, n)
	copy(out, r.messages[len(r.messages)-n:])
	return out
}

// Last returns the most recent message
func (r *historyRepo) Last() *domain.Message {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.messages) == 0 {
		return nil
	}
	return r.messages[len(r.messages)-1]
}

// Len returns the number of retained messages
func (r *historyRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.messages)
}
