package repo

import (
	"github.com/groupbot-dev/groupbot/internal/biz/domain"
)

// HistoryRepo is the retained message log.
// Appends happen on the event loop only; readers may run on other goroutines.
type HistoryRepo interface {
	// Append adds a handled message to the end of the log
	Append(msg *domain.Message)

	// Reverse yields messages newest first until yield returns false
	Reverse(yield func(msg *domain.Message) bool)

	// Recent returns up to n most recent messages, oldest first
	Recent(n int) []*domain.Message

	// Last returns the most recent message, or nil
	Last() *domain.Message

	// Len returns the number of retained messages
	Len() int
}
