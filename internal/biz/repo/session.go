package repo

import (
	"context"

	"github.com/groupbot-dev/groupbot/internal/biz/domain"
)

// LoginRepo is the login session blob store used by the platform collaborator
type LoginRepo interface {
	// Get gets a session blob by name, nil when absent
	Get(ctx context.Context, name string) (*domain.LoginSession, error)

	// Save saves a session blob (create or update)
	Save(ctx context.Context, session *domain.LoginSession) error

	// Delete deletes a session blob
	Delete(ctx context.Context, name string) error

	Close() error
}
