package usecase

import (
	"fmt"

	"github.com/groupbot-dev/groupbot/internal/biz/domain"
)

// AuthUsecase decides whether a message comes from a privileged sender.
// The privileged set is the configured admins plus the bot itself and is fixed at startup.
type AuthUsecase struct {
	self   domain.User
	admins []domain.User
}

// NewAuthUsecase creates a new auth usecase
func NewAuthUsecase(self domain.User, admins []domain.User) *AuthUsecase {
	return &AuthUsecase{
		self:   self,
		admins: admins,
	}
}

// IsPrivilegedUser checks if u is an admin or the bot itself
func (uc *AuthUsecase) IsPrivilegedUser(u domain.User) bool {
	return u.Is(uc.self) || domain.Has(uc.admins, u)
}

// IsPrivileged checks the effective sender of msg
func (uc *AuthUsecase) IsPrivileged(msg *domain.Message) bool {
	return uc.IsPrivilegedUser(msg.EffectiveSender())
}

// Require returns an error wrapping domain.ErrUnauthorized when msg is not privileged
func (uc *AuthUsecase) Require(msg *domain.Message) error {
	if uc.IsPrivileged(msg) {
		return nil
	}
	return fmt.Errorf("%w: %s", domain.ErrUnauthorized, msg.EffectiveSender().FormatDisplay())
}

// PrimaryAdmin returns the first configured admin
func (uc *AuthUsecase) PrimaryAdmin() (domain.User, bool) {
	if len(uc.admins) == 0 {
		return domain.User{}, false
	}
	return uc.admins[0], true
}

// Admins returns the configured admins in order
func (uc *AuthUsecase) Admins() []domain.User {
	return uc.admins
}

// Self returns the bot identity
func (uc *AuthUsecase) Self() domain.User {
	return uc.self
}

// ResolveUsers maps configured keys (ID or display name) to users, preserving key order.
// Every key must resolve.
func ResolveUsers(candidates []domain.User, keys []string) ([]domain.User, error) {
	var resolved []domain.User
	for _, key := range keys {
		u, ok := findUser(candidates, key)
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrUserNotFound, key)
		}
		resolved = append(resolved, u)
	}
	return resolved, nil
}

// findUser matches by ID first, then by name
func findUser(candidates []domain.User, key string) (domain.User, bool) {
	for _, u := range candidates {
		if u.ID == key {
			return u, true
		}
	}
	for _, u := range candidates {
		if u.Name == key {
			return u, true
		}
	}
	return domain.User{}, false
}
