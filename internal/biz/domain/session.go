package domain

import "time"

// LoginSession is the platform's persisted login blob (hot reload storage)
type LoginSession struct {
	Name      string
	Blob      []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SessionConfig represents login session configuration (value object)
type SessionConfig struct {
	MaxAge time.Duration // Sessions older than this are discarded (0 to keep forever)
}

// IsFresh checks if the stored session may still be used for hot login
func (s *LoginSession) IsFresh(cfg SessionConfig) bool {
	if len(s.Blob) == 0 {
		return false
	}
	if cfg.MaxAge > 0 && time.Since(s.UpdatedAt) > cfg.MaxAge {
		return false
	}
	return true
}

// Touch updates the blob and its modification time
func (s *LoginSession) Touch(blob []byte) {
	now := time.Now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.Blob = blob
	s.UpdatedAt = now
}
