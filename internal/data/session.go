package data

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/groupbot-dev/groupbot/internal/biz/domain"
	"github.com/groupbot-dev/groupbot/internal/biz/repo"

	_ "modernc.org/sqlite"
)

// loginRepo implements the login session repository
type loginRepo struct {
	db *sql.DB
}

// NewLoginRepo creates a new login session repository
func NewLoginRepo(dbPath string) (repo.LoginRepo, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS login_sessions (
			name TEXT PRIMARY KEY,
			blob BLOB NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &loginRepo{db: db}, nil
}

// Get gets a session by name
func (r *loginRepo) Get(ctx context.Context, name string) (*domain.LoginSession, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT name, blob, created_at, updated_at
		FROM login_sessions
		WHERE name = ?
	`, name)

	var session domain.LoginSession
	var createdAt, updatedAt int64
	err := row.Scan(&session.Name, &session.Blob, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	session.CreatedAt = time.Unix(createdAt, 0)
	session.UpdatedAt = time.Unix(updatedAt, 0)
	return &session, nil
}

// Save saves a session
func (r *loginRepo) Save(ctx context.Context, session *domain.LoginSession) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO login_sessions (name, blob, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`,
		session.Name,
		session.Blob,
		session.CreatedAt.Unix(),
		session.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Delete deletes a session
func (r *loginRepo) Delete(ctx context.Context, name string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM login_sessions WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Close closes the database
func (r *loginRepo) Close() error {
	return r.db.Close()
}

// SessionStorage adapts a LoginRepo entry to the io.ReadWriter hot reload
// storage the chat library reads its login state from.
// Each Write replaces the whole blob; reads start over after EOF.
type SessionStorage struct {
	repo   repo.LoginRepo
	name   string
	config domain.SessionConfig
	reader *bytes.Reader
}

// NewSessionStorage creates a hot reload storage for the named session
func NewSessionStorage(loginRepo repo.LoginRepo, name string, config domain.SessionConfig) *SessionStorage {
	return &SessionStorage{
		repo:   loginRepo,
		name:   name,
		config: config,
	}
}

// Read reads the stored blob. A missing or stale session reads as empty.
func (s *SessionStorage) Read(p []byte) (int, error) {
	if s.reader == nil {
		session, err := s.repo.Get(context.Background(), s.name)
		if err != nil {
			return 0, err
		}
		var blob []byte
		if session != nil && session.IsFresh(s.config) {
			blob = session.Blob
		}
		s.reader = bytes.NewReader(blob)
	}

	n, err := s.reader.Read(p)
	if err == io.EOF {
		s.reader = nil
	}
	return n, err
}

// Write replaces the stored blob with p
func (s *SessionStorage) Write(p []byte) (int, error) {
	ctx := context.Background()
	session, err := s.repo.Get(ctx, s.name)
	if err != nil {
		return 0, err
	}
	if session == nil {
		session = &domain.LoginSession{Name: s.name}
	}

	session.Touch(bytes.Clone(p))
	if err := s.repo.Save(ctx, session); err != nil {
		return 0, err
	}
	s.reader = nil
	return len(p), nil
}

// Reset discards the stored blob so the next login starts fresh
func (s *SessionStorage) Reset(ctx context.Context) error {
	s.reader = nil
	return s.repo.Delete(ctx, s.name)
}
