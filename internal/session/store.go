package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"docchat/internal/api"
)

// Store owns the authenticated identity. It is the only component allowed to
// write the token; everything else reads it per call through Token().
type Store struct {
	filePath string
	mu       sync.RWMutex
	session  *api.Session
}

// persisted is the on-disk form of a session
type persisted struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// NewStore creates a session store persisting to filePath
func NewStore(filePath string) *Store {
	return &Store{filePath: filePath}
}

// Load reads the persisted session from disk. A missing, corrupted, or
// expired file leaves the store signed out without error.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read session file: %w", err)
	}

	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		// Corrupted file - discard and start signed out
		os.Remove(s.filePath)
		return nil
	}

	if p.Token == "" || (!p.ExpiresAt.IsZero() && time.Now().After(p.ExpiresAt)) {
		os.Remove(s.filePath)
		return nil
	}

	s.session = &api.Session{
		Token:     p.Token,
		UserID:    p.UserID,
		Email:     p.Email,
		ExpiresAt: p.ExpiresAt,
	}
	return nil
}

// Set stores a freshly issued session and persists it
func (s *Store) Set(session api.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = &session
	return s.saveUnlocked()
}

// Clear signs out and removes the persisted session
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = nil
	os.Remove(s.filePath)
}

// saveUnlocked persists the session (must be called with lock held)
func (s *Store) saveUnlocked() error {
	p := persisted{
		Token:     s.session.Token,
		UserID:    s.session.UserID,
		Email:     s.session.Email,
		ExpiresAt: s.session.ExpiresAt,
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	// Write to temp file then rename so a crash never leaves a torn file
	tempPath := s.filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempPath, s.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Token returns the current bearer token, or "" when signed out or expired
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.session == nil {
		return ""
	}
	if !s.session.ExpiresAt.IsZero() && time.Now().After(s.session.ExpiresAt) {
		return ""
	}
	return s.session.Token
}

// UserID returns the signed-in user's identifier, or ""
func (s *Store) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.session == nil {
		return ""
	}
	return s.session.UserID
}

// Email returns the signed-in user's email, or ""
func (s *Store) Email() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.session == nil {
		return ""
	}
	return s.session.Email
}

// Valid reports whether a usable session is present
func (s *Store) Valid() bool {
	return s.Token() != ""
}
