package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// TokenSource yields the bearer credential for store requests. An empty
// token with a nil error means no credential is available.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Refresher is implemented by sources that want a chance to renew the
// credential before each request.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// StaticToken is a fixed credential, typically from configuration.
type StaticToken string

// AccessToken returns the trimmed token.
func (t StaticToken) AccessToken(context.Context) (string, error) {
	return strings.TrimSpace(string(t)), nil
}

type fileState struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// FileSource reads a credential from a JSON file written by the identity
// provider. Refresh reloads the file when its modification time changes.
type FileSource struct {
	path string
	now  func() time.Time

	mu      sync.Mutex
	loaded  bool
	modTime time.Time
	state   fileState
}

// NewFileSource builds a FileSource for path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path, now: time.Now}
}

// AccessToken returns the stored token, or "" when the file is missing or
// the token has expired.
func (s *FileSource) AccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	loaded := s.loaded
	s.mu.Unlock()
	if !loaded {
		if err := s.Refresh(ctx); err != nil {
			return "", err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.ExpiresAt.IsZero() && !s.now().Before(s.state.ExpiresAt) {
		return "", nil
	}
	return strings.TrimSpace(s.state.Token), nil
}

// Refresh reloads the credential file if it changed since the last load.
// A missing file clears the cached token.
func (s *FileSource) Refresh(context.Context) error {
	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.mu.Lock()
			s.loaded = true
			s.modTime = time.Time{}
			s.state = fileState{}
			s.mu.Unlock()
			return nil
		}
		return fmt.Errorf("stat token file: %w", err)
	}

	s.mu.Lock()
	unchanged := s.loaded && info.ModTime().Equal(s.modTime)
	s.mu.Unlock()
	if unchanged {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read token file: %w", err)
	}
	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("decode token file: %w", err)
	}

	s.mu.Lock()
	s.loaded = true
	s.modTime = info.ModTime()
	s.state = state
	s.mu.Unlock()
	return nil
}

// Save persists a credential with restricted permissions.
func (s *FileSource) Save(token string, expiresAt time.Time) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("ensure token directory: %w", err)
	}
	data, err := json.MarshalIndent(fileState{Token: token, ExpiresAt: expiresAt.UTC()}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode token file: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	s.mu.Lock()
	s.loaded = false
	s.mu.Unlock()
	return nil
}
