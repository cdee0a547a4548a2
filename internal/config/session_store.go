package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	apperrors "github.com/chatvibe/console/internal/errors"
	"github.com/chatvibe/console/internal/interfaces"
	"github.com/chatvibe/console/internal/logging"
	"gopkg.in/yaml.v3"
)

// sessionFile is the on-disk layout of session.yaml.
type sessionFile struct {
	Sessions map[string]interfaces.SessionRecord `yaml:"sessions"`
}

// FileSessionStore implements interfaces.SessionStore. Tokens are encrypted
// with the SecurityManager; the flag and user id are stored in clear.
type FileSessionStore struct {
	mu       sync.Mutex
	path     string
	security SecurityManager
	logger   *logging.Logger
}

// NewFileSessionStore creates a store backed by path.
func NewFileSessionStore(path string, security SecurityManager) (*FileSessionStore, error) {
	if security == nil {
		return nil, fmt.Errorf("security manager cannot be nil")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	return &FileSessionStore{
		path:     path,
		security: security,
		logger:   logging.GetConfigLogger().WithField("store", "session"),
	}, nil
}

// DefaultSessionPath returns session.yaml next to profiles.yaml.
func DefaultSessionPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "session.yaml"), nil
}

func (s *FileSessionStore) read() (*sessionFile, error) {
	file := &sessionFile{Sessions: make(map[string]interfaces.SessionRecord)}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return file, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}
	if err := yaml.Unmarshal(data, file); err != nil {
		return nil, apperrors.NewSessionStoreError("config").
			WithOperation("read").
			WithMessage("failed to parse session file").
			WithUserMessage("Saved session is unreadable; please log in again").
			WithCause(err).
			WithContext("path", s.path).
			Build()
	}
	if file.Sessions == nil {
		file.Sessions = make(map[string]interfaces.SessionRecord)
	}
	return file, nil
}

func (s *FileSessionStore) write(file *sessionFile) error {
	data, err := yaml.Marshal(file)
	if err != nil {
		return fmt.Errorf("failed to marshal session file: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// LoadSession returns the stored record for a profile. A missing record is a
// logged-out session. Tokens that no longer decrypt are dropped and the
// record is reported as logged out.
func (s *FileSessionStore) LoadSession(profile string) (*interfaces.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.read()
	if err != nil {
		return nil, err
	}

	record, ok := file.Sessions[profile]
	if !ok {
		return &interfaces.SessionRecord{}, nil
	}

	for _, field := range []*string{&record.AccessToken, &record.RefreshToken} {
		if *field == "" {
			continue
		}
		plain, err := s.security.DecryptCredential(*field)
		if err != nil {
			s.logger.Warn("Stored credentials unreadable, starting logged out",
				"profile", profile, "error", err.Error())
			return &interfaces.SessionRecord{}, nil
		}
		*field = plain
	}

	return &record, nil
}

// SaveSession encrypts the tokens and writes the record for a profile.
func (s *FileSessionStore) SaveSession(profile string, record interfaces.SessionRecord) error {
	for _, field := range []*string{&record.AccessToken, &record.RefreshToken} {
		if *field == "" {
			continue
		}
		sealed, err := s.security.EncryptCredential(*field)
		if err != nil {
			return fmt.Errorf("failed to encrypt credential: %w", err)
		}
		*field = sealed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.read()
	if err != nil {
		return err
	}
	file.Sessions[profile] = record
	return s.write(file)
}

// ClearSession removes the record for a profile.
func (s *FileSessionStore) ClearSession(profile string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := file.Sessions[profile]; !ok {
		return nil
	}
	delete(file.Sessions, profile)
	return s.write(file)
}

// MemorySessionStore keeps sessions in memory. Used by the dev tooling and tests.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]interfaces.SessionRecord
}

// NewMemorySessionStore creates an empty in-memory store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]interfaces.SessionRecord)}
}

// LoadSession returns a copy of the stored record.
func (s *MemorySessionStore) LoadSession(profile string) (*interfaces.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record := s.sessions[profile]
	return &record, nil
}

// SaveSession stores a copy of record.
func (s *MemorySessionStore) SaveSession(profile string, record interfaces.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[profile] = record
	return nil
}

// ClearSession removes the record.
func (s *MemorySessionStore) ClearSession(profile string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, profile)
	return nil
}
