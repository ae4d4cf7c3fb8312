// ABOUTME: Persisted bearer token slot and best-effort identity cache
// ABOUTME: File-backed store in the XDG config directory plus an in-memory variant

package tokenstore

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/uniportal/gradeportal/internal/identity"
)

// Store holds the current bearer token. Read never fails; a missing or
// unreadable slot reads as "".
type Store interface {
	Read() string
	Write(token string) error
	// Replace writes next only while the slot still holds prev, and reports
	// whether it did.
	Replace(prev, next string) (bool, error)
	Clear() error
	ReadIdentity() *identity.Identity
	WriteIdentity(ident *identity.Identity) error
}

// FileName is the session file inside the config directory.
const FileName = "session.json"

type sessionData struct {
	Token string             `json:"token,omitempty"`
	User  *identity.Identity `json:"user,omitempty"`
}

// FileStore keeps the session in a JSON file so it survives restarts.
type FileStore struct {
	mu        sync.Mutex
	configDir string
}

// NewFileStore creates a store rooted at configDir.
func NewFileStore(configDir string) *FileStore {
	return &FileStore{configDir: configDir}
}

// DefaultConfigDir returns the default config directory following XDG spec
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "gradeportal")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "gradeportal")
}

// Path returns the location of the session file.
func (s *FileStore) Path() string {
	return filepath.Join(s.configDir, FileName)
}

// load reads the session file. Callers hold s.mu.
func (s *FileStore) load() sessionData {
	var data sessionData
	raw, err := os.ReadFile(s.Path())
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("Session file unreadable", "path", s.Path(), "error", err)
		}
		return data
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		// Corrupt file, start fresh
		slog.Warn("Session file corrupt, ignoring", "path", s.Path(), "error", err)
		return sessionData{}
	}
	return data
}

// save writes the session file atomically. Callers hold s.mu.
func (s *FileStore) save(data sessionData) error {
	if data.Token == "" && data.User == nil {
		err := os.Remove(s.Path())
		if err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}

	if err := os.MkdirAll(s.configDir, 0700); err != nil {
		return err
	}

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.configDir, ".session-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0600); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.Path())
}

// Read returns the persisted token or "".
func (s *FileStore) Read() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load().Token
}

// Write persists the token, keeping any cached identity.
func (s *FileStore) Write(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data := s.load()
	data.Token = token
	return s.save(data)
}

// Replace swaps prev for next, keeping any cached identity. It does nothing
// when the slot has changed since prev was read.
func (s *FileStore) Replace(prev, next string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data := s.load()
	if data.Token != prev {
		return false, nil
	}
	data.Token = next
	if err := s.save(data); err != nil {
		return false, err
	}
	return true, nil
}

// Clear removes the token and the cached identity.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(sessionData{})
}

// ReadIdentity returns the cached identity, if any.
func (s *FileStore) ReadIdentity() *identity.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load().User
}

// WriteIdentity replaces the cached identity.
func (s *FileStore) WriteIdentity(ident *identity.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data := s.load()
	data.User = ident
	return s.save(data)
}

// MemoryStore is a Store that lives only as long as the process.
type MemoryStore struct {
	mu    sync.RWMutex
	token string
	user  *identity.Identity
}

// NewMemoryStore returns a store seeded with token.
func NewMemoryStore(token string) *MemoryStore {
	return &MemoryStore{token: token}
}

func (m *MemoryStore) Read() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

func (m *MemoryStore) Write(token string) error {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Replace(prev, next string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token != prev {
		return false, nil
	}
	m.token = next
	return true, nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	m.token = ""
	m.user = nil
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) ReadIdentity() *identity.Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	cp := *m.user
	return &cp
}

func (m *MemoryStore) WriteIdentity(ident *identity.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ident == nil {
		m.user = nil
		return nil
	}
	cp := *ident
	m.user = &cp
	return nil
}
