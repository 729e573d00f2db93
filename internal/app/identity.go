package app

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Storage keys for the per-session persisted identity, matching the
// document's expectations across rejoins.
const (
	storageKeyName     = "dc_name"
	storageKeyRoom     = "dc_room"
	storageKeyLanguage = "dc_lang"
	storageKeyPlayerID = "dc_pid"
)

// Storage abstracts the small per-client persistence a browser tab would
// keep in session storage: player id, display name, language, last room.
type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
}

// MemoryStorage is an in-process Storage, scoped to one session.
type MemoryStorage struct {
	mu sync.Mutex
	m  map[string]string
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{m: make(map[string]string)}
}

// Get returns the stored value for key.
func (s *MemoryStorage) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	return v, ok
}

// Set stores value under key.
func (s *MemoryStorage) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
}

// Delete removes key.
func (s *MemoryStorage) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
}

// EnsurePlayerID returns the stable player id for this session, minting
// and persisting one on first use.
func EnsurePlayerID(storage Storage) string {
	if id, ok := storage.Get(storageKeyPlayerID); ok && id != "" {
		return id
	}
	id := newPlayerID()
	storage.Set(storageKeyPlayerID, id)
	return id
}

func newPlayerID() string {
	return "p_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
