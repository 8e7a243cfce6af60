package robots

import (
	"sync"
	"time"
)

// Entry is one cached robots decision for a domain.
type Entry struct {
	Policy    *Policy
	FetchedAt time.Time
}

// EntryStore is the key-value backend behind the Cache, keyed by domain.
type EntryStore interface {
	Get(domain string) (Entry, bool)
	Put(domain string, entry Entry)
	Delete(domain string)
}

// MemoryStore is a mutex-guarded in-process EntryStore.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

// Get implements EntryStore.
func (s *MemoryStore) Get(domain string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[domain]
	return entry, ok
}

// Put implements EntryStore.
func (s *MemoryStore) Put(domain string, entry Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[domain] = entry
}

// Delete implements EntryStore.
func (s *MemoryStore) Delete(domain string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, domain)
}

// Len reports the number of cached domains.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
