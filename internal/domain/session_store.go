package domain

import (
	"sync"
	"time"
)

// SessionStore tracks per-session workflow state. Each MCP session gets an
// isolated entry; nothing is shared across sessions, so a single mutex
// around the map is the only locking discipline required.
type SessionStore struct {
	mu      sync.RWMutex
	entries map[string]WorkflowSession
	ttl     time.Duration
	maxSize int
}

// NewSessionStore creates a bounded session store. A non-positive ttl
// disables expiry (session lifetime = process lifetime); maxSize bounds
// the map with oldest-entry eviction.
func NewSessionStore(ttl time.Duration, maxSize int) *SessionStore {
	if maxSize <= 0 {
		maxSize = DefaultMaxSessions
	}
	return &SessionStore{
		entries: make(map[string]WorkflowSession),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// Get retrieves the workflow session for a session key. Expired entries
// read as absent; callers treat absence as a fresh NO_TAG session.
func (s *SessionStore) Get(sessionKey string) (WorkflowSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[sessionKey]
	if !ok {
		return WorkflowSession{}, false
	}
	if s.expired(entry, time.Now()) {
		return WorkflowSession{}, false
	}
	return entry, true
}

// Put stores the session state, evicting the oldest entry when the store
// is over capacity.
func (s *SessionStore) Put(sessionKey string, session WorkflowSession) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[sessionKey] = session
	if len(s.entries) > s.maxSize {
		s.evictOldest()
	}
}

// Reset clears the workflow state for a session key.
func (s *SessionStore) Reset(sessionKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sessionKey)
}

// Cleanup removes expired entries. A no-op when expiry is disabled.
func (s *SessionStore) Cleanup() {
	if s.ttl <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for sessionKey, entry := range s.entries {
		if s.expired(entry, now) {
			delete(s.entries, sessionKey)
		}
	}
}

// Len returns the current number of tracked sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *SessionStore) expired(entry WorkflowSession, now time.Time) bool {
	return s.ttl > 0 && now.Sub(entry.UpdatedAt) > s.ttl
}

// evictOldest removes the least recently updated entry (lock held).
func (s *SessionStore) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for sessionKey, entry := range s.entries {
		if oldestKey == "" || entry.UpdatedAt.Before(oldestTime) {
			oldestKey = sessionKey
			oldestTime = entry.UpdatedAt
		}
	}

	if oldestKey != "" {
		delete(s.entries, oldestKey)
	}
}
