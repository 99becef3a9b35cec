package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNilSession      = errors.New("session is nil")
	ErrInvalidSession  = errors.New("session id is empty")
)

// Store persists sessions between requests.
type Store interface {
	Load(ctx context.Context, sessionID string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, sessionID string) error
}

// LoadOrNew returns the stored session or a fresh one when none exists.
func LoadOrNew(ctx context.Context, store Store, sessionID string) (*Session, error) {
	s, err := store.Load(ctx, sessionID)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, ErrSessionNotFound) {
		return nil, err
	}
	return New(sessionID), nil
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]snapshot)}
}

func (m *MemoryStore) Load(_ context.Context, sessionID string) (*Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidSession
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return fromSnapshot(snapshot{
		SessionID: snap.SessionID,
		Messages:  append(snap.Messages[:0:0], snap.Messages...),
		UpdatedAt: snap.UpdatedAt,
	}), nil
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	if s == nil {
		return ErrNilSession
	}
	if strings.TrimSpace(s.ID()) == "" {
		return ErrInvalidSession
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID()] = s.snapshot()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

// Cleanup drops sessions not updated within maxAge.
func (m *MemoryStore) Cleanup(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, snap := range m.sessions {
		if snap.UpdatedAt.Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}
