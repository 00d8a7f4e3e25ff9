package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/newsmelody/api/internal/model"
)

// MemoryStore is the fallback used when Redis is not configured, and the
// store the unit tests run against. Records are copied on the way in and
// out so callers never alias the stored state.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*model.Session)}
}

func cloneSession(s *model.Session) *model.Session {
	data, _ := json.Marshal(s)
	var out model.Session
	_ = json.Unmarshal(data, &out)
	return &out
}

func (m *MemoryStore) Create(_ context.Context, session *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[session.ID]; ok {
		return ErrAlreadyExists
	}
	m.sessions[session.ID] = cloneSession(session)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSession(session), nil
}

func (m *MemoryStore) List(_ context.Context, status model.SessionStatus, limit int) ([]*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	// Session ids are timestamp-prefixed, so lexical order is creation order.
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))

	sessions := make([]*model.Session, 0, len(ids))
	for _, id := range ids {
		session := m.sessions[id]
		if status != "" && session.Status != status {
			continue
		}
		sessions = append(sessions, cloneSession(session))
		if limit > 0 && len(sessions) >= limit {
			break
		}
	}
	return sessions, nil
}

func (m *MemoryStore) Update(_ context.Context, id string, mutate func(*model.Session) error) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}

	working := cloneSession(session)
	if err := mutate(working); err != nil {
		return nil, err
	}
	working.UpdatedAt = time.Now().UTC()
	m.sessions[id] = working
	return cloneSession(working), nil
}
