package calls

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store for tests and APP_STORE=memory.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

func (m *MemoryStore) Create(ctx context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return s, nil
}

func (m *MemoryStore) Finalize(ctx context.Context, s Session) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.sessions[s.ID]
	if !ok {
		return Session{}, ErrNotFound
	}
	if cur.Status.IsTerminal() {
		return Session{}, errAlreadyTerminal
	}
	cur.Status = s.Status
	cur.EndedAt = s.EndedAt
	cur.DurationMinutes = s.DurationMinutes
	cur.TotalCost = s.TotalCost
	cur.UpdatedAt = s.UpdatedAt
	m.sessions[s.ID] = cur
	return cur, nil
}

func (m *MemoryStore) ListByParticipant(ctx context.Context, ownerID string, limit int) ([]Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Session{}
	for _, s := range m.sessions {
		if s.IsParticipant(ownerID) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
