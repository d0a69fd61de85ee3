package users

import (
	"context"
	"sync"
)

// MemoryRepo keeps users in process. Used by tests and APP_STORE=memory.
type MemoryRepo struct {
	mu      sync.RWMutex
	byEmail map[string]User
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byEmail: make(map[string]User)}
}

func (r *MemoryRepo) Create(ctx context.Context, u User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[u.Email]; ok {
		return ErrEmailTaken
	}
	r.byEmail[u.Email] = u
	return nil
}

func (r *MemoryRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byEmail[email]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}
