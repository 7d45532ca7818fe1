package repository

import (
	"context"
	"sync"
	"time"

	"market-auth/backend/internal/singleuse/domain"
)

type ownerKey struct {
	owner   string
	purpose domain.Purpose
}

// MemoryRepository is an in-memory Repository for development and tests.
type MemoryRepository struct {
	mu   sync.RWMutex
	m    map[ownerKey]domain.Token
	nowF func() time.Time
}

// NewMemoryRepository returns an empty in-memory token repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		m:    make(map[ownerKey]domain.Token),
		nowF: time.Now,
	}
}

// SetClock replaces the time source used to decide expiry.
func (r *MemoryRepository) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nowF = now
}

func (r *MemoryRepository) FindOneByOwner(ctx context.Context, ownerID string, purpose domain.Purpose) (*domain.Token, error) {
	k := ownerKey{ownerID, purpose}
	r.mu.RLock()
	t, ok := r.m[k]
	now := r.nowF()
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if t.Expired(now) {
		r.mu.Lock()
		if cur, ok := r.m[k]; ok && cur.ID == t.ID {
			delete(r.m, k)
		}
		r.mu.Unlock()
		return nil, nil
	}
	return &t, nil
}

func (r *MemoryRepository) Create(ctx context.Context, t *domain.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[ownerKey{t.OwnerID, t.Purpose}] = *t
	return nil
}

func (r *MemoryRepository) DeleteByOwner(ctx context.Context, ownerID string, purpose domain.Purpose) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.m, ownerKey{ownerID, purpose})
	return nil
}

func (r *MemoryRepository) DeleteByID(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, t := range r.m {
		if t.ID == id {
			delete(r.m, k)
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepository) PurgeExpired(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.nowF()
	var n int64
	for k, t := range r.m {
		if t.Expired(now) {
			delete(r.m, k)
			n++
		}
	}
	return n, nil
}
