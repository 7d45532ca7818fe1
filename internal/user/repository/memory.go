package repository

import (
	"context"
	"sync"
	"time"

	"market-auth/backend/internal/user/domain"
)

// MemoryRepository is an in-process user store for development and tests. All operations hold a
// single mutex, so refresh-set changes are atomic.
type MemoryRepository struct {
	mu      sync.Mutex
	byID    map[string]*domain.User
	byEmail map[string]string
	nowF    func() time.Time
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    make(map[string]*domain.User),
		byEmail: make(map[string]string),
		nowF:    time.Now,
	}
}

func clone(u *domain.User) *domain.User {
	c := *u
	c.RefreshTokens = append([]string(nil), u.RefreshTokens...)
	return &c
}

func (m *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	return clone(u), nil
}

func (m *MemoryRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byEmail[domain.NormalizeEmail(email)]
	if !ok {
		return nil, nil
	}
	return clone(m.byID[id]), nil
}

func (m *MemoryRepository) Create(ctx context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.byEmail[u.Email]; taken {
		return ErrDuplicateEmail
	}
	m.byID[u.ID] = clone(u)
	m.byEmail[u.Email] = u.ID
	return nil
}

func (m *MemoryRepository) UpdateFields(ctx context.Context, id string, patch domain.Patch) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return false, nil
	}
	if patch.Empty() {
		return true, nil
	}
	if patch.Name != nil {
		u.Name = *patch.Name
	}
	if patch.PasswordHash != nil {
		u.PasswordHash = *patch.PasswordHash
	}
	if patch.Verified != nil {
		u.Verified = *patch.Verified
	}
	u.UpdatedAt = m.nowF().UTC()
	return true, nil
}

func (m *MemoryRepository) Save(ctx context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if owner, taken := m.byEmail[u.Email]; taken && owner != u.ID {
		return ErrDuplicateEmail
	}
	u.UpdatedAt = m.nowF().UTC()
	c := clone(u)
	if prev, ok := m.byID[u.ID]; ok {
		c.RefreshTokens = prev.RefreshTokens
		if prev.Email != u.Email {
			delete(m.byEmail, prev.Email)
		}
	} else {
		c.RefreshTokens = nil
	}
	m.byID[u.ID] = c
	m.byEmail[u.Email] = u.ID
	return nil
}

func (m *MemoryRepository) AddRefreshToken(ctx context.Context, userID, digest string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[userID]
	if !ok {
		return ErrUserNotFound
	}
	if u.HasRefreshToken(digest) {
		return nil
	}
	u.RefreshTokens = append(u.RefreshTokens, digest)
	return nil
}

func (m *MemoryRepository) RemoveRefreshToken(ctx context.Context, userID, digest string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[userID]
	if !ok {
		return false, nil
	}
	for i, d := range u.RefreshTokens {
		if d == digest {
			u.RefreshTokens = append(u.RefreshTokens[:i:i], u.RefreshTokens[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryRepository) ClearRefreshTokens(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[userID]; ok {
		u.RefreshTokens = nil
	}
	return nil
}
