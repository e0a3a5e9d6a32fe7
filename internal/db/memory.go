package db

import (
	"context"
	"sync"
	"time"

	"github.com/kube-rca/auth/internal/model"
)

// MemoryStore keeps users in process memory. Used with STORE_DRIVER=memory
// and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	byID    map[int64]*model.User
	byEmail map[string]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[int64]*model.User),
		byEmail: make(map[string]int64),
	}
}

func (m *MemoryStore) CreateUser(ctx context.Context, email, passwordHash string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byEmail[email]; ok {
		return nil, ErrDuplicate
	}
	m.nextID++
	for m.byID[m.nextID] != nil {
		m.nextID++
	}

	now := time.Now()
	user := &model.User{
		ID:           m.nextID,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.byID[user.ID] = user
	m.byEmail[email] = user.ID
	return cloneUser(user), nil
}

// Persist upserts a user by id, keeping the email index consistent.
func (m *MemoryStore) Persist(ctx context.Context, user *model.User) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.byEmail[user.Email]; ok && id != user.ID {
		return nil, ErrDuplicate
	}
	if prev, ok := m.byID[user.ID]; ok && prev.Email != user.Email {
		delete(m.byEmail, prev.Email)
	}

	stored := cloneUser(user)
	if stored.ID == 0 {
		m.nextID++
		for m.byID[m.nextID] != nil {
			m.nextID++
		}
		stored.ID = m.nextID
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	stored.UpdatedAt = time.Now()
	m.byID[stored.ID] = stored
	m.byEmail[stored.Email] = stored.ID
	return cloneUser(stored), nil
}

func (m *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(m.byID[id]), nil
}

func (m *MemoryStore) GetUserByID(ctx context.Context, userID int64) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.byID[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(user), nil
}

func (m *MemoryStore) SetRefreshTokenHash(ctx context.Context, userID int64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.byID[userID]
	if !ok {
		return ErrNotFound
	}
	user.RefreshTokenHash = &hash
	user.UpdatedAt = time.Now()
	return nil
}

func cloneUser(u *model.User) *model.User {
	c := *u
	if u.RefreshTokenHash != nil {
		h := *u.RefreshTokenHash
		c.RefreshTokenHash = &h
	}
	return &c
}
