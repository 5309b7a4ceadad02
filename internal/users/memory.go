package users

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo keeps users in process. Used when no database is configured.
type MemoryRepo struct {
	mu    sync.Mutex
	byUID map[string]*User
	byID  map[string]*User
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byUID: map[string]*User{}, byID: map[string]*User{}}
}

func (m *MemoryRepo) EnsureUser(_ context.Context, u UpsertUser) (string, error) {
	if u.FirebaseUID == "" {
		return "", fmt.Errorf("firebase_uid required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	existing, ok := m.byUID[u.FirebaseUID]
	if !ok {
		existing = &User{ID: uuid.NewString(), FirebaseUID: u.FirebaseUID, CreatedAt: now}
		m.byUID[u.FirebaseUID] = existing
		m.byID[existing.ID] = existing
	}
	if u.Email != "" {
		existing.Email = u.Email
	}
	if u.DisplayName != "" {
		existing.DisplayName = u.DisplayName
	}
	if u.PhotoURL != "" {
		existing.PhotoURL = u.PhotoURL
	}
	existing.UpdatedAt = now
	return existing.ID, nil
}

func (m *MemoryRepo) GetByID(_ context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}
