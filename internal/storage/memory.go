package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

var _ Storage = (*MemoryStorage)(nil)

// MemoryStorage keeps tracked users in process memory
type MemoryStorage struct {
	mu    sync.RWMutex
	users map[string]*TrackedUser
	now   func() time.Time
}

// NewMemoryStorage creates a new storage instance
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users: make(map[string]*TrackedUser),
		now:   time.Now,
	}
}

// UpsertUser creates or updates a user's last seen time
func (s *MemoryStorage) UpsertUser(_ context.Context, username, realm string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	key := userKey(username, realm)
	if user, exists := s.users[key]; exists {
		userCopy := *user
		userCopy.LastSeen = now
		s.users[key] = &userCopy
		return nil
	}

	s.users[key] = &TrackedUser{
		Username:  username,
		Realm:     realm,
		FirstSeen: now,
		LastSeen:  now,
	}
	return nil
}

// RecordLogout stamps the user's last logout time
func (s *MemoryStorage) RecordLogout(_ context.Context, username, realm string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := userKey(username, realm)
	user, exists := s.users[key]
	if !exists {
		return ErrUserNotFound
	}
	now := s.now()
	userCopy := *user
	userCopy.LastLogout = &now
	s.users[key] = &userCopy
	return nil
}

// GetAllUsers returns all users ordered by realm and username
func (s *MemoryStorage) GetAllUsers(_ context.Context) ([]TrackedUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]TrackedUser, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, *user)
	}
	sortUsers(users)
	return users, nil
}

// PruneUsers removes users last seen before the cutoff
func (s *MemoryStorage) PruneUsers(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, user := range s.users {
		if user.LastSeen.Before(before) {
			delete(s.users, key)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStorage) Close() error {
	return nil
}

func sortUsers(users []TrackedUser) {
	sort.Slice(users, func(i, j int) bool {
		if users[i].Realm != users[j].Realm {
			return users[i].Realm < users[j].Realm
		}
		return users[i].Username < users[j].Username
	})
}
