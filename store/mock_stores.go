package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// MockUserStore
// ---------------------------------------------------------------------------

// MockUserStore is an in-memory implementation of UserStore for testing.
type MockUserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*User
}

// NewMockUserStore creates a new MockUserStore.
func NewMockUserStore() *MockUserStore {
	return &MockUserStore{users: make(map[uuid.UUID]*User)}
}

func (s *MockUserStore) Create(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	for _, existing := range s.users {
		if existing.Username == u.Username {
			return ErrDuplicate
		}
	}
	if len(u.Roles) == 0 {
		u.Roles = []Role{RoleUser}
	}
	u.CreatedAt = time.Now()
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *MockUserStore) Get(_ context.Context, id uuid.UUID) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MockUserStore) GetByUsername(_ context.Context, username string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MockUserStore) List(_ context.Context) ([]*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]*User, 0, len(s.users))
	for _, u := range s.users {
		cp := *u
		users = append(users, &cp)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].Username < users[j].Username
	})
	return users, nil
}

// ---------------------------------------------------------------------------
// MockVersionStore
// ---------------------------------------------------------------------------

// MockVersionStore is an in-memory implementation of VersionStore for testing.
type MockVersionStore struct {
	mu       sync.Mutex
	versions map[uuid.UUID]*VersionRecord
}

// NewMockVersionStore creates a new MockVersionStore.
func NewMockVersionStore() *MockVersionStore {
	return &MockVersionStore{versions: make(map[uuid.UUID]*VersionRecord)}
}

func (s *MockVersionStore) Insert(_ context.Context, v *VersionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	for _, existing := range s.versions {
		if existing.Name == v.Name {
			return ErrDuplicate
		}
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}
	cp := *v
	s.versions[v.ID] = &cp
	return nil
}

func (s *MockVersionStore) Get(_ context.Context, id uuid.UUID) (*VersionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.versions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (s *MockVersionStore) GetByName(_ context.Context, name string) (*VersionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.versions {
		if v.Name == name {
			cp := *v
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MockVersionStore) List(_ context.Context) ([]*VersionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	versions := make([]*VersionRecord, 0, len(s.versions))
	for _, v := range s.versions {
		cp := *v
		versions = append(versions, &cp)
	}
	sort.Slice(versions, func(i, j int) bool {
		if !versions[i].CreatedAt.Equal(versions[j].CreatedAt) {
			return versions[i].CreatedAt.After(versions[j].CreatedAt)
		}
		return strings.Compare(versions[i].ID.String(), versions[j].ID.String()) > 0
	})
	return versions, nil
}
