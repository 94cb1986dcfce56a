package authcore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/bookly/authcore/authz"
)

// memUserStore is an in-memory UserStore for engine tests.
type memUserStore struct {
	mu     sync.Mutex
	users  map[string]UserRecord
	nextID int
	// failWith, when set, is returned by every method.
	failWith error
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[string]UserRecord)}
}

func (s *memUserStore) GetByEmail(_ context.Context, email string) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return UserRecord{}, s.failWith
	}
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return UserRecord{}, ErrUserNotFound
}

func (s *memUserStore) GetByID(_ context.Context, id string) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return UserRecord{}, s.failWith
	}
	u, ok := s.users[id]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return u, nil
}

func (s *memUserStore) Create(_ context.Context, in CreateUserInput) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return UserRecord{}, s.failWith
	}
	for _, u := range s.users {
		if strings.EqualFold(u.Email, in.Email) || u.Username == in.Username {
			return UserRecord{}, ErrUserExists
		}
	}
	s.nextID++
	now := time.Now().UTC()
	u := UserRecord{
		ID:           fmt.Sprintf("u%d", s.nextID),
		Username:     in.Username,
		Email:        strings.ToLower(in.Email),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         in.Role,
		PasswordHash: in.PasswordHash,
		IsActive:     in.IsActive,
		IsVerified:   in.IsVerified,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.users[u.ID] = u
	return u, nil
}

func (s *memUserStore) update(id string, fn func(*UserRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	u, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	fn(&u)
	u.UpdatedAt = time.Now().UTC()
	s.users[id] = u
	return nil
}

func (s *memUserStore) UpdatePasswordHash(_ context.Context, id, hash string) error {
	return s.update(id, func(u *UserRecord) { u.PasswordHash = hash })
}

func (s *memUserStore) UpdateEmail(_ context.Context, id, email string) error {
	return s.update(id, func(u *UserRecord) { u.Email = strings.ToLower(email) })
}

func (s *memUserStore) SetVerified(_ context.Context, id string, verified bool) error {
	return s.update(id, func(u *UserRecord) { u.IsVerified = verified })
}

func (s *memUserStore) SetActive(_ context.Context, id string, active bool) error {
	return s.update(id, func(u *UserRecord) { u.IsActive = active })
}

func (s *memUserStore) UpdateRole(_ context.Context, id string, role authz.Role) error {
	return s.update(id, func(u *UserRecord) { u.Role = role })
}

func (s *memUserStore) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	return s.update(id, func(u *UserRecord) { u.LastLoginAt = at })
}

func (s *memUserStore) SoftDelete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	if _, ok := s.users[id]; !ok {
		return ErrUserNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *memUserStore) CountAdmins(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return 0, s.failWith
	}
	n := 0
	for _, u := range s.users {
		if u.Role == authz.RoleAdmin && u.IsActive {
			n++
		}
	}
	return n, nil
}

type testEnv struct {
	engine *Engine
	users  *memUserStore
	redis  *miniredis.Miniredis
}

func testEngineConfig() Config {
	cfg := defaultConfig()
	cfg.JWT.Secret = []byte("0123456789abcdef0123456789abcdef")
	// Cheap argon2 parameters keep the suite fast.
	cfg.Password = PasswordConfig{
		Memory:      8192,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
	cfg.Audit.Enabled = false
	return cfg
}

func newTestEngine(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := testEngineConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	users := newMemUserStore()
	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(users).
		Build()
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{engine: engine, users: users, redis: mr}
}

// newTestEngineWithSink builds an engine with auditing enabled and
// wired to the given sink.
func newTestEngineWithSink(t *testing.T, sink AuditSink) *testEnv {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := testEngineConfig()
	cfg.Audit.Enabled = true

	users := newMemUserStore()
	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(users).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{engine: engine, users: users, redis: mr}
}

// seedUser registers a user directly through the store with a real
// hash for the given password.
func (env *testEnv) seedUser(t *testing.T, email, pass string, mutate func(*CreateUserInput)) UserRecord {
	t.Helper()

	hash, err := env.engine.hasher.Hash(pass)
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	in := CreateUserInput{
		Username:     strings.SplitN(email, "@", 2)[0],
		Email:        email,
		PasswordHash: hash,
		Role:         authz.RoleUser,
		IsActive:     true,
		IsVerified:   true,
	}
	if mutate != nil {
		mutate(&in)
	}
	user, err := env.users.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("seed user error: %v", err)
	}
	return user
}
