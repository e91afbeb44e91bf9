package account

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/example/task-tracker/domain/apperr"
	domain "github.com/example/task-tracker/domain/user"
	"github.com/gofiber/storage/redis/v3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRedisAddr = "localhost:6379"

// checkRedisAvailable skips the test when Redis is unreachable.
// gofiber/storage/redis panics on connection failure, so check first.
func checkRedisAvailable(t *testing.T) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", testRedisAddr, 2*time.Second)
	if err != nil {
		t.Skipf("Redis not available at %s: %v", testRedisAddr, err)
	}
	conn.Close()
}

// memoryStorage is an in-process KeyValueStorage.
type memoryStorage struct {
	mu     sync.Mutex
	data   map[string][]byte
	ttls   map[string]time.Duration
	closed bool
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{
		data: make(map[string][]byte),
		ttls: make(map[string]time.Duration),
	}
}

func (s *memoryStorage) GetWithContext(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key], nil
}

func (s *memoryStorage) SetWithContext(_ context.Context, key string, val []byte, exp time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = val
	s.ttls[key] = exp
	return nil
}

func (s *memoryStorage) DeleteWithContext(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	delete(s.ttls, key)
	return nil
}

func (s *memoryStorage) Close() error {
	s.closed = true
	return nil
}

func newSession(userID uint, ttl time.Duration) *domain.Session {
	now := time.Now().Truncate(time.Second)
	return &domain.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// exerciseSessionStore runs the behaviour every SessionStore must share.
func exerciseSessionStore(t *testing.T, s SessionStore) {
	t.Helper()
	ctx := context.Background()

	session := newSession(42, time.Hour)
	require.NoError(t, s.Save(ctx, session))

	found, err := s.Find(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, found.ID)
	assert.Equal(t, uint(42), found.UserID)
	assert.True(t, session.ExpiresAt.Equal(found.ExpiresAt))

	_, err = s.Find(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, s.Delete(ctx, session.ID))
	_, err = s.Find(ctx, session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// Deleting an absent record is fine.
	assert.NoError(t, s.Delete(ctx, session.ID))
}

func TestGormSessionStore(t *testing.T) {
	exerciseSessionStore(t, NewGormSessionStore(newTestDB(t)))
}

func TestKVSessionStore(t *testing.T) {
	storage := newMemoryStorage()
	s := NewKVSessionStore(storage, "session:")

	exerciseSessionStore(t, s)

	session := newSession(1, time.Hour)
	require.NoError(t, s.Save(context.Background(), session))
	assert.Contains(t, storage.data, "session:"+session.ID)
	assert.InDelta(t, time.Hour.Seconds(), storage.ttls["session:"+session.ID].Seconds(), 2)

	require.NoError(t, s.Close())
	assert.True(t, storage.closed)
}

func TestKVSessionStore_RejectsExpired(t *testing.T) {
	s := NewKVSessionStore(newMemoryStorage(), "session:")

	err := s.Save(context.Background(), newSession(1, -time.Minute))
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestKVSessionStore_Redis(t *testing.T) {
	checkRedisAvailable(t)

	host, port := parseRedisAddr(testRedisAddr)
	storage := redis.New(redis.Config{
		Host: host,
		Port: port,
	})
	s := NewKVSessionStore(storage, "test-session:"+uuid.NewString()+":")
	defer s.Close()

	exerciseSessionStore(t, s)
}

func TestParseRedisAddr(t *testing.T) {
	tests := []struct {
		addr     string
		wantHost string
		wantPort int
	}{
		{addr: "redis:6380", wantHost: "redis", wantPort: 6380},
		{addr: ":6379", wantHost: "127.0.0.1", wantPort: 6379},
		{addr: "redis", wantHost: "127.0.0.1", wantPort: 6379},
		{addr: "redis:abc", wantHost: "redis", wantPort: 6379},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			host, port := parseRedisAddr(tt.addr)
			assert.Equal(t, tt.wantHost, host)
			assert.Equal(t, tt.wantPort, port)
		})
	}
}
