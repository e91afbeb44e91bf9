package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/task-tracker/domain/apperr"
	domain "github.com/example/task-tracker/domain/user"
	"gorm.io/gorm"
)

// ErrSessionNotFound is returned when no live session record exists.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore persists session records.
type SessionStore interface {
	// Save stores a new session record.
	Save(ctx context.Context, session *domain.Session) error
	// Find returns the record with the given id, or ErrSessionNotFound.
	Find(ctx context.Context, id string) (*domain.Session, error)
	// Delete removes the record. Deleting an absent record is not an error.
	Delete(ctx context.Context, id string) error
	// Close releases the store's resources.
	Close() error
}

// GormSessionStore keeps session records in the sessions table.
type GormSessionStore struct {
	db *gorm.DB
}

var _ SessionStore = (*GormSessionStore)(nil)

// NewGormSessionStore creates a session store backed by the database.
func NewGormSessionStore(db *gorm.DB) *GormSessionStore {
	return &GormSessionStore{db: db}
}

// Save stores a new session record.
func (s *GormSessionStore) Save(ctx context.Context, session *domain.Session) error {
	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("%w: save session: %v", apperr.ErrStorage, err)
	}
	return nil
}

// Find returns the record with the given id.
func (s *GormSessionStore) Find(ctx context.Context, id string) (*domain.Session, error) {
	var session domain.Session
	if err := s.db.WithContext(ctx).First(&session, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: find session: %v", apperr.ErrStorage, err)
	}
	return &session, nil
}

// Delete removes the record with the given id.
func (s *GormSessionStore) Delete(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Delete(&domain.Session{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("%w: delete session: %v", apperr.ErrStorage, err)
	}
	return nil
}

// Close is a no-op; the database is owned by the database plugin.
func (s *GormSessionStore) Close() error {
	return nil
}

// KeyValueStorage is the subset of the gofiber storage interface used for
// session records.
type KeyValueStorage interface {
	GetWithContext(ctx context.Context, key string) ([]byte, error)
	SetWithContext(ctx context.Context, key string, val []byte, exp time.Duration) error
	DeleteWithContext(ctx context.Context, key string) error
	Close() error
}

// KVSessionStore keeps session records in a key-value storage such as
// gofiber/storage/redis. Keys expire together with the session.
type KVSessionStore struct {
	storage KeyValueStorage
	prefix  string
	now     func() time.Time
}

var _ SessionStore = (*KVSessionStore)(nil)

// NewKVSessionStore creates a session store over the given storage.
func NewKVSessionStore(storage KeyValueStorage, prefix string) *KVSessionStore {
	return &KVSessionStore{
		storage: storage,
		prefix:  prefix,
		now:     time.Now,
	}
}

// Save stores a new session record with a TTL matching its expiry.
func (s *KVSessionStore) Save(ctx context.Context, session *domain.Session) error {
	ttl := session.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return fmt.Errorf("%w: session already expired", apperr.ErrValidation)
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("session marshal error: %w", err)
	}

	if err := s.storage.SetWithContext(ctx, s.prefix+session.ID, data, ttl); err != nil {
		return fmt.Errorf("%w: save session: %v", apperr.ErrStorage, err)
	}
	return nil
}

// Find returns the record with the given id.
func (s *KVSessionStore) Find(ctx context.Context, id string) (*domain.Session, error) {
	data, err := s.storage.GetWithContext(ctx, s.prefix+id)
	if err != nil {
		return nil, fmt.Errorf("%w: find session: %v", apperr.ErrStorage, err)
	}

	// nil or empty means the key is absent or expired
	if len(data) == 0 {
		return nil, ErrSessionNotFound
	}

	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("session unmarshal error: %w", err)
	}
	return &session, nil
}

// Delete removes the record with the given id.
func (s *KVSessionStore) Delete(ctx context.Context, id string) error {
	if err := s.storage.DeleteWithContext(ctx, s.prefix+id); err != nil {
		return fmt.Errorf("%w: delete session: %v", apperr.ErrStorage, err)
	}
	return nil
}

// Close closes the underlying storage.
func (s *KVSessionStore) Close() error {
	return s.storage.Close()
}
