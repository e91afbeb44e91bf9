package account

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/example/task-tracker/domain/apperr"
	domain "github.com/example/task-tracker/domain/user"
	"github.com/google/uuid"
)

// AccountService handles registration and the session lifecycle.
type AccountService struct {
	users    *UserRepository
	sessions SessionStore
	hasher   *PasswordHasher
	tokens   *TokenManager
	ttl      time.Duration
	timeout  time.Duration
	now      func() time.Time
}

// NewAccountService creates a new AccountService. Sessions last ttl; every
// store call is bounded by timeout.
func NewAccountService(users *UserRepository, sessions SessionStore, hasher *PasswordHasher, tokens *TokenManager, ttl, timeout time.Duration) *AccountService {
	return &AccountService{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		tokens:   tokens,
		ttl:      ttl,
		timeout:  timeout,
		now:      time.Now,
	}
}

func (s *AccountService) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// Register creates a new account.
func (s *AccountService) Register(ctx context.Context, name, email, password string) (*domain.User, error) {
	name = strings.TrimSpace(name)
	email = domain.NormalizeEmail(email)

	if name == "" {
		return nil, fmt.Errorf("%w: name is required", apperr.ErrValidation)
	}
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", apperr.ErrValidation)
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, fmt.Errorf("%w: invalid email format", apperr.ErrValidation)
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password is required", apperr.ErrValidation)
	}
	if len(password) > MaxPasswordLength {
		return nil, fmt.Errorf("%w: password must be at most %d bytes", apperr.ErrValidation, MaxPasswordLength)
	}

	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	exists, err := s.users.EmailExists(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.ErrDuplicateEmail
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    s.now(),
	}

	// The unique index still catches a concurrent registration that passed
	// the existence check.
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// Authenticate verifies credentials and opens a session. Unknown emails and
// wrong passwords both yield apperr.ErrInvalidCredentials.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*domain.SessionToken, error) {
	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.hasher.VerifyDummy(password)
			return nil, apperr.ErrInvalidCredentials
		}
		return nil, err
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, apperr.ErrInvalidCredentials
	}

	now := s.now()
	session := &domain.Session{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(session.ID, user.ID, now, session.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}

	return &domain.SessionToken{
		Token:     token,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// CurrentUser resolves a session token to a live user. Missing, malformed,
// expired or ended sessions and deleted users all yield
// apperr.ErrUnauthenticated.
func (s *AccountService) CurrentUser(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, apperr.ErrUnauthenticated
	}

	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, apperr.ErrUnauthenticated
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, apperr.ErrUnauthenticated
	}

	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	session, err := s.sessions.Find(ctx, claims.SessionID())
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, apperr.ErrUnauthenticated
		}
		return nil, err
	}
	if session.Expired(s.now()) {
		// Best effort; the record is unusable either way.
		_ = s.sessions.Delete(ctx, session.ID)
		return nil, apperr.ErrUnauthenticated
	}
	if session.UserID != userID {
		return nil, apperr.ErrUnauthenticated
	}

	user, err := s.users.FindByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, apperr.ErrUnauthenticated
		}
		return nil, err
	}

	return user, nil
}

// Resolve returns the session state for a token. The error is non-nil only
// when the stores fail.
func (s *AccountService) Resolve(ctx context.Context, token string) (domain.SessionState, error) {
	user, err := s.CurrentUser(ctx, token)
	if err != nil {
		if errors.Is(err, apperr.ErrUnauthenticated) {
			return domain.Anonymous(), nil
		}
		return domain.Anonymous(), err
	}
	return domain.Authenticated(user.ID), nil
}

// EndSession revokes the session behind token. Ending an unknown, malformed
// or already ended session succeeds.
func (s *AccountService) EndSession(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	claims, err := s.tokens.ParseAllowExpired(token)
	if err != nil {
		return nil
	}

	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	return s.sessions.Delete(ctx, claims.SessionID())
}
