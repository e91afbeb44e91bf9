package user

import (
	"strings"
	"time"
)

// User is a registered account. Email is stored normalised.
type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	Name         string `gorm:"not null;size:200"`
	Email        string `gorm:"uniqueIndex;not null;size:200"`
	PasswordHash string `gorm:"not null;size:200"`
	CreatedAt    time.Time
}

// TableName returns the table name for the User entity.
func (User) TableName() string {
	return "users"
}

// Session is the server-side record behind a session token. A token whose
// record is absent or expired resolves to the anonymous state.
type Session struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
}

// TableName returns the table name for the Session entity.
func (Session) TableName() string {
	return "sessions"
}

// Expired reports whether the session is no longer valid at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SessionState is the authentication state of a request: either anonymous
// or authenticated as exactly one user.
type SessionState struct {
	userID        uint
	authenticated bool
}

// Anonymous returns the unauthenticated state.
func Anonymous() SessionState {
	return SessionState{}
}

// Authenticated returns the state of a request made by userID.
func Authenticated(userID uint) SessionState {
	return SessionState{userID: userID, authenticated: true}
}

// IsAuthenticated reports whether the state identifies a user.
func (s SessionState) IsAuthenticated() bool {
	return s.authenticated
}

// UserID returns the authenticated user's id and whether there is one.
func (s SessionState) UserID() (uint, bool) {
	return s.userID, s.authenticated
}

// NormalizeEmail trims and lower-cases an address. Uniqueness is checked on
// the normalised form, making it case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SessionToken is handed to a client after a successful login. The token is
// opaque to the client.
type SessionToken struct {
	Token     string
	ExpiresAt time.Time
}
