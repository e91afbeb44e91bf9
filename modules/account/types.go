package account

import (
	"time"
)

// RegisterRequest represents a user registration request.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse describes a registered user. The password hash never leaves
// the module.
type UserResponse struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// AuthenticateRequest represents a login attempt.
type AuthenticateRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthenticateResponse carries a freshly issued session token.
type AuthenticateResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionRequest identifies a session by its token.
type SessionRequest struct {
	Token string `json:"token"`
}

// ResolveResponse is the session state of a token.
type ResolveResponse struct {
	Authenticated bool `json:"authenticated"`
	UserID        uint `json:"user_id,omitempty"`
}

// EndSessionResponse acknowledges a logout.
type EndSessionResponse struct {
	Ended bool `json:"ended"`
}
