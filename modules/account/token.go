package account

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when the token is malformed or badly signed.
	ErrInvalidToken = errors.New("invalid session token")
	// ErrExpiredToken is returned when the token has expired.
	ErrExpiredToken = errors.New("session token has expired")
)

// TokenConfig holds session token configuration.
type TokenConfig struct {
	SecretKey string
	Issuer    string
}

// SessionClaims are the claims carried by a session token. The token ID
// (jti) names the server-side session record.
type SessionClaims struct {
	jwt.RegisteredClaims
}

// SessionID returns the id of the session record the token refers to.
func (c *SessionClaims) SessionID() string {
	return c.ID
}

// UserID returns the subject as a user id.
func (c *SessionClaims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil {
		return 0, ErrInvalidToken
	}
	return uint(id), nil
}

// TokenManager signs and verifies session tokens.
type TokenManager struct {
	config TokenConfig
}

// NewTokenManager creates a new TokenManager with the given configuration.
func NewTokenManager(config TokenConfig) *TokenManager {
	return &TokenManager{
		config: config,
	}
}

// Issue signs a token for the given session.
func (m *TokenManager) Issue(sessionID string, userID uint, issuedAt, expiresAt time.Time) (string, error) {
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Issuer:    m.config.Issuer,
			Subject:   strconv.FormatUint(uint64(userID), 10),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.config.SecretKey))
}

// Parse verifies the signature, issuer and expiry of a token and returns
// its claims.
func (m *TokenManager) Parse(tokenString string) (*SessionClaims, error) {
	return m.parse(tokenString)
}

// ParseAllowExpired is Parse without the time checks. It is used to revoke
// sessions whose token has already expired.
func (m *TokenManager) ParseAllowExpired(tokenString string) (*SessionClaims, error) {
	return m.parse(tokenString, jwt.WithoutClaimsValidation())
}

func (m *TokenManager) parse(tokenString string, opts ...jwt.ParserOption) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(m.config.SecretKey), nil
	}, opts...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.ID == "" || claims.Issuer != m.config.Issuer {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
