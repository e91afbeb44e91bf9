package account

import (
	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultBcryptCost is the default cost for bcrypt hashing.
	DefaultBcryptCost = 12

	// MaxPasswordLength is bcrypt's input limit in bytes.
	MaxPasswordLength = 72
)

// PasswordHasher hashes passwords with salted bcrypt and verifies them with
// bcrypt's constant-time comparison.
type PasswordHasher struct {
	cost int
	// dummy is compared against when the account does not exist so that an
	// unknown email costs the same as a wrong password.
	dummy []byte
}

// NewPasswordHasher creates a PasswordHasher with the given cost. Costs
// outside bcrypt's range fall back to DefaultBcryptCost.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), cost)
	if err != nil {
		panic("account: failed to generate dummy hash: " + err.Error())
	}
	return &PasswordHasher{
		cost:  cost,
		dummy: dummy,
	}
}

// Hash generates a bcrypt hash of the given password.
func (h *PasswordHasher) Hash(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// Verify checks if the provided password matches the hash.
func (h *PasswordHasher) Verify(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// VerifyDummy runs a full comparison against a hash no password matches.
// It always returns false.
func (h *PasswordHasher) VerifyDummy(password string) bool {
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(password))
	return false
}
