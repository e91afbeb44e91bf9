package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/task-tracker/domain/apperr"
	domain "github.com/example/task-tracker/domain/user"
	"gorm.io/gorm"
)

// ErrUserNotFound is returned when a user is not found.
var ErrUserNotFound = errors.New("user not found")

// UserRepository is the credential store. Users are created and read, never
// updated or deleted.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{
		db: db,
	}
}

// Create inserts a new user and assigns its ID.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	result := r.db.WithContext(ctx).Create(user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return apperr.ErrDuplicateEmail
		}
		return fmt.Errorf("%w: create user: %v", apperr.ErrStorage, result.Error)
	}
	return nil
}

// FindByID finds a user by ID.
func (r *UserRepository) FindByID(ctx context.Context, id uint) (*domain.User, error) {
	var user domain.User
	result := r.db.WithContext(ctx).First(&user, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: find user: %v", apperr.ErrStorage, result.Error)
	}
	return &user, nil
}

// FindByEmail finds a user by normalised email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	result := r.db.WithContext(ctx).First(&user, "email = ?", domain.NormalizeEmail(email))
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: find user: %v", apperr.ErrStorage, result.Error)
	}
	return &user, nil
}

// EmailExists checks if a user with the given email exists.
func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&domain.User{}).Where("email = ?", domain.NormalizeEmail(email)).Count(&count)
	if result.Error != nil {
		return false, fmt.Errorf("%w: check email: %v", apperr.ErrStorage, result.Error)
	}
	return count > 0, nil
}
