package sqlite

import (
	"context"
	"errors"
	"fmt"

	"crowdwatch/internal/model"
	"crowdwatch/internal/repository"

	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

// UserRepository implements repository.UserRepository for SQLite.
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new SQLite user repository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a user; a reused email yields repository.ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	r.db.Lock()
	defer r.db.Unlock()

	if err := r.db.Gorm().WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("email %s: %w", user.Email, repository.ErrDuplicate)
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetByEmail retrieves a user by email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var user model.User
	err := r.db.Gorm().WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// List returns every user ordered by id.
func (r *UserRepository) List(ctx context.Context) ([]model.User, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	users := []model.User{}
	if err := r.db.Gorm().WithContext(ctx).Order("id").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var n int64
	if err := r.db.Gorm().WithContext(ctx).Model(&model.User{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

// UpdateRole sets the role of the user with the given email. It reports
// whether such a user existed.
func (r *UserRepository) UpdateRole(ctx context.Context, email string, role model.Role) (bool, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result := r.db.Gorm().WithContext(ctx).Model(&model.User{}).Where("email = ?", email).Update("role", role)
	if result.Error != nil {
		return false, fmt.Errorf("failed to update role: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id uint, hash string) error {
	r.db.Lock()
	defer r.db.Unlock()

	result := r.db.Gorm().WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Update("password", hash)
	if result.Error != nil {
		return fmt.Errorf("failed to update password: %w", result.Error)
	}
	return nil
}

// DeleteByEmail removes the user with the given email and reports whether
// a row was deleted.
func (r *UserRepository) DeleteByEmail(ctx context.Context, email string) (bool, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result := r.db.Gorm().WithContext(ctx).Where("email = ?", email).Delete(&model.User{})
	if result.Error != nil {
		return false, fmt.Errorf("failed to delete user: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
