package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"crowdwatch/internal/auth"
	"crowdwatch/internal/logger"
	"crowdwatch/internal/model"
	"crowdwatch/internal/repository"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMissingFields      = errors.New("name, email and password are required")
	ErrInvalidRole        = errors.New("invalid role")
	ErrPasswordTooLong    = auth.ErrPasswordTooLong
)

// Service holds account rules on top of the user repository.
type Service struct {
	repo               repository.UserRepository
	logger             *logger.Logger
	allowRoleSelection bool
}

// NewService creates a user service. When allowRoleSelection is false,
// self-registration always produces a plain user.
func NewService(repo repository.UserRepository, logger *logger.Logger, allowRoleSelection bool) *Service {
	return &Service{repo: repo, logger: logger, allowRoleSelection: allowRoleSelection}
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(email)
}

// Register creates an account from the public registration form.
func (s *Service) Register(ctx context.Context, name, email, password, role string) (*model.User, error) {
	requested := model.RoleUser
	if role != "" {
		r, ok := model.ParseRole(role)
		if !ok {
			return nil, ErrInvalidRole
		}
		requested = r
	}
	if requested == model.RoleAdmin && !s.allowRoleSelection {
		s.logger.Warning("Registration for %s asked for admin role; creating a user account", email)
		requested = model.RoleUser
	}
	return s.CreateUser(ctx, name, email, password, requested)
}

// CreateUser stores a new account with the given role.
func (s *Service) CreateUser(ctx context.Context, name, email, password string, role model.Role) (*model.User, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return nil, ErrMissingFields
	}
	if _, ok := model.ParseRole(string(role)); !ok {
		return nil, ErrInvalidRole
	}
	if len(password) > auth.MaxPasswordBytes {
		return nil, ErrPasswordTooLong
	}

	existing, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &model.User{Name: name, Email: email, Password: hash, Role: role}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	s.logger.Info("Registered %s (%s)", email, role)
	return user, nil
}

// Authenticate returns the user owning email when password matches.
// Legacy plaintext passwords are rehashed on first successful login.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	ok, needsRehash := auth.CheckPassword(user.Password, password)
	if !ok {
		return nil, ErrInvalidCredentials
	}

	if needsRehash {
		s.rehash(ctx, user, password)
	}
	return user, nil
}

// rehash stores a bcrypt hash in place of a legacy plaintext password.
// Failures are logged; the login itself already succeeded.
func (s *Service) rehash(ctx context.Context, user *model.User, password string) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		s.logger.Warning("Could not upgrade password of %s: %v", user.Email, err)
		return
	}
	if err := s.repo.UpdatePassword(ctx, user.ID, hash); err != nil {
		s.logger.Warning("Could not upgrade password of %s: %v", user.Email, err)
		return
	}
	user.Password = hash
	s.logger.Info("Upgraded stored password of %s to bcrypt", user.Email)
}

// Get returns the user owning email.
func (s *Service) Get(ctx context.Context, email string) (*model.User, error) {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *Service) List(ctx context.Context) ([]model.User, error) {
	return s.repo.List(ctx)
}

func (s *Service) Promote(ctx context.Context, email string) error {
	return s.setRole(ctx, email, model.RoleAdmin)
}

func (s *Service) Demote(ctx context.Context, email string) error {
	return s.setRole(ctx, email, model.RoleUser)
}

func (s *Service) setRole(ctx context.Context, email string, role model.Role) error {
	found, err := s.repo.UpdateRole(ctx, normalizeEmail(email), role)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%s: %w", email, ErrUserNotFound)
	}
	s.logger.Info("Set role of %s to %s", email, role)
	return nil
}

func (s *Service) Delete(ctx context.Context, email string) error {
	deleted, err := s.repo.DeleteByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("%s: %w", email, ErrUserNotFound)
	}
	s.logger.Info("Deleted user %s", email)
	return nil
}

// UpgradeLegacyPasswords replaces every plaintext password left by the old
// schema with its bcrypt hash and returns how many rows changed. Passwords
// bcrypt cannot hash are left as they are and logged.
func (s *Service) UpgradeLegacyPasswords(ctx context.Context) (int, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return 0, err
	}

	upgraded := 0
	for _, u := range list {
		if auth.IsHashed(u.Password) {
			continue
		}
		hash, err := auth.HashPassword(u.Password)
		if errors.Is(err, auth.ErrPasswordTooLong) {
			s.logger.Warning("Skipping %s: stored password is longer than %d bytes", u.Email, auth.MaxPasswordBytes)
			continue
		}
		if err != nil {
			return upgraded, fmt.Errorf("hash password of %s: %w", u.Email, err)
		}
		if err := s.repo.UpdatePassword(ctx, u.ID, hash); err != nil {
			return upgraded, err
		}
		upgraded++
	}
	if upgraded > 0 {
		s.logger.Info("Upgraded %d plaintext passwords to bcrypt", upgraded)
	}
	return upgraded, nil
}
