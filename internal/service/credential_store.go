package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/publishing-service/internal/auth"
	"github.com/spec-kit/publishing-service/internal/domain"
	"github.com/spec-kit/publishing-service/internal/repository"
	apperrors "github.com/spec-kit/publishing-service/pkg/util"
)

// NewIdentity carries the fields needed to create a credential record.
type NewIdentity struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      domain.Role
	Active    bool
}

// CredentialStore owns identity records and their password hashes.
type CredentialStore struct {
	users  repository.UserRepository
	hasher *auth.PasswordHasher
	logger *zap.Logger
}

// NewCredentialStore builds the store.
func NewCredentialStore(users repository.UserRepository, hasher *auth.PasswordHasher, logger *zap.Logger) *CredentialStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CredentialStore{users: users, hasher: hasher, logger: logger.Named("credentials")}
}

// Create hashes the password and persists a new identity.
func (s *CredentialStore) Create(ctx context.Context, in NewIdentity) (*domain.User, error) {
	email := domain.NormalizeEmail(in.Email)

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("email already registered", nil)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewInternalError(err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		if errors.Is(err, auth.ErrEmptyPassword) {
			return nil, apperrors.NewValidationError("password is required", nil)
		}
		return nil, apperrors.NewInternalError(err)
	}

	role := in.Role
	if role == "" {
		role = domain.RoleUser
	}
	if !role.Valid() {
		return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": role})
	}

	user := &domain.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         role,
		Active:       in.Active,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, apperrors.NewConflict("email already registered", nil)
		}
		return nil, apperrors.NewInternalError(err)
	}

	s.logger.Info("identity created", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

// FindByID loads an identity by id.
func (s *CredentialStore) FindByID(ctx context.Context, id string) (*domain.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NewNotFound("user", nil)
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("user", nil)
		}
		return nil, apperrors.NewInternalError(err)
	}
	return user, nil
}

// FindByEmail loads an identity by its normalized email.
func (s *CredentialStore) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("user", nil)
		}
		return nil, apperrors.NewInternalError(err)
	}
	return user, nil
}

// VerifySecret reports whether password matches the stored hash.
func (s *CredentialStore) VerifySecret(user *domain.User, password string) bool {
	if user == nil {
		return false
	}
	return s.hasher.Verify(password, user.PasswordHash)
}

// Save persists changes to an identity. A PasswordHash that does not have
// the shape of a bcrypt hash is treated as plaintext and hashed; an existing
// hash is written back untouched.
func (s *CredentialStore) Save(ctx context.Context, user *domain.User) error {
	user.Email = domain.NormalizeEmail(user.Email)

	hash, err := s.hasher.HashIfNeeded(user.PasswordHash)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	user.PasswordHash = hash

	if err := s.users.Update(ctx, user); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return apperrors.NewNotFound("user", nil)
		case errors.Is(err, repository.ErrDuplicateEmail):
			return apperrors.NewConflict("email already registered", nil)
		default:
			return apperrors.NewInternalError(err)
		}
	}
	return nil
}
