package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/publishing-service/internal/auth"
	"github.com/spec-kit/publishing-service/internal/domain"
	apperrors "github.com/spec-kit/publishing-service/pkg/util"
)

// ProfileUpdate lists editable profile fields. Nil means unchanged.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
}

// UserService covers self-service profile edits and the administrative
// paths that change role and active status.
type UserService struct {
	credentials *CredentialStore
	hasher      *auth.PasswordHasher
	logger      *zap.Logger
}

// NewUserService builds the service.
func NewUserService(credentials *CredentialStore, hasher *auth.PasswordHasher, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{credentials: credentials, hasher: hasher, logger: logger.Named("users")}
}

// Profile returns the identity for userID.
func (s *UserService) Profile(ctx context.Context, userID string) (*domain.User, error) {
	return s.credentials.FindByID(ctx, userID)
}

// UpdateProfile applies the non-nil fields of upd.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*domain.User, error) {
	user, err := s.credentials.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if upd.FirstName != nil {
		user.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		user.LastName = *upd.LastName
	}
	if err := s.credentials.Save(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ChangePassword replaces the password after checking the current one.
func (s *UserService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.credentials.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !s.credentials.VerifySecret(user, currentPassword) {
		s.logger.Info("password change rejected", zap.String("user_id", userID))
		return apperrors.NewUnauthorized("current password is incorrect")
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return apperrors.NewValidationError("new password is required", nil)
	}
	user.PasswordHash = hash
	if err := s.credentials.Save(ctx, user); err != nil {
		return err
	}
	s.logger.Info("password changed", zap.String("user_id", userID))
	return nil
}

// ChangeRole sets the role of userID. Tokens already issued keep the old
// role claim, but every guarded request re-reads the identity.
func (s *UserService) ChangeRole(ctx context.Context, actorID, userID string, role domain.Role) (*domain.User, error) {
	if !role.Valid() {
		return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": role})
	}
	user, err := s.credentials.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Role = role
	if err := s.credentials.Save(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("role changed", zap.String("actor_id", actorID), zap.String("user_id", userID), zap.String("role", string(role)))
	return user, nil
}

// ToggleStatus flips the active flag of userID. Admins cannot deactivate
// themselves.
func (s *UserService) ToggleStatus(ctx context.Context, actorID, userID string) (*domain.User, error) {
	if actorID == userID {
		return nil, apperrors.NewForbidden("cannot change your own status")
	}
	user, err := s.credentials.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Active = !user.Active
	if err := s.credentials.Save(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("status toggled", zap.String("actor_id", actorID), zap.String("user_id", userID), zap.Bool("active", user.Active))
	return user, nil
}
