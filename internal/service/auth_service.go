package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/publishing-service/internal/auth"
	"github.com/spec-kit/publishing-service/internal/captcha"
	"github.com/spec-kit/publishing-service/internal/domain"
	apperrors "github.com/spec-kit/publishing-service/pkg/util"
)

const (
	msgInvalidCredentials = "invalid credentials"
	msgInvalidRefresh     = "invalid or expired refresh token"
	msgInvalidAccess      = "invalid or expired token"
)

// RegisterInput carries registration fields supplied by the transport layer.
type RegisterInput struct {
	Email        string
	Password     string
	FirstName    string
	LastName     string
	CaptchaToken string
	RemoteIP     string
}

// LoginResult bundles the issued tokens with the identity they belong to.
type LoginResult struct {
	User   *domain.User
	Tokens *domain.TokenPair
}

// AuthService coordinates registration, login and token flows.
type AuthService struct {
	credentials *CredentialStore
	hasher      *auth.PasswordHasher
	tokens      *auth.TokenCodec
	captcha     captcha.Verifier
	logger      *zap.Logger
	// dummyHash is compared against on unknown emails so both failure paths
	// spend the same bcrypt work.
	dummyHash string
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	Credentials *CredentialStore
	Hasher      *auth.PasswordHasher
	Tokens      *auth.TokenCodec
	Captcha     captcha.Verifier
	Logger      *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) (*AuthService, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	dummy, err := deps.Hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, err
	}
	return &AuthService{
		credentials: deps.Credentials,
		hasher:      deps.Hasher,
		tokens:      deps.Tokens,
		captcha:     deps.Captcha,
		logger:      logger.Named("auth"),
		dummyHash:   dummy,
	}, nil
}

// Register creates a new user account with the default role.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	if s.captcha != nil {
		if err := s.captcha.Verify(ctx, in.CaptchaToken, in.RemoteIP); err != nil {
			return nil, err
		}
	}

	user, err := s.credentials.Create(ctx, NewIdentity{
		Email:     in.Email,
		Password:  in.Password,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Role:      domain.RoleUser,
		Active:    true,
	})
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeConflict) {
			s.logger.Info("registration rejected", zap.String("reason", "email taken"))
		}
		return nil, err
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID))
	return user, nil
}

// Login authenticates credentials and issues a token pair. Unknown email,
// wrong password and inactive account produce the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.credentials.FindByEmail(ctx, email)
	if err != nil {
		if !apperrors.HasCode(err, apperrors.CodeNotFound) {
			return nil, err
		}
		s.hasher.Verify(password, s.dummyHash)
		s.logger.Info("login rejected", zap.String("reason", "unknown email"))
		return nil, apperrors.NewUnauthorized(msgInvalidCredentials)
	}

	if !s.credentials.VerifySecret(user, password) {
		s.logger.Info("login rejected", zap.String("reason", "password mismatch"), zap.String("user_id", user.ID))
		return nil, apperrors.NewUnauthorized(msgInvalidCredentials)
	}
	if !user.Active {
		s.logger.Info("login rejected", zap.String("reason", "inactive"), zap.String("user_id", user.ID))
		return nil, apperrors.NewUnauthorized(msgInvalidCredentials)
	}

	pair, err := s.tokens.IssuePair(subjectOf(user))
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.logger.Info("login succeeded", zap.String("user_id", user.ID))
	return &LoginResult{User: user, Tokens: pair}, nil
}

// Refresh exchanges a refresh token for a new token pair. The identity is
// re-read so deactivation takes effect on the next refresh.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	claims, err := s.tokens.Verify(refreshToken, domain.TokenKindRefresh)
	if err != nil {
		s.logger.Info("refresh rejected", zap.String("reason", tokenFailureReason(err)))
		return nil, apperrors.NewUnauthorized(msgInvalidRefresh)
	}

	user, err := s.resolveActive(ctx, claims.Subject, "refresh rejected")
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeUnauthorized) {
			return nil, apperrors.NewUnauthorized(msgInvalidRefresh)
		}
		return nil, err
	}

	pair, err := s.tokens.IssuePair(subjectOf(user))
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	s.logger.Info("tokens refreshed", zap.String("user_id", user.ID))
	return pair, nil
}

// ValidateAccessToken verifies an access token and returns the current identity.
func (s *AuthService) ValidateAccessToken(ctx context.Context, accessToken string) (*domain.User, error) {
	claims, err := s.tokens.Verify(accessToken, domain.TokenKindAccess)
	if err != nil {
		s.logger.Debug("access token rejected", zap.String("reason", tokenFailureReason(err)))
		return nil, apperrors.NewUnauthorized(msgInvalidAccess)
	}

	user, err := s.resolveActive(ctx, claims.Subject, "access token rejected")
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeUnauthorized) {
			return nil, apperrors.NewUnauthorized(msgInvalidAccess)
		}
		return nil, err
	}
	return user, nil
}

func (s *AuthService) resolveActive(ctx context.Context, userID, logMsg string) (*domain.User, error) {
	user, err := s.credentials.FindByID(ctx, userID)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeNotFound) {
			s.logger.Info(logMsg, zap.String("reason", "identity not found"), zap.String("user_id", userID))
			return nil, apperrors.NewUnauthorized(msgInvalidAccess)
		}
		return nil, err
	}
	if !user.Active {
		s.logger.Info(logMsg, zap.String("reason", "inactive"), zap.String("user_id", userID))
		return nil, apperrors.NewUnauthorized(msgInvalidAccess)
	}
	return user, nil
}

func subjectOf(user *domain.User) auth.TokenSubject {
	return auth.TokenSubject{ID: user.ID, Email: user.Email, Role: user.Role}
}

func tokenFailureReason(err error) string {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return "expired"
	case errors.Is(err, auth.ErrTokenSignature):
		return "bad signature"
	case errors.Is(err, auth.ErrTokenWrongKind):
		return "wrong kind"
	default:
		return "malformed"
	}
}
