package dto

import (
	"errors"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/spec-kit/publishing-service/internal/domain"
	apperrors "github.com/spec-kit/publishing-service/pkg/util"
)

const (
	passwordMinLength = 6
	passwordMaxLength = 20
	nameMinLength     = 2
	nameMaxLength     = 50
)

var (
	hasLower = regexp.MustCompile(`[a-z]`)
	hasUpper = regexp.MustCompile(`[A-Z]`)
	hasDigit = regexp.MustCompile(`[0-9]`)
	// Only letters, digits and @$!%*?& are accepted in passwords.
	passwordCharset = regexp.MustCompile(`^[a-zA-Z\d@$!%*?&]+$`)
)

func passwordRules() []validation.Rule {
	return []validation.Rule{
		validation.Required,
		validation.Length(passwordMinLength, passwordMaxLength),
		validation.Match(hasLower).Error("must contain a lowercase letter"),
		validation.Match(hasUpper).Error("must contain an uppercase letter"),
		validation.Match(hasDigit).Error("must contain a digit"),
		validation.Match(passwordCharset).Error("contains unsupported characters"),
	}
}

// RegisterRequest payload for new users.
type RegisterRequest struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	RecaptchaToken string `json:"recaptchaToken"`
}

// Normalize trims user supplied text and lower-cases the email.
func (r *RegisterRequest) Normalize() {
	r.Email = domain.NormalizeEmail(r.Email)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
}

// Validate checks field rules.
func (r RegisterRequest) Validate() error {
	return asDomainError(validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email, validation.Length(0, 100)),
		validation.Field(&r.Password, passwordRules()...),
		validation.Field(&r.FirstName, validation.Required, validation.Length(nameMinLength, nameMaxLength)),
		validation.Field(&r.LastName, validation.Required, validation.Length(nameMinLength, nameMaxLength)),
	))
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Normalize trims and lower-cases the email the same way registration does.
func (r *LoginRequest) Normalize() {
	r.Email = domain.NormalizeEmail(r.Email)
}

// Validate checks field rules. Password strength is not re-checked here so
// that accounts predating the current rules can still log in.
func (r LoginRequest) Validate() error {
	return asDomainError(validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	))
}

// RefreshRequest payload for token refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Validate checks field rules.
func (r RefreshRequest) Validate() error {
	return asDomainError(validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	))
}

// ChangePasswordRequest payload for authenticated password change.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// Validate checks field rules.
func (r ChangePasswordRequest) Validate() error {
	return asDomainError(validation.ValidateStruct(&r,
		validation.Field(&r.CurrentPassword, validation.Required),
		validation.Field(&r.NewPassword, passwordRules()...),
	))
}

// ChangeRoleRequest payload for the admin role endpoint.
type ChangeRoleRequest struct {
	Role domain.Role `json:"role"`
}

// Validate checks field rules.
func (r ChangeRoleRequest) Validate() error {
	return asDomainError(validation.ValidateStruct(&r,
		validation.Field(&r.Role, validation.Required, validation.In(domain.RoleUser, domain.RoleAdmin).Error(`must be "user" or "admin"`)),
	))
}

// UpdateProfileRequest payload for profile edits. Nil fields are left unchanged.
type UpdateProfileRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
}

// Normalize trims provided names.
func (r *UpdateProfileRequest) Normalize() {
	if r.FirstName != nil {
		v := strings.TrimSpace(*r.FirstName)
		r.FirstName = &v
	}
	if r.LastName != nil {
		v := strings.TrimSpace(*r.LastName)
		r.LastName = &v
	}
}

// Validate checks field rules.
func (r UpdateProfileRequest) Validate() error {
	return asDomainError(validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.NilOrNotEmpty, validation.Length(nameMinLength, nameMaxLength)),
		validation.Field(&r.LastName, validation.NilOrNotEmpty, validation.Length(nameMinLength, nameMaxLength)),
	))
}

// UserResponse is the sanitized identity view. It never carries the hash.
type UserResponse struct {
	ID        string      `json:"id"`
	Email     string      `json:"email"`
	FirstName string      `json:"firstName"`
	LastName  string      `json:"lastName"`
	Role      domain.Role `json:"role"`
}

// ProfileResponse adds status and audit fields to UserResponse.
type ProfileResponse struct {
	UserResponse
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewUserResponse maps a domain user to its public view.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
	}
}

// NewProfileResponse maps a domain user to its profile view.
func NewProfileResponse(u *domain.User) ProfileResponse {
	return ProfileResponse{
		UserResponse: NewUserResponse(u),
		IsActive:     u.Active,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

// LoginResponse is returned by POST /auth/login.
type LoginResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         UserResponse `json:"user"`
}

// RegisterResponse is returned by POST /auth/register.
type RegisterResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	User    UserResponse `json:"user"`
}

// TokenPairResponse is returned by POST /auth/refresh.
type TokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// MessageResponse is a generic acknowledgement.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func asDomainError(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		details := make(map[string]any, len(fieldErrs))
		for field, fieldErr := range fieldErrs {
			details[field] = fieldErr.Error()
		}
		return apperrors.NewValidationError("validation failed", details)
	}
	return apperrors.NewValidationError(err.Error(), nil)
}
