package auth

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// bcryptHashLen is the length of every encoded bcrypt hash.
const bcryptHashLen = 60

// ErrEmptyPassword is returned when hashing an empty secret.
var ErrEmptyPassword = errors.New("password must not be empty")

// PasswordHasher hashes and verifies secrets with bcrypt.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher clamps cost into bcrypt's accepted range.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

// Cost returns the configured work factor.
func (h *PasswordHasher) Cost() int {
	return h.cost
}

// Hash hashes a plaintext password with a fresh salt.
func (h *PasswordHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// HashIfNeeded hashes value unless it already has the shape of a bcrypt hash.
// Save paths call this so a stored hash is never hashed a second time.
func (h *PasswordHasher) HashIfNeeded(value string) (string, error) {
	if IsHashed(value) {
		return value, nil
	}
	return h.Hash(value)
}

// Verify reports whether password matches hashed. Malformed hashes yield false.
func (h *PasswordHasher) Verify(password, hashed string) bool {
	if password == "" || hashed == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password)) == nil
}

// IsHashed reports whether value looks like an encoded bcrypt hash:
// "$2a$", "$2b$" or "$2y$", a two digit cost, "$", then 53 salt+digest chars.
func IsHashed(value string) bool {
	if len(value) != bcryptHashLen {
		return false
	}
	if !strings.HasPrefix(value, "$2a$") && !strings.HasPrefix(value, "$2b$") && !strings.HasPrefix(value, "$2y$") {
		return false
	}
	if !isDigit(value[4]) || !isDigit(value[5]) || value[6] != '$' {
		return false
	}
	for i := 7; i < len(value); i++ {
		if !isBcryptBase64(value[i]) {
			return false
		}
	}
	return true
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isBcryptBase64(c byte) bool {
	return c == '.' || c == '/' || isDigit(c) || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}
