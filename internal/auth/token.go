package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/publishing-service/internal/domain"
)

// Verification failures. Callers switch on these with errors.Is.
var (
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenSignature = errors.New("token signature invalid")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenWrongKind = errors.New("token kind mismatch")
)

// Claims describes the JWT payload.
type Claims struct {
	Email string           `json:"email"`
	Role  domain.Role      `json:"role"`
	Kind  domain.TokenKind `json:"type"`
	jwt.RegisteredClaims
}

// TokenSubject is the identity snapshot embedded into issued tokens.
type TokenSubject struct {
	ID    string
	Email string
	Role  domain.Role
}

// TokenConfig binds a secret and lifetime to each token kind.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// TokenCodec issues and verifies HS256 tokens. It holds no mutable state.
type TokenCodec struct {
	access  tokenKey
	refresh tokenKey
	now     func() time.Time
}

type tokenKey struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenCodec builds a codec. now defaults to time.Now when nil.
func NewTokenCodec(cfg TokenConfig, now func() time.Time) (*TokenCodec, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("token secrets must not be empty")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	if now == nil {
		now = time.Now
	}
	return &TokenCodec{
		access:  tokenKey{secret: []byte(cfg.AccessSecret), ttl: cfg.AccessTTL},
		refresh: tokenKey{secret: []byte(cfg.RefreshSecret), ttl: cfg.RefreshTTL},
		now:     now,
	}, nil
}

func (tc *TokenCodec) keyFor(kind domain.TokenKind) (tokenKey, error) {
	switch kind {
	case domain.TokenKindAccess:
		return tc.access, nil
	case domain.TokenKindRefresh:
		return tc.refresh, nil
	default:
		return tokenKey{}, ErrTokenWrongKind
	}
}

// Issue signs a token of the given kind for subject.
func (tc *TokenCodec) Issue(subject TokenSubject, kind domain.TokenKind) (string, time.Time, error) {
	key, err := tc.keyFor(kind)
	if err != nil {
		return "", time.Time{}, err
	}

	issuedAt := tc.now()
	expiresAt := issuedAt.Add(key.ttl)
	claims := &Claims{
		Email: subject.Email,
		Role:  subject.Role,
		Kind:  kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject.ID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(key.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// IssuePair signs an access and a refresh token for subject.
func (tc *TokenCodec) IssuePair(subject TokenSubject) (*domain.TokenPair, error) {
	access, accessExp, err := tc.Issue(subject, domain.TokenKindAccess)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := tc.Issue(subject, domain.TokenKindRefresh)
	if err != nil {
		return nil, err
	}
	return &domain.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Verify validates tokenStr against the secret of expected and returns its claims.
// The kind check runs after the signature check.
func (tc *TokenCodec) Verify(tokenStr string, expected domain.TokenKind) (*Claims, error) {
	key, err := tc.keyFor(expected)
	if err != nil {
		return nil, err
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tc.now),
	)

	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return key.secret, nil
	})
	if err != nil {
		return nil, classifyJWTError(err)
	}
	if !parsed.Valid {
		return nil, ErrTokenMalformed
	}
	if claims.Kind != expected {
		return nil, ErrTokenWrongKind
	}
	if claims.Subject == "" {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

func classifyJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrTokenSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	default:
		return ErrTokenMalformed
	}
}
