// Package captcha verifies registration CAPTCHA tokens against Google reCAPTCHA.
package captcha

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/publishing-service/internal/config"
	apperrors "github.com/spec-kit/publishing-service/pkg/util"
)

// Verifier checks a CAPTCHA token supplied by a client.
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

type siteVerifyResponse struct {
	Success     bool     `json:"success"`
	ChallengeTS string   `json:"challenge_ts"`
	Hostname    string   `json:"hostname"`
	ErrorCodes  []string `json:"error-codes"`
	Score       float64  `json:"score"`
	Action      string   `json:"action"`
}

// RecaptchaVerifier calls the reCAPTCHA siteverify endpoint.
type RecaptchaVerifier struct {
	secret    string
	verifyURL string
	timeout   time.Duration
	logger    *zap.Logger
}

// NewRecaptchaVerifier builds a verifier. With an empty secret every token is
// accepted, which keeps local development free of a Google dependency.
func NewRecaptchaVerifier(cfg config.RecaptchaConfig, logger *zap.Logger) *RecaptchaVerifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	v := &RecaptchaVerifier{secret: cfg.SecretKey, verifyURL: cfg.VerifyURL, timeout: timeout, logger: logger.Named("recaptcha")}
	if v.secret == "" {
		v.logger.Warn("RECAPTCHA_SECRET_KEY not configured; captcha verification disabled")
	}
	return v
}

// Enabled reports whether a secret key is configured.
func (v *RecaptchaVerifier) Enabled() bool {
	return v.secret != ""
}

// Verify validates token, returning a validation DomainError on rejection.
// The fiber client does not watch ctx, so the request timeout is cut to
// whatever remains before the ctx deadline.
func (v *RecaptchaVerifier) Verify(ctx context.Context, token, remoteIP string) error {
	if !v.Enabled() {
		return nil
	}
	if token == "" {
		return apperrors.NewValidationError("recaptcha token is required", nil)
	}
	timeout, err := v.requestTimeout(ctx)
	if err != nil {
		return err
	}

	args := fiber.AcquireArgs()
	defer fiber.ReleaseArgs(args)
	args.Set("secret", v.secret)
	args.Set("response", token)
	if remoteIP != "" {
		args.Set("remoteip", remoteIP)
	}

	agent := fiber.Post(v.verifyURL).Timeout(timeout).Form(args)

	var resp siteVerifyResponse
	status, _, errs := agent.Struct(&resp)
	if len(errs) > 0 {
		v.logger.Error("recaptcha request failed", zap.Errors("errors", errs))
		return apperrors.NewValidationError("failed to verify recaptcha", nil)
	}
	if status != http.StatusOK {
		v.logger.Error("recaptcha api error", zap.Int("status", status))
		return apperrors.NewValidationError("failed to verify recaptcha", nil)
	}

	if !resp.Success {
		v.logger.Warn("recaptcha verification failed",
			zap.Strings("error_codes", resp.ErrorCodes),
			zap.String("hostname", resp.Hostname),
		)
		return rejection(resp.ErrorCodes)
	}
	return nil
}

func (v *RecaptchaVerifier) requestTimeout(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		return v.timeout, nil
	}
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return 0, context.DeadlineExceeded
	}
	if remaining < v.timeout {
		return remaining, nil
	}
	return v.timeout, nil
}

func rejection(codes []string) error {
	for _, code := range codes {
		switch code {
		case "timeout-or-duplicate":
			return apperrors.NewValidationError("recaptcha token has expired or been used already", nil)
		case "invalid-input-response":
			return apperrors.NewValidationError("invalid recaptcha token", nil)
		}
	}
	return apperrors.NewValidationError("recaptcha verification failed", nil)
}
