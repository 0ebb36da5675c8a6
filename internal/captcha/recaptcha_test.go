package captcha

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/publishing-service/internal/config"
	apperrors "github.com/spec-kit/publishing-service/pkg/util"
)

func newSiteVerifyServer(t *testing.T, status int, body siteVerifyResponse) (*httptest.Server, *url.Values) {
	t.Helper()
	captured := &url.Values{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err == nil {
			*captured = r.PostForm
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func newVerifier(url string) *RecaptchaVerifier {
	return NewRecaptchaVerifier(config.RecaptchaConfig{SecretKey: "s3cret", VerifyURL: url, Timeout: 2 * time.Second}, nil)
}

func TestVerify_DisabledWithoutSecret(t *testing.T) {
	v := NewRecaptchaVerifier(config.RecaptchaConfig{}, nil)
	assert.False(t, v.Enabled())
	assert.NoError(t, v.Verify(context.Background(), "", ""))
}

func TestVerify_MissingToken(t *testing.T) {
	v := newVerifier("http://127.0.0.1:1")
	err := v.Verify(context.Background(), "", "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestVerify_Success(t *testing.T) {
	srv, captured := newSiteVerifyServer(t, http.StatusOK, siteVerifyResponse{Success: true, Hostname: "localhost"})
	v := newVerifier(srv.URL)

	require.NoError(t, v.Verify(context.Background(), "tok", "10.0.0.1"))
	assert.Equal(t, "s3cret", captured.Get("secret"))
	assert.Equal(t, "tok", captured.Get("response"))
	assert.Equal(t, "10.0.0.1", captured.Get("remoteip"))
}

func TestVerify_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		codes   []string
		message string
	}{
		{"duplicate", []string{"timeout-or-duplicate"}, "recaptcha token has expired or been used already"},
		{"invalid", []string{"invalid-input-response"}, "invalid recaptcha token"},
		{"other", []string{"bad-request"}, "recaptcha verification failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newSiteVerifyServer(t, http.StatusOK, siteVerifyResponse{Success: false, ErrorCodes: tt.codes})
			err := newVerifier(srv.URL).Verify(context.Background(), "tok", "")
			de := apperrors.ToDomainError(err)
			require.NotNil(t, de)
			assert.Equal(t, apperrors.CodeValidation, de.Code)
			assert.Equal(t, tt.message, de.Message)
		})
	}
}

func TestVerify_UpstreamError(t *testing.T) {
	srv, _ := newSiteVerifyServer(t, http.StatusBadGateway, siteVerifyResponse{})
	err := newVerifier(srv.URL).Verify(context.Background(), "tok", "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestVerify_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := newVerifier("http://127.0.0.1:1").Verify(ctx, "tok", "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRequestTimeout_BoundedByDeadline(t *testing.T) {
	v := newVerifier("http://127.0.0.1:1")

	got, err := v.requestTimeout(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, got)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	got, err = v.requestTimeout(ctx)
	require.NoError(t, err)
	assert.LessOrEqual(t, got, 200*time.Millisecond)
	assert.Greater(t, got, time.Duration(0))
}

func TestVerify_StopsAtContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(3 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := newVerifier(srv.URL).Verify(ctx, "tok", "")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}
