package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProvider(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "test-secret", r.PostForm.Get("secret"))
		assert.NotEmpty(t, r.PostForm.Get("response"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRecaptchaVerifier(t *testing.T) {
	ctx := context.Background()

	t.Run("requires secret", func(t *testing.T) {
		_, err := NewRecaptchaVerifier("", "http://example.invalid", time.Second)
		assert.Error(t, err)
	})

	t.Run("empty token", func(t *testing.T) {
		v, err := NewRecaptchaVerifier("test-secret", "http://example.invalid", time.Second)
		require.NoError(t, err)
		_, err = v.Verify(ctx, "  ")
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("accepted token", func(t *testing.T) {
		srv := newProvider(t, http.StatusOK, `{"success":true}`)
		v, err := NewRecaptchaVerifier("test-secret", srv.URL, time.Second)
		require.NoError(t, err)

		result, err := v.Verify(ctx, "good-token")
		require.NoError(t, err)
		assert.True(t, result.Verified)
		assert.Empty(t, result.ReasonCodes)
	})

	t.Run("rejected token carries reason codes", func(t *testing.T) {
		srv := newProvider(t, http.StatusOK, `{"success":false,"error-codes":["timeout-or-duplicate"]}`)
		v, err := NewRecaptchaVerifier("test-secret", srv.URL, time.Second)
		require.NoError(t, err)

		result, err := v.Verify(ctx, "used-token")
		require.NoError(t, err)
		assert.False(t, result.Verified)
		assert.Equal(t, []string{"timeout-or-duplicate"}, result.ReasonCodes)
	})

	t.Run("server error is upstream unavailable", func(t *testing.T) {
		srv := newProvider(t, http.StatusServiceUnavailable, `oops`)
		v, err := NewRecaptchaVerifier("test-secret", srv.URL, time.Second)
		require.NoError(t, err)

		_, err = v.Verify(ctx, "token")
		assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	})

	t.Run("unreachable provider is upstream unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		v, err := NewRecaptchaVerifier("test-secret", url, time.Second)
		require.NoError(t, err)
		_, err = v.Verify(ctx, "token")
		assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	})

	t.Run("slow provider times out", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-time.After(time.Second):
			case <-r.Context().Done():
			}
		}))
		t.Cleanup(srv.Close)

		v, err := NewRecaptchaVerifier("test-secret", srv.URL, 50*time.Millisecond)
		require.NoError(t, err)
		_, err = v.Verify(ctx, "token")
		assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	})
}

func TestServiceVerifier(t *testing.T) {
	ctx := context.Background()

	serve := func(status int, body string) *httptest.Server {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/verify-recaptcha", r.URL.Path)
			w.WriteHeader(status)
			_, _ = w.Write([]byte(body))
		}))
		t.Cleanup(srv.Close)
		return srv
	}

	t.Run("verified", func(t *testing.T) {
		srv := serve(http.StatusOK, `{"verified":true}`)
		result, err := NewServiceVerifier(srv.URL+"/", time.Second).Verify(ctx, "token")
		require.NoError(t, err)
		assert.True(t, result.Verified)
	})

	t.Run("rejected", func(t *testing.T) {
		srv := serve(http.StatusBadRequest, `{"verified":false,"message":"Bot verification failed","reasonCodes":["invalid-input-response"]}`)
		result, err := NewServiceVerifier(srv.URL, time.Second).Verify(ctx, "token")
		require.NoError(t, err)
		assert.False(t, result.Verified)
		assert.Equal(t, []string{"invalid-input-response"}, result.ReasonCodes)
	})

	t.Run("endpoint failure", func(t *testing.T) {
		srv := serve(http.StatusInternalServerError, `{"verified":false}`)
		_, err := NewServiceVerifier(srv.URL, time.Second).Verify(ctx, "token")
		assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	})

	t.Run("empty token", func(t *testing.T) {
		_, err := NewServiceVerifier("http://example.invalid", time.Second).Verify(ctx, "")
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}
