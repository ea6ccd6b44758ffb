package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/logger"

	"leadgame/internal/models"
)

var (
	// ErrInvalidInput is returned when the token is empty.
	ErrInvalidInput = errors.New("bot verification token required")
	// ErrUpstreamUnavailable is returned when the provider cannot give a verdict.
	ErrUpstreamUnavailable = errors.New("bot verification provider unavailable")
)

// BotVerifier checks an opaque client token with an anti-bot provider.
// A negative verdict is not an error; errors mean no verdict was obtained.
type BotVerifier interface {
	Verify(ctx context.Context, token string) (*models.BotVerificationResult, error)
}

// RecaptchaVerifier talks to the reCAPTCHA siteverify API. Every call is a
// single attempt and nothing is cached.
type RecaptchaVerifier struct {
	secretKey  string
	verifyURL  string
	httpClient *http.Client
}

// NewRecaptchaVerifier creates a verifier that posts to verifyURL.
func NewRecaptchaVerifier(secretKey, verifyURL string, timeout time.Duration) (*RecaptchaVerifier, error) {
	if secretKey == "" {
		return nil, errors.New("recaptcha secret key cannot be empty")
	}
	if verifyURL == "" {
		return nil, errors.New("recaptcha verify url cannot be empty")
	}
	return &RecaptchaVerifier{
		secretKey:  secretKey,
		verifyURL:  verifyURL,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type siteverifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

// Verify implements BotVerifier.
func (v *RecaptchaVerifier) Verify(ctx context.Context, token string) (*models.BotVerificationResult, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrInvalidInput
	}

	form := url.Values{
		"secret":   {v.secretKey},
		"response": {token},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create recaptcha request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		logger.Errorf("recaptcha provider returned status %d", resp.StatusCode)
		return nil, fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}

	var body siteverifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		logger.Errorf("recaptcha provider returned status %d with undecodable body: %v", resp.StatusCode, err)
		return nil, fmt.Errorf("%w: decode response: %v", ErrUpstreamUnavailable, err)
	}

	logger.V(1).Infof("recaptcha verdict: success=%t codes=%v", body.Success, body.ErrorCodes)
	result := &models.BotVerificationResult{Verified: body.Success}
	if !body.Success {
		result.ReasonCodes = body.ErrorCodes
		if result.ReasonCodes == nil {
			result.ReasonCodes = []string{}
		}
	}
	return result, nil
}

// ServiceVerifier verifies tokens by calling this server's own
// bot-verification endpoint, for deployments that split the two handlers.
type ServiceVerifier struct {
	endpoint   string
	httpClient *http.Client
}

// NewServiceVerifier creates a verifier that posts to baseURL + /api/verify-recaptcha.
func NewServiceVerifier(baseURL string, timeout time.Duration) *ServiceVerifier {
	return &ServiceVerifier{
		endpoint:   strings.TrimRight(baseURL, "/") + "/api/verify-recaptcha",
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Verify implements BotVerifier.
func (v *ServiceVerifier) Verify(ctx context.Context, token string) (*models.BotVerificationResult, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrInvalidInput
	}

	payload, err := json.Marshal(models.BotVerificationRequest{Token: token})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create verification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		logger.Errorf("verification endpoint error: %s", resp.Status)
		return nil, fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}

	var body models.BotVerificationResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUpstreamUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK && body.Verified {
		return nil, fmt.Errorf("%w: inconsistent response status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}
	return &models.BotVerificationResult{Verified: body.Verified, ReasonCodes: body.ReasonCodes}, nil
}
