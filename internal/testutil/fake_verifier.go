package testutil

import (
	"context"
	"fmt"
	"sync"

	"leadgame/internal/models"
)

// FakeBotVerifier is a test-only bot verifier.
type FakeBotVerifier struct {
	mu sync.Mutex
	// ShouldSucceed controls the verdict.
	ShouldSucceed bool
	ReasonCodes   []string
	Tokens        []string
	// Err is returned instead of a verdict when set.
	Err error
}

func (f *FakeBotVerifier) Verify(ctx context.Context, token string) (*models.BotVerificationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Tokens = append(f.Tokens, token)

	if token == "" {
		return nil, fmt.Errorf("empty token")
	}
	if f.Err != nil {
		return nil, f.Err
	}
	if f.ShouldSucceed {
		return &models.BotVerificationResult{Verified: true}, nil
	}
	return &models.BotVerificationResult{Verified: false, ReasonCodes: f.ReasonCodes}, nil
}

// Calls returns how many times Verify was called.
func (f *FakeBotVerifier) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Tokens)
}
