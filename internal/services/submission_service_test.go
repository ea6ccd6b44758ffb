package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadgame/internal/config"
	"leadgame/internal/mailer"
	"leadgame/internal/models"
	"leadgame/internal/testutil"
)

func intPtr(n int) *int { return &n }

func validLead() *models.LeadSubmission {
	return &models.LeadSubmission{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
		Company:   "Analytical Engines",
		BotToken:  "token-123",
	}
}

func gameLead() *models.LeadSubmission {
	lead := validLead()
	lead.GameScore = intPtr(67)
	lead.PlacementOrder = []string{"Problem–Solution", "Origin Story", "Value", "Social Proof", "Work Process", "Call to Action"}
	return lead
}

type pipeline struct {
	service  *SubmissionService
	verifier *testutil.FakeBotVerifier
	sender   *testutil.FakeMailSender
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	verifier := &testutil.FakeBotVerifier{ShouldSucceed: true}
	sender := testutil.NewFakeMailSender()
	notifier, err := mailer.NewNotifier(sender, config.MailConfig{
		User:            "hello@alev.example",
		FromName:        "Alev Digital",
		OperatorAddress: "owner@alev.example",
	})
	require.NoError(t, err)
	return &pipeline{
		service:  NewSubmissionService(verifier, notifier, time.Second),
		verifier: verifier,
		sender:   sender,
	}
}

func requireKind(t *testing.T, err error, kind ErrorKind, status int) *SubmissionError {
	t.Helper()
	var serr *SubmissionError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, kind, serr.Kind)
	assert.Equal(t, status, serr.Status)
	return serr
}

func TestSubmissionService_Submit(t *testing.T) {
	ctx := context.Background()

	t.Run("plain contact fill is accepted without mail", func(t *testing.T) {
		p := newPipeline(t)
		resp, err := p.service.Submit(ctx, validLead())
		require.NoError(t, err)
		p.service.Wait()

		assert.True(t, resp.Accepted)
		assert.Equal(t, "Thank you Ada! We'll contact you at ada@example.com soon.", resp.Message)
		assert.Empty(t, p.sender.Messages())
		assert.Equal(t, 0, p.sender.Verifies)
	})

	t.Run("game round sends both emails", func(t *testing.T) {
		p := newPipeline(t)
		resp, err := p.service.Submit(ctx, gameLead())
		require.NoError(t, err)
		p.service.Wait()

		assert.True(t, resp.Accepted)
		assert.Len(t, p.sender.Messages(), 2)
		require.NotNil(t, p.sender.SentTo("owner@alev.example"))
		assert.Contains(t, p.sender.SentTo("owner@alev.example").HTML, "<li>Problem–Solution</li>")
	})

	t.Run("score of zero still counts as a game round", func(t *testing.T) {
		p := newPipeline(t)
		lead := validLead()
		lead.GameScore = intPtr(0)
		_, err := p.service.Submit(ctx, lead)
		require.NoError(t, err)
		p.service.Wait()
		assert.Len(t, p.sender.Messages(), 2)
	})

	t.Run("send failure still accepts", func(t *testing.T) {
		p := newPipeline(t)
		p.sender.SendErr = errors.New("smtp down")
		p.sender.VerifyErr = errors.New("smtp down")

		resp, err := p.service.Submit(ctx, gameLead())
		require.NoError(t, err)
		p.service.Wait()
		assert.True(t, resp.Accepted)
		assert.Equal(t, 1, p.sender.Verifies)
		assert.Equal(t, 2, p.sender.Attempts())
		assert.Empty(t, p.sender.Messages())
	})

	t.Run("no mail configured still accepts", func(t *testing.T) {
		service := NewSubmissionService(&testutil.FakeBotVerifier{ShouldSucceed: true}, nil, time.Second)
		resp, err := service.Submit(ctx, gameLead())
		require.NoError(t, err)
		service.Wait()
		assert.True(t, resp.Accepted)
	})

	t.Run("missing token", func(t *testing.T) {
		p := newPipeline(t)
		lead := validLead()
		lead.BotToken = "  "
		_, err := p.service.Submit(ctx, lead)
		requireKind(t, err, KindMissingToken, http.StatusBadRequest)
		assert.Equal(t, 0, p.verifier.Calls())
	})

	t.Run("verification unavailable", func(t *testing.T) {
		p := newPipeline(t)
		p.verifier.Err = fmt.Errorf("%w: timeout", ErrUpstreamUnavailable)
		_, err := p.service.Submit(ctx, gameLead())
		requireKind(t, err, KindVerificationUnavailable, http.StatusInternalServerError)
		assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	})

	t.Run("verification failed sends no mail", func(t *testing.T) {
		p := newPipeline(t)
		p.verifier.ShouldSucceed = false
		p.verifier.ReasonCodes = []string{"invalid-input-response"}

		_, err := p.service.Submit(ctx, gameLead())
		serr := requireKind(t, err, KindVerificationFailed, http.StatusBadRequest)
		p.service.Wait()
		assert.Equal(t, []string{"invalid-input-response"}, serr.ReasonCodes)
		assert.Empty(t, p.sender.Messages())
	})

	t.Run("verification runs before field checks", func(t *testing.T) {
		p := newPipeline(t)
		p.verifier.ShouldSucceed = false
		lead := validLead()
		lead.FirstName = ""
		_, err := p.service.Submit(ctx, lead)
		requireKind(t, err, KindVerificationFailed, http.StatusBadRequest)
	})

	t.Run("missing fields send no mail", func(t *testing.T) {
		blank := map[string]func(*models.LeadSubmission){
			"firstName": func(l *models.LeadSubmission) { l.FirstName = "" },
			"lastName":  func(l *models.LeadSubmission) { l.LastName = " " },
			"email":     func(l *models.LeadSubmission) { l.Email = "" },
			"company":   func(l *models.LeadSubmission) { l.Company = "\t" },
		}
		for name, blankField := range blank {
			t.Run(name, func(t *testing.T) {
				p := newPipeline(t)
				lead := gameLead()
				blankField(lead)
				_, err := p.service.Submit(ctx, lead)
				serr := requireKind(t, err, KindMissingFields, http.StatusBadRequest)
				p.service.Wait()
				assert.Equal(t, "All fields are required", serr.Message)
				assert.Empty(t, p.sender.Messages())
			})
		}
	})

	t.Run("invalid email format", func(t *testing.T) {
		for _, email := range []string{"foo", "foo@", "@bar.com", "foo@bar", "a b@c.com"} {
			p := newPipeline(t)
			lead := gameLead()
			lead.Email = email
			_, err := p.service.Submit(ctx, lead)
			requireKind(t, err, KindInvalidEmailFormat, http.StatusBadRequest)
			p.service.Wait()
			assert.Empty(t, p.sender.Messages(), email)
		}
	})

	t.Run("invalid game round", func(t *testing.T) {
		cases := map[string]func(*models.LeadSubmission){
			"score above range":   func(l *models.LeadSubmission) { l.GameScore = intPtr(101) },
			"negative score":      func(l *models.LeadSubmission) { l.GameScore = intPtr(-1) },
			"short order":         func(l *models.LeadSubmission) { l.PlacementOrder = l.PlacementOrder[:5] },
			"unknown label":       func(l *models.LeadSubmission) { l.PlacementOrder[2] = "Memes" },
			"order without score": func(l *models.LeadSubmission) { l.GameScore = nil },
		}
		for name, mutate := range cases {
			t.Run(name, func(t *testing.T) {
				p := newPipeline(t)
				lead := gameLead()
				mutate(lead)
				_, err := p.service.Submit(ctx, lead)
				requireKind(t, err, KindInvalidGameRound, http.StatusBadRequest)
				p.service.Wait()
				assert.Empty(t, p.sender.Messages())
			})
		}
	})

	t.Run("each call verifies its own token", func(t *testing.T) {
		p := newPipeline(t)
		_, err := p.service.Submit(ctx, validLead())
		require.NoError(t, err)
		_, err = p.service.Submit(ctx, validLead())
		require.NoError(t, err)
		assert.Equal(t, []string{"token-123", "token-123"}, p.verifier.Tokens)
	})
}

// blockingNotifier holds NotifyGameCompletion until released.
type blockingNotifier struct {
	release chan struct{}
	done    chan struct{}
}

func (b *blockingNotifier) NotifyGameCompletion(ctx context.Context, lead *models.LeadSubmission) error {
	<-b.release
	close(b.done)
	return nil
}

func TestNewValidator(t *testing.T) {
	var validate interface{ Struct(any) error }
	require.NotPanics(t, func() { validate = newValidator() })

	lead := gameLead()
	lead.PlacementOrder[0] = "Memes"
	assert.Error(t, validate.Struct(lead))
	assert.NoError(t, validate.Struct(gameLead()))
}

func TestSubmissionService_DispatchDoesNotBlockResponse(t *testing.T) {
	notifier := &blockingNotifier{release: make(chan struct{}), done: make(chan struct{})}
	service := NewSubmissionService(&testutil.FakeBotVerifier{ShouldSucceed: true}, notifier, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	resp, err := service.Submit(ctx, gameLead())
	require.NoError(t, err)
	assert.True(t, resp.Accepted)
	cancel()

	select {
	case <-notifier.done:
		t.Fatal("notification finished before it was released")
	default:
	}

	close(notifier.release)
	service.Wait()
	<-notifier.done
}
