package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/logger"

	"leadgame/internal/models"
)

// ErrorKind classifies why a submission was refused.
type ErrorKind string

const (
	KindMalformedRequest        ErrorKind = "MalformedRequest"
	KindMissingToken            ErrorKind = "MissingToken"
	KindVerificationUnavailable ErrorKind = "VerificationUnavailable"
	KindVerificationFailed      ErrorKind = "VerificationFailed"
	KindMissingFields           ErrorKind = "MissingFields"
	KindInvalidEmailFormat      ErrorKind = "InvalidEmailFormat"
	KindInvalidGameRound        ErrorKind = "InvalidGameRound"
)

// SubmissionError is returned by Submit. Message is safe to show the client.
type SubmissionError struct {
	Kind        ErrorKind
	Status      int
	Message     string
	ReasonCodes []string
	Err         error
}

func (e *SubmissionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// MalformedRequest builds the error for a body that could not be parsed.
func MalformedRequest(err error) *SubmissionError {
	return &SubmissionError{
		Kind:    KindMalformedRequest,
		Status:  http.StatusBadRequest,
		Message: "Invalid request body",
		Err:     err,
	}
}

// Two-part address with a dot in the domain.
var submissionEmailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Notifier sends the game-completion emails.
type Notifier interface {
	NotifyGameCompletion(ctx context.Context, lead *models.LeadSubmission) error
}

// SubmissionService runs the lead submission pipeline.
type SubmissionService struct {
	verifier BotVerifier
	// notifier is nil when mail is not configured.
	notifier        Notifier
	validate        *validator.Validate
	dispatchTimeout time.Duration
	wg              sync.WaitGroup
}

// NewSubmissionService creates the pipeline. A nil notifier disables mail.
func NewSubmissionService(verifier BotVerifier, notifier Notifier, dispatchTimeout time.Duration) *SubmissionService {
	return &SubmissionService{
		verifier:        verifier,
		notifier:        notifier,
		validate:        newValidator(),
		dispatchTimeout: dispatchTimeout,
	}
}

func newValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := validate.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return IsCategory(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("failed to register category validation: %v", err))
	}
	return validate
}

// Submit validates a lead and, for a finished game round, starts the
// notification emails in the background. Mail problems never fail the call.
func (s *SubmissionService) Submit(ctx context.Context, sub *models.LeadSubmission) (*models.SubmissionResponse, error) {
	normalize(sub)

	if sub.BotToken == "" {
		return nil, &SubmissionError{
			Kind:    KindMissingToken,
			Status:  http.StatusBadRequest,
			Message: "Bot verification token missing",
		}
	}

	verdict, err := s.verifier.Verify(ctx, sub.BotToken)
	if err != nil {
		logger.Errorf("Bot verification error: %v", err)
		return nil, &SubmissionError{
			Kind:    KindVerificationUnavailable,
			Status:  http.StatusInternalServerError,
			Message: "Error contacting bot verification service",
			Err:     err,
		}
	}
	if !verdict.Verified {
		return nil, &SubmissionError{
			Kind:        KindVerificationFailed,
			Status:      http.StatusBadRequest,
			Message:     "Bot verification failed",
			ReasonCodes: verdict.ReasonCodes,
		}
	}

	logger.Infof("Form submission received: name=%q email=%q date=%s game=%t",
		sub.FullName(), sub.Email, time.Now().UTC().Format(time.RFC3339), sub.IsGameRound())

	if err := s.validateFields(sub); err != nil {
		return nil, err
	}

	if sub.IsGameRound() {
		s.dispatch(ctx, sub)
	}

	return &models.SubmissionResponse{
		Accepted: true,
		Message:  fmt.Sprintf("Thank you %s! We'll contact you at %s soon.", sub.FirstName, sub.Email),
	}, nil
}

func normalize(sub *models.LeadSubmission) {
	sub.FirstName = strings.TrimSpace(sub.FirstName)
	sub.LastName = strings.TrimSpace(sub.LastName)
	sub.Email = strings.TrimSpace(sub.Email)
	sub.Company = strings.TrimSpace(sub.Company)
	sub.BotToken = strings.TrimSpace(sub.BotToken)
}

// validateFields checks required fields, then the email shape, then the game
// round, so the client always hears about the earliest problem.
func (s *SubmissionService) validateFields(sub *models.LeadSubmission) error {
	var gameErrs []string

	if err := s.validate.Struct(sub); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return MalformedRequest(err)
		}
		for _, fe := range verrs {
			if fe.Tag() == "required" {
				return &SubmissionError{
					Kind:    KindMissingFields,
					Status:  http.StatusBadRequest,
					Message: "All fields are required",
				}
			}
			gameErrs = append(gameErrs, fe.Field())
		}
	}

	if !submissionEmailPattern.MatchString(sub.Email) {
		return &SubmissionError{
			Kind:    KindInvalidEmailFormat,
			Status:  http.StatusBadRequest,
			Message: "Invalid email format",
		}
	}

	if len(sub.PlacementOrder) > 0 && !sub.IsGameRound() {
		gameErrs = append(gameErrs, "placementOrder")
	}
	if len(gameErrs) > 0 {
		return &SubmissionError{
			Kind:    KindInvalidGameRound,
			Status:  http.StatusBadRequest,
			Message: "Invalid game result",
			Err:     fmt.Errorf("invalid fields: %s", strings.Join(gameErrs, ", ")),
		}
	}
	return nil
}

// dispatch sends the notifications without holding up the response. The
// request context is detached so a client disconnect does not cancel mail.
func (s *SubmissionService) dispatch(ctx context.Context, sub *models.LeadSubmission) {
	if s.notifier == nil {
		logger.Warning("SMTP credentials missing; skipping email sending.")
		return
	}

	lead := *sub
	lead.PlacementOrder = append([]string(nil), sub.PlacementOrder...)
	ctx = context.WithoutCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("Panic while sending emails: %v", r)
			}
		}()

		if s.dispatchTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.dispatchTimeout)
			defer cancel()
		}
		if err := s.notifier.NotifyGameCompletion(ctx, &lead); err != nil {
			logger.Errorf("Error sending emails: %v", err)
		}
	}()
}

// Wait blocks until every in-flight notification has finished.
func (s *SubmissionService) Wait() {
	s.wg.Wait()
}
