package models

import "encoding/json"

// LeadSubmission is the payload posted by the contact form, optionally
// carrying the result of a completed game round.
type LeadSubmission struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"required"`
	Company   string `json:"company" validate:"required"`
	BotToken  string `json:"botToken"`
	// GameScore is only present when the lead finished a game round.
	GameScore      *int     `json:"gameScore,omitempty" validate:"omitempty,min=0,max=100"`
	PlacementOrder []string `json:"placementOrder,omitempty" validate:"omitempty,len=6,dive,category"`
}

// UnmarshalJSON accepts the current field names as well as the
// recaptchaToken/score/correctOrder names sent by older clients.
func (s *LeadSubmission) UnmarshalJSON(data []byte) error {
	type plain LeadSubmission
	var aux struct {
		plain
		legacySubmission
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*s = LeadSubmission(aux.plain)
	if s.BotToken == "" {
		s.BotToken = aux.RecaptchaToken
	}
	if s.GameScore == nil {
		s.GameScore = aux.Score
	}
	if s.PlacementOrder == nil {
		s.PlacementOrder = aux.CorrectOrder
	}
	return nil
}

// legacySubmission carries the field names older clients still send.
type legacySubmission struct {
	RecaptchaToken string   `json:"recaptchaToken"`
	Score          *int     `json:"score"`
	CorrectOrder   []string `json:"correctOrder"`
}

// IsGameRound reports whether the submission carries a finished game round.
func (s *LeadSubmission) IsGameRound() bool {
	return s.GameScore != nil
}

// FullName joins first and last name.
func (s *LeadSubmission) FullName() string {
	switch {
	case s.FirstName == "":
		return s.LastName
	case s.LastName == "":
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}

// SubmissionResponse is the JSON envelope returned by the submit endpoint.
type SubmissionResponse struct {
	Accepted    bool     `json:"accepted"`
	Message     string   `json:"message"`
	ReasonCodes []string `json:"reasonCodes,omitempty"`
}

// BotVerificationRequest is the body of the bot-verification endpoint.
type BotVerificationRequest struct {
	Token string `json:"token"`
}

// BotVerificationResult is the verdict for a single token.
type BotVerificationResult struct {
	Verified    bool     `json:"verified"`
	ReasonCodes []string `json:"reasonCodes,omitempty"`
}

// BotVerificationResponse is the JSON envelope of the bot-verification endpoint.
type BotVerificationResponse struct {
	Verified    bool     `json:"verified"`
	Message     string   `json:"message,omitempty"`
	ReasonCodes []string `json:"reasonCodes,omitempty"`
}

// DeliverabilityResult is the outcome of an email-deliverability check.
type DeliverabilityResult struct {
	Deliverable bool   `json:"deliverable"`
	Reason      string `json:"reason,omitempty"`
}

// DeliverabilityResponse is the JSON envelope of the email-check endpoint.
type DeliverabilityResponse struct {
	IsValid bool   `json:"is_valid"`
	Error   string `json:"error,omitempty"`
}
