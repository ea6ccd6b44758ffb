package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"

	"leadgame/internal/models"
	"leadgame/internal/services"
)

// HTTPHandler holds the services behind the HTTP endpoints.
type HTTPHandler struct {
	submissions *services.SubmissionService
	// botVerifier always talks to the provider; the submission pipeline may
	// be configured to come back through VerifyRecaptcha instead.
	botVerifier services.BotVerifier
	emailCheck  *services.EmailCheckService
	game        *services.GameService
}

// NewHTTPHandler creates a new HTTPHandler.
func NewHTTPHandler(
	submissions *services.SubmissionService,
	botVerifier services.BotVerifier,
	emailCheck *services.EmailCheckService,
	game *services.GameService,
) *HTTPHandler {
	return &HTTPHandler{
		submissions: submissions,
		botVerifier: botVerifier,
		emailCheck:  emailCheck,
		game:        game,
	}
}

// RegisterRoutes registers all the application routes.
func (h *HTTPHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)

	api := router.Group("/api")
	api.POST("/submit-form", h.SubmitForm)
	api.POST("/verify-recaptcha", h.VerifyRecaptcha)
	api.GET("/verify-email", h.VerifyEmail)
	api.GET("/game/deck", h.GetDeck)
	api.POST("/game/score", h.ScoreGame)
}

// Health reports that the process is serving.
func (h *HTTPHandler) Health(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// SubmitForm handles the contact form and game result submission.
func (h *HTTPHandler) SubmitForm(c *gin.Context) {
	var sub models.LeadSubmission
	if err := c.ShouldBindJSON(&sub); err != nil {
		h.submissionError(c, services.MalformedRequest(err))
		return
	}

	resp, err := h.submissions.Submit(c.Request.Context(), &sub)
	if err != nil {
		h.submissionError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *HTTPHandler) submissionError(c *gin.Context, err error) {
	var serr *services.SubmissionError
	if !errors.As(err, &serr) {
		logger.Errorf("Error processing submission: %v", err)
		c.JSON(http.StatusInternalServerError, models.SubmissionResponse{
			Message: "Failed to process submission",
		})
		return
	}

	if serr.Status >= http.StatusInternalServerError {
		logger.Errorf("Submission failed: %v", serr)
	} else {
		logger.Infof("Submission rejected: %v", serr)
	}
	c.JSON(serr.Status, models.SubmissionResponse{
		Message:     serr.Message,
		ReasonCodes: serr.ReasonCodes,
	})
}

// VerifyRecaptcha checks a single bot-verification token with the provider.
func (h *HTTPHandler) VerifyRecaptcha(c *gin.Context) {
	var req models.BotVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.BotVerificationResponse{Message: "Invalid request body"})
		return
	}

	if strings.TrimSpace(req.Token) == "" {
		c.JSON(http.StatusBadRequest, models.BotVerificationResponse{Message: "Token required"})
		return
	}

	result, err := h.botVerifier.Verify(c.Request.Context(), req.Token)
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, models.BotVerificationResponse{Message: "Token required"})
		return
	case err != nil:
		logger.Errorf("Bot verification error: %v", err)
		c.JSON(http.StatusInternalServerError, models.BotVerificationResponse{Message: "Internal server error"})
		return
	}

	if !result.Verified {
		reasons := result.ReasonCodes
		if reasons == nil {
			reasons = []string{}
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"verified":    false,
			"message":     "Bot verification failed",
			"reasonCodes": reasons,
		})
		return
	}
	c.JSON(http.StatusOK, models.BotVerificationResponse{Verified: true})
}

var deliverabilityMessages = map[error]string{
	services.ErrMissingEmail:     "Missing email",
	services.ErrInvalidFormat:    "Invalid email format",
	services.ErrDisposableDomain: "Temporary email addresses are not allowed",
	services.ErrNoMailExchange:   "Email domain does not accept mail",
}

// VerifyEmail runs the deliverability checks on ?email=.
func (h *HTTPHandler) VerifyEmail(c *gin.Context) {
	_, err := h.emailCheck.Check(c.Request.Context(), c.Query("email"))
	if err != nil {
		for target, msg := range deliverabilityMessages {
			if errors.Is(err, target) {
				c.JSON(http.StatusBadRequest, models.DeliverabilityResponse{Error: msg})
				return
			}
		}
		logger.Errorf("Email check error: %v", err)
		c.JSON(http.StatusInternalServerError, models.DeliverabilityResponse{Error: "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, models.DeliverabilityResponse{IsValid: true})
}

// GetDeck returns the categories and a shuffled deck for a new round.
func (h *HTTPHandler) GetDeck(c *gin.Context) {
	c.JSON(http.StatusOK, h.game.Deck())
}

// ScoreGame scores a finished arrangement.
func (h *HTTPHandler) ScoreGame(c *gin.Context) {
	var req models.ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	result, err := h.game.ScorePlacements(req.Placements)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}
