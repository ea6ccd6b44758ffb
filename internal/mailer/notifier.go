package mailer

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/mail"
	"time"

	"github.com/google/logger"
	"golang.org/x/sync/errgroup"

	"leadgame/internal/config"
	"leadgame/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Notifier builds and sends the two game-completion emails.
type Notifier struct {
	sender   Sender
	from     mail.Address
	operator string
	orgName  string
	siteURL  string
	now      func() time.Time
}

// NewNotifier creates a Notifier sending through sender. The SMTP user is the
// envelope sender for both messages.
func NewNotifier(sender Sender, cfg config.MailConfig) (*Notifier, error) {
	if sender == nil {
		return nil, errors.New("mail sender is required")
	}
	if cfg.User == "" {
		return nil, errors.New("SMTP user is required as the sender address")
	}
	return &Notifier{
		sender:   sender,
		from:     mail.Address{Name: cfg.FromName, Address: cfg.User},
		operator: cfg.Operator(),
		orgName:  cfg.FromName,
		siteURL:  cfg.SiteURL,
		now:      time.Now,
	}, nil
}

type acknowledgementData struct {
	FullName string
	OrgName  string
	SiteURL  string
}

type leadNotificationData struct {
	FullName       string
	Email          string
	Company        string
	GameScore      int
	SubmittedAt    string
	PlacementOrder []string
}

func render(name string, data any) (string, error) {
	buf := new(bytes.Buffer)
	if err := templates.ExecuteTemplate(buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

// Acknowledgement builds the thank-you email sent to the lead.
func (n *Notifier) Acknowledgement(lead *models.LeadSubmission) (Message, error) {
	body, err := render("acknowledgement.html", acknowledgementData{
		FullName: lead.FullName(),
		OrgName:  n.orgName,
		SiteURL:  n.siteURL,
	})
	if err != nil {
		return Message{}, err
	}
	return Message{
		From:    n.from,
		To:      []string{lead.Email},
		Subject: fmt.Sprintf("Thank you for playing the %s Social Media Challenge", n.orgName),
		HTML:    body,
	}, nil
}

// LeadNotification builds the email telling the operator about a new lead.
// Replies go straight to the lead.
func (n *Notifier) LeadNotification(lead *models.LeadSubmission, submittedAt time.Time) (Message, error) {
	data := leadNotificationData{
		FullName:       lead.FullName(),
		Email:          lead.Email,
		Company:        lead.Company,
		SubmittedAt:    submittedAt.Format(time.RFC1123),
		PlacementOrder: lead.PlacementOrder,
	}
	if lead.GameScore != nil {
		data.GameScore = *lead.GameScore
	}
	body, err := render("lead_notification.html", data)
	if err != nil {
		return Message{}, err
	}
	return Message{
		From:    n.from,
		To:      []string{n.operator},
		ReplyTo: lead.Email,
		Subject: fmt.Sprintf("New Social Media Challenge Submission - %s", lead.FullName()),
		HTML:    body,
	}, nil
}

// NotifyGameCompletion sends the acknowledgement and the lead notification.
// A failed transport check is only logged; the sends are still attempted.
// Each send is independent, so one failing does not stop the other. The
// returned error joins every failure.
func (n *Notifier) NotifyGameCompletion(ctx context.Context, lead *models.LeadSubmission) error {
	if err := n.sender.Verify(ctx); err != nil {
		logger.Errorf("SMTP verify failed: %v", err)
	} else {
		logger.V(1).Info("SMTP verified: ready to send")
	}

	ack, err := n.Acknowledgement(lead)
	if err != nil {
		return err
	}
	notice, err := n.LeadNotification(lead, n.now())
	if err != nil {
		return err
	}

	var (
		g         errgroup.Group
		ackErr    error
		noticeErr error
	)
	g.Go(func() error {
		if ackErr = n.sender.Send(ctx, ack); ackErr != nil {
			logger.Errorf("Error sending acknowledgement to %s: %v", lead.Email, ackErr)
		}
		return nil
	})
	g.Go(func() error {
		if noticeErr = n.sender.Send(ctx, notice); noticeErr != nil {
			logger.Errorf("Error sending lead notification to %s: %v", n.operator, noticeErr)
		}
		return nil
	})
	_ = g.Wait()

	if err := errors.Join(ackErr, noticeErr); err != nil {
		return err
	}
	logger.Infof("Game completion emails sent for %s", lead.Email)
	return nil
}
