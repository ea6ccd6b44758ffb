package mailer

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"mime/quotedprintable"
	"net/mail"
	"strings"
	"time"
)

// Message is a single HTML email.
type Message struct {
	From    mail.Address
	To      []string
	ReplyTo string
	Subject string
	HTML    string
}

// Sender delivers messages through an outbound transport.
type Sender interface {
	// Verify checks that the transport is reachable and accepts our credentials.
	Verify(ctx context.Context) error
	Send(ctx context.Context, msg Message) error
}

// Bytes renders the message as RFC 5322 text with a quoted-printable HTML body.
func (m Message) Bytes(date time.Time) ([]byte, error) {
	if len(m.To) == 0 {
		return nil, fmt.Errorf("message has no recipients")
	}

	var buf bytes.Buffer
	header := func(k, v string) {
		fmt.Fprintf(&buf, "%s: %s\r\n", k, v)
	}
	header("From", m.From.String())
	header("To", strings.Join(m.To, ", "))
	if m.ReplyTo != "" {
		header("Reply-To", m.ReplyTo)
	}
	header("Subject", mime.QEncoding.Encode("utf-8", m.Subject))
	header("Date", date.Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", `text/html; charset="UTF-8"`)
	header("Content-Transfer-Encoding", "quoted-printable")
	buf.WriteString("\r\n")

	qp := quotedprintable.NewWriter(&buf)
	if _, err := qp.Write([]byte(m.HTML)); err != nil {
		return nil, err
	}
	if err := qp.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
