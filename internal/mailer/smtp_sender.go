package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"time"

	"leadgame/internal/config"
)

// SMTPSender is the production Sender. Each call opens its own connection.
type SMTPSender struct {
	addr        string
	host        string
	username    string
	password    string
	implicitTLS bool
	tlsConfig   *tls.Config
	timeout     time.Duration
	now         func() time.Time
}

// NewSMTPSender creates a sender from the mail settings. Host is required.
func NewSMTPSender(cfg config.MailConfig, timeout time.Duration) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, errors.New("SMTP host is required")
	}
	return &SMTPSender{
		addr:        cfg.Addr(),
		host:        cfg.Host,
		username:    cfg.User,
		password:    cfg.Password,
		implicitTLS: cfg.Secure,
		tlsConfig: &tls.Config{
			ServerName:         cfg.Host,
			InsecureSkipVerify: cfg.TLSInsecure,
		},
		timeout: timeout,
		now:     time.Now,
	}, nil
}

// dial connects, upgrades to TLS when the server offers it and authenticates.
// The whole session shares one deadline.
func (s *SMTPSender) dial(ctx context.Context) (*smtp.Client, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	dialer := &net.Dialer{}
	var (
		conn net.Conn
		err  error
	)
	if s.implicitTLS {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: s.tlsConfig}).DialContext(ctx, "tcp", s.addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", s.addr)
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", s.addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, s.host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("smtp handshake: %w", err)
	}
	if err := c.Hello("localhost"); err != nil {
		c.Close()
		return nil, fmt.Errorf("smtp hello: %w", err)
	}
	if !s.implicitTLS {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(s.tlsConfig); err != nil {
				c.Close()
				return nil, fmt.Errorf("smtp starttls: %w", err)
			}
		}
	}
	if s.username != "" {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(smtp.PlainAuth("", s.username, s.password, s.host)); err != nil {
				c.Close()
				return nil, fmt.Errorf("smtp auth: %w", err)
			}
		}
	}
	return c, nil
}

// Verify implements Sender.
func (s *SMTPSender) Verify(ctx context.Context) error {
	c, err := s.dial(ctx)
	if err != nil {
		return err
	}
	defer c.Close()
	if err := c.Noop(); err != nil {
		return fmt.Errorf("smtp noop: %w", err)
	}
	return c.Quit()
}

// Send implements Sender.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	body, err := msg.Bytes(s.now())
	if err != nil {
		return err
	}

	c, err := s.dial(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Mail(msg.From.Address); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	for _, rcpt := range msg.To {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", rcpt, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data close: %w", err)
	}
	return c.Quit()
}
