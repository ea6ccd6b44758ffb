package testutil

import (
	"context"
	"sync"

	"leadgame/internal/mailer"
)

// FakeMailSender captures messages in memory for tests.
type FakeMailSender struct {
	mu        sync.Mutex
	Sent      []mailer.Message
	Verifies  int
	VerifyErr error
	// SendErr fails every Send when set; the message is not recorded.
	SendErr  error
	attempts int
}

func NewFakeMailSender() *FakeMailSender {
	return &FakeMailSender{Sent: make([]mailer.Message, 0)}
}

func (f *FakeMailSender) Verify(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Verifies++
	return f.VerifyErr
}

func (f *FakeMailSender) Send(ctx context.Context, msg mailer.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.SendErr != nil {
		return f.SendErr
	}
	f.Sent = append(f.Sent, msg)
	return nil
}

// Attempts counts Send calls, failed ones included.
func (f *FakeMailSender) Attempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

// Messages returns a copy of everything sent so far.
func (f *FakeMailSender) Messages() []mailer.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]mailer.Message(nil), f.Sent...)
}

// SentTo returns the first message addressed to rcpt, or nil.
func (f *FakeMailSender) SentTo(rcpt string) *mailer.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.Sent {
		for _, to := range f.Sent[i].To {
			if to == rcpt {
				return &f.Sent[i]
			}
		}
	}
	return nil
}
