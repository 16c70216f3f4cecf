package jobs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
)

// Attachment is a file attached to a Message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is a plain-text email with optional attachments.
type Message struct {
	From        string
	To          []string
	Subject     string
	Body        string
	Headers     map[string]string
	Attachments []Attachment
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

const smtpTimeout = 30 * time.Second

// SMTPMailer sends through an unauthenticated relay such as Mailpit or a
// local MTA.
type SMTPMailer struct {
	now  func() time.Time
	send func(ctx context.Context, msg *mail.Msg) error
}

// NewSMTPMailer returns a mailer for the relay at host:port.
func NewSMTPMailer(host string, port int) (*SMTPMailer, error) {
	client, err := mail.NewClient(host,
		mail.WithPort(port),
		mail.WithTimeout(smtpTimeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	)
	if err != nil {
		return nil, fmt.Errorf("jobs: mail: %w", err)
	}
	return &SMTPMailer{
		now: time.Now,
		send: func(ctx context.Context, msg *mail.Msg) error {
			return client.DialAndSendWithContext(ctx, msg)
		},
	}, nil
}

// Send builds the MIME message and hands it to the relay. The dial and the
// SMTP exchange stop when ctx is done.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	built, err := m.build(msg)
	if err != nil {
		return err
	}
	return m.send(ctx, built)
}

func (m *SMTPMailer) build(msg Message) (*mail.Msg, error) {
	if msg.From == "" || len(msg.To) == 0 {
		return nil, errors.New("jobs: mail: sender and recipients required")
	}
	out := mail.NewMsg()
	if err := out.From(msg.From); err != nil {
		return nil, fmt.Errorf("jobs: mail: sender: %w", err)
	}
	if err := out.To(msg.To...); err != nil {
		return nil, fmt.Errorf("jobs: mail: recipients: %w", err)
	}
	out.Subject(msg.Subject)
	out.SetDateWithValue(m.now().UTC())
	out.SetMessageID()
	for k, v := range msg.Headers {
		out.SetGenHeader(mail.Header(k), v)
	}
	out.SetBodyString(mail.TypeTextPlain, msg.Body)
	for _, att := range msg.Attachments {
		err := out.AttachReader(att.Filename, bytes.NewReader(att.Data),
			mail.WithFileContentType(mail.ContentType(att.ContentType)))
		if err != nil {
			return nil, fmt.Errorf("jobs: mail: attach %s: %w", att.Filename, err)
		}
	}
	return out, nil
}
