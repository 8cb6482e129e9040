package smtpfwd

import (
	"bytes"
	"context"
	"fmt"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/jhillyerd/enmime"
	"go.uber.org/zap"
)

// Forwarder delivers messages through a plain SMTP relay instead of the
// Mailgun API, for self-hosted deployments that already run an MTA.
type Forwarder struct {
	addr     string
	username string
	password string
	logger   *zap.Logger
}

// NewForwarder creates a new SMTP forwarder. Authentication is PLAIN and
// only attempted when a username is configured.
func NewForwarder(addr, username, password string, logger *zap.Logger) *Forwarder {
	return &Forwarder{
		addr:     addr,
		username: username,
		password: password,
		logger:   logger,
	}
}

// Forward builds a multipart/alternative message and hands it to the relay
func (f *Forwarder) Forward(ctx context.Context, to, from, subject, html, text string) error {
	builder := enmime.Builder().
		From("", from).
		To("", to).
		Subject(subject)
	if text != "" {
		builder = builder.Text([]byte(text))
	}
	if html != "" {
		builder = builder.HTML([]byte(html))
	}

	part, err := builder.Build()
	if err != nil {
		return fmt.Errorf("failed to build MIME message: %w", err)
	}
	var buf bytes.Buffer
	if err := part.Encode(&buf); err != nil {
		return fmt.Errorf("failed to encode MIME message: %w", err)
	}

	var auth sasl.Client
	if f.username != "" {
		auth = sasl.NewPlainClient("", f.username, f.password)
	}

	if err := smtp.SendMail(f.addr, auth, from, []string{to}, &buf); err != nil {
		return fmt.Errorf("failed to send email via SMTP relay: %w", err)
	}

	f.logger.Debug("Email forwarded via SMTP relay",
		zap.String("to", to),
		zap.String("relay", f.addr))
	return nil
}
