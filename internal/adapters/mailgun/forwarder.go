package mailgun

import (
	"context"
	"fmt"

	"github.com/mailgun/mailgun-go/v4"
	"go.uber.org/zap"
)

// Forwarder delivers messages to the user's real mailbox through the
// Mailgun messages API
type Forwarder struct {
	mg     *mailgun.MailgunImpl
	logger *zap.Logger
}

// NewForwarder creates a new Mailgun forwarder. apiBase selects the API
// region (the default configuration points at the EU endpoint).
func NewForwarder(domain, apiKey, apiBase string, logger *zap.Logger) *Forwarder {
	mg := mailgun.NewMailgun(domain, apiKey)
	if apiBase != "" {
		mg.SetAPIBase(apiBase)
	}
	return &Forwarder{
		mg:     mg,
		logger: logger,
	}
}

// Forward sends the message on, preserving the original sender address
func (f *Forwarder) Forward(ctx context.Context, to, from, subject, html, text string) error {
	m := f.mg.NewMessage(from, subject, text, to)
	if html != "" {
		m.SetHtml(html)
	}

	_, id, err := f.mg.Send(ctx, m)
	if err != nil {
		return fmt.Errorf("failed to send email via Mailgun: %w", err)
	}

	f.logger.Debug("Email forwarded via Mailgun",
		zap.String("to", to),
		zap.String("mailgun_id", id))
	return nil
}
