package factory

import (
	"fmt"

	"github.com/supamail/supamail-gateway/internal/adapters/mailgun"
	"github.com/supamail/supamail-gateway/internal/adapters/smtpfwd"
	"github.com/supamail/supamail-gateway/internal/config"
	"github.com/supamail/supamail-gateway/internal/core"
	"go.uber.org/zap"
)

// ForwarderFactory creates outbound delivery adapters
type ForwarderFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewForwarderFactory creates a new forwarder factory
func NewForwarderFactory(cfg *config.Config, logger *zap.Logger) *ForwarderFactory {
	return &ForwarderFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateForwarder creates a forwarder based on the configuration
func (f *ForwarderFactory) CreateForwarder() (core.Forwarder, error) {
	forwarderType := f.cfg.GetString("forwarder.type")

	switch forwarderType {
	case "mailgun":
		mgConfig := f.cfg.GetMailgun()
		return mailgun.NewForwarder(mgConfig.Domain, mgConfig.APIKey, mgConfig.APIBase, f.logger), nil
	case "smtp":
		smtpConfig := f.cfg.GetSMTP()
		return smtpfwd.NewForwarder(smtpConfig.Address, smtpConfig.Username, smtpConfig.Password, f.logger), nil
	default:
		return nil, fmt.Errorf("unsupported forwarder type: %s", forwarderType)
	}
}
