package di

import (
	"time"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/supamail/supamail-gateway/internal/adapters/mailgun"
	"github.com/supamail/supamail-gateway/internal/adapters/store"
	"github.com/supamail/supamail-gateway/internal/adapters/webhook"
	"github.com/supamail/supamail-gateway/internal/config"
	"github.com/supamail/supamail-gateway/internal/core"
	"github.com/supamail/supamail-gateway/internal/factory"
	"github.com/supamail/supamail-gateway/internal/logging"
	"github.com/supamail/supamail-gateway/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewClassifierFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewForwarderFactory); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return nil, err
	}

	// Register classifier
	if err := container.Provide(func(f *factory.ClassifierFactory) (core.Classifier, error) {
		return f.CreateClassifier()
	}); err != nil {
		return nil, err
	}

	// Register store and the persistence ports it satisfies
	if err := container.Provide(func(f *factory.StoreFactory) (store.Store, error) {
		return f.CreateStore()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(s store.Store) core.RuleStore { return s }); err != nil {
		return nil, err
	}
	if err := container.Provide(func(s store.Store) core.CategoryStore { return s }); err != nil {
		return nil, err
	}
	if err := container.Provide(func(s store.Store) core.ActivityRecorder { return s }); err != nil {
		return nil, err
	}

	// Register forwarder
	if err := container.Provide(func(f *factory.ForwarderFactory) (core.Forwarder, error) {
		return f.CreateForwarder()
	}); err != nil {
		return nil, err
	}

	// Register gateway service
	if err := container.Provide(core.NewGatewayService); err != nil {
		return nil, err
	}

	// Register webhook signature verifier
	if err := container.Provide(func(cfg *config.Config) webhook.SignatureVerifier {
		return mailgun.NewSignatureVerifier(cfg.GetMailgun().SigningKey)
	}); err != nil {
		return nil, err
	}

	// Register webhook server
	if err := container.Provide(func(
		service *core.GatewayService,
		verifier webhook.SignatureVerifier,
		logger *zap.Logger,
		cfg *config.Config,
	) (*webhook.Server, error) {
		serverConfig := cfg.GetServer()
		shutdownTimeout, err := time.ParseDuration(serverConfig.ShutdownTimeout)
		if err != nil {
			shutdownTimeout = 10 * time.Second
		}
		return webhook.NewServer(service, verifier, logger, serverConfig.ListenAddress, shutdownTimeout), nil
	}); err != nil {
		return nil, err
	}

	return container, nil
}
