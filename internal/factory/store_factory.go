package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/supamail/supamail-gateway/internal/adapters/store"
	"github.com/supamail/supamail-gateway/internal/config"
	"go.uber.org/zap"
)

// StoreFactory creates persistence stores based on configuration
type StoreFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewStoreFactory creates a new store factory
func NewStoreFactory(cfg *config.Config, logger *zap.Logger) *StoreFactory {
	return &StoreFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateStore creates a store based on the configuration
func (f *StoreFactory) CreateStore() (store.Store, error) {
	storeConfig := f.cfg.GetStore()
	domain := f.cfg.GetGateway().Domain

	switch storeConfig.Type {
	case "memory":
		return store.NewMemoryStore(domain, f.logger), nil
	case "sqlite":
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(storeConfig.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return store.NewSQLiteStore(storeConfig.SQLitePath, domain, f.logger)
	case "mysql":
		return store.NewMySQLStore(storeConfig.MySQLDSN, domain, f.logger)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", storeConfig.Type)
	}
}
