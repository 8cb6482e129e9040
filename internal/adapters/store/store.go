package store

import (
	"context"

	"github.com/supamail/supamail-gateway/internal/core"
)

// Store bundles the persistence ports the gateway consumes plus the write
// operations the dashboard-facing side needs for seeding users and rules.
type Store interface {
	core.RuleStore
	core.CategoryStore
	core.ActivityRecorder

	// CreateUser registers a user and returns it with its id assigned.
	CreateUser(username, email string) (*core.User, error)

	// CreateRule persists a rule and returns it with id and creation time
	// assigned. Rules are never updated, only created and deleted.
	CreateRule(rule *core.Rule) (*core.Rule, error)

	// DeleteRule removes a rule by id.
	DeleteRule(id string) error

	// ListEntries returns a user's activity entries, newest first.
	ListEntries(ctx context.Context, userID string) ([]core.ActivityEntry, error)

	// Close releases any underlying resources.
	Close() error
}
