package core

import (
	"context"
	"errors"
)

var (
	// ErrUserNotFound is returned when no user owns the given address or id
	ErrUserNotFound = errors.New("user not found")
	// ErrEntryNotFound is returned when an activity entry does not exist
	ErrEntryNotFound = errors.New("activity entry not found")
	// ErrNotBlocked is returned when a status transition other than
	// blocked -> forwarded is attempted
	ErrNotBlocked = errors.New("activity entry is not blocked")
)

// RuleStore provides users and their rule sets.
type RuleStore interface {
	// GetUserByAddress resolves a masked address to its owning user.
	// Resolution strips the local part against the configured gateway
	// domain; any other address returns ErrUserNotFound.
	GetUserByAddress(ctx context.Context, address string) (*User, error)

	// GetUserByID returns the user with the given id, or ErrUserNotFound.
	GetUserByID(ctx context.Context, id string) (*User, error)

	// GetRulesForUser returns the user's complete rule set, ordered by
	// creation time ascending (id ascending on ties). The engine picks the
	// first match per type, so this order makes the within-type tie-break
	// "oldest rule wins".
	GetRulesForUser(ctx context.Context, userID string) ([]Rule, error)
}

// CategoryStore maintains the deduplicated category vocabulary.
type CategoryStore interface {
	// EnsureCategory records a category label on first use. Concurrent
	// first-uses of the same label must converge on a single entry.
	EnsureCategory(ctx context.Context, name string) error
}

// Classifier produces a summary and category for one message.
// Implementations handed to the pipeline must not fail: on any internal
// error they return the configured fallback pair instead (see
// FallbackClassifier, which wraps the raw LLM adapters to guarantee this).
type Classifier interface {
	Classify(ctx context.Context, subject, body string) (*Classification, error)
}

// Forwarder delivers a message to the user's real mailbox. Used only after
// an allow decision.
type Forwarder interface {
	Forward(ctx context.Context, to, from, subject, html, text string) error
}

// ActivityRecorder persists one audit record per processed message.
type ActivityRecorder interface {
	// Record inserts the entry. When the entry's MessageID has been seen
	// before, the existing record is returned and created is false.
	Record(ctx context.Context, entry *ActivityEntry) (recorded *ActivityEntry, created bool, err error)

	// GetEntry returns the entry with the given id, or ErrEntryNotFound.
	GetEntry(ctx context.Context, id string) (*ActivityEntry, error)

	// MarkForwarded transitions an entry from blocked to forwarded.
	// Any other transition returns ErrNotBlocked.
	MarkForwarded(ctx context.Context, id string) error
}
