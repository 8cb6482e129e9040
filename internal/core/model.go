package core

import (
	"time"
)

// RuleType identifies what a rule's pattern is matched against.
type RuleType string

const (
	// RuleTypeEmail matches the full sender address exactly.
	RuleTypeEmail RuleType = "email"
	// RuleTypeDomain matches a substring of the sender address.
	RuleTypeDomain RuleType = "domain"
	// RuleTypeCategory matches the classifier's category label exactly.
	RuleTypeCategory RuleType = "category"
)

// RuleAction is the outcome a matching rule demands.
type RuleAction string

const (
	ActionAllow RuleAction = "allow"
	ActionBlock RuleAction = "block"
)

// Rule is a user-authored pattern+type+action triple. Rules are created and
// deleted via the dashboard, never mutated in place. Duplicate or
// contradictory rules are legal input to the engine.
type Rule struct {
	ID        string
	UserID    string
	Pattern   string
	Type      RuleType
	Action    RuleAction
	CreatedAt time.Time
}

// User owns a masked address (Username@<gateway domain>) and a real mailbox.
type User struct {
	ID       string
	Username string
	Email    string
}

// InboundEmail is one message as delivered by the relay webhook. It exists
// only for the duration of a single processing pass.
type InboundEmail struct {
	Sender    string
	Recipient string
	Subject   string
	BodyHTML  string
	BodyPlain string
	// MessageID is the relay's delivery token, used as an idempotency key
	// so a redelivered webhook does not double-log or double-forward.
	MessageID string
}

// Classification is the AI-derived summary/category pair for one message.
// EnhancedSubject is the forwarded subject line, "[<summary>] <original>".
type Classification struct {
	Summary         string
	Category        string
	EnhancedSubject string
}

// Disposition is the engine's output: the final action plus the rule that
// decided it, nil when the default policy applied.
type Disposition struct {
	Action      RuleAction
	MatchedRule *Rule
}

// EntryStatus is the terminal state of a processed message.
type EntryStatus string

const (
	StatusForwarded EntryStatus = "forwarded"
	StatusBlocked   EntryStatus = "blocked"
)

// ActivityEntry is the per-message audit record. Status may transition
// blocked -> forwarded exactly once (manual re-forward), never the reverse.
type ActivityEntry struct {
	ID        string
	UserID    string
	Sender    string
	Subject   string
	Summary   string
	Category  string
	BodyHTML  string
	BodyPlain string
	Status    EntryStatus
	MessageID string
	CreatedAt time.Time
}
