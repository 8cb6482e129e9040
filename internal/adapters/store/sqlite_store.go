package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/supamail/supamail-gateway/internal/core"
	"go.uber.org/zap"
)

// SQLiteStore is a SQLite implementation of the Store interface
type SQLiteStore struct {
	db     *sql.DB
	domain string
	logger *zap.Logger
}

// NewSQLiteStore opens (and if necessary initializes) a SQLite database
func NewSQLiteStore(dbPath, domain string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS rules (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			pattern TEXT NOT NULL,
			type TEXT NOT NULL,
			action TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rules_user_id ON rules(user_id)`,
		`CREATE TABLE IF NOT EXISTS categories (
			name TEXT PRIMARY KEY
		)`,
		`CREATE TABLE IF NOT EXISTS activity (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			sender TEXT NOT NULL,
			subject TEXT,
			summary TEXT,
			category TEXT,
			body_html TEXT,
			body_plain TEXT,
			status TEXT NOT NULL,
			message_id TEXT,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_activity_user_id ON activity(user_id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_activity_message_id
			ON activity(message_id) WHERE message_id IS NOT NULL`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	return &SQLiteStore{
		db:     db,
		domain: strings.ToLower(domain),
		logger: logger,
	}, nil
}

// CreateUser registers a user
func (s *SQLiteStore) CreateUser(username, email string) (*core.User, error) {
	user := &core.User{
		ID:       uuid.NewString(),
		Username: strings.ToLower(username),
		Email:    email,
	}
	_, err := s.db.Exec(`
		INSERT INTO users (id, username, email) VALUES (?, ?, ?)
	`, user.ID, user.Username, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// CreateRule persists a rule
func (s *SQLiteStore) CreateRule(rule *core.Rule) (*core.Rule, error) {
	stored := *rule
	stored.ID = uuid.NewString()
	stored.CreatedAt = time.Now()

	_, err := s.db.Exec(`
		INSERT INTO rules (id, user_id, pattern, type, action, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, stored.ID, stored.UserID, stored.Pattern, string(stored.Type), string(stored.Action), stored.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("failed to create rule: %w", err)
	}
	return &stored, nil
}

// DeleteRule removes a rule by id
func (s *SQLiteStore) DeleteRule(id string) error {
	if _, err := s.db.Exec(`DELETE FROM rules WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	return nil
}

// GetUserByAddress resolves a masked address to its owning user
func (s *SQLiteStore) GetUserByAddress(ctx context.Context, address string) (*core.User, error) {
	username, ok := localPart(address, s.domain)
	if !ok {
		return nil, core.ErrUserNotFound
	}

	var user core.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, email FROM users WHERE username = ?
	`, username).Scan(&user.ID, &user.Username, &user.Email)
	if err == sql.ErrNoRows {
		return nil, core.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

// GetUserByID returns the user with the given id
func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*core.User, error) {
	var user core.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, email FROM users WHERE id = ?
	`, id).Scan(&user.ID, &user.Username, &user.Email)
	if err == sql.ErrNoRows {
		return nil, core.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

// GetRulesForUser returns the user's rules ordered by creation time
// ascending, id ascending on ties
func (s *SQLiteStore) GetRulesForUser(ctx context.Context, userID string) ([]core.Rule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, pattern, type, action, created_at
		FROM rules
		WHERE user_id = ?
		ORDER BY created_at ASC, id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var rules []core.Rule
	for rows.Next() {
		var r core.Rule
		var ruleType, action, createdAt string
		if err := rows.Scan(&r.ID, &r.UserID, &r.Pattern, &ruleType, &action, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		r.Type = core.RuleType(ruleType)
		r.Action = core.RuleAction(action)
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			r.CreatedAt = ts
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// EnsureCategory records a category label on first use. The primary key
// makes concurrent first-uses converge on a single row.
func (s *SQLiteStore) EnsureCategory(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO categories (name) VALUES (?)
	`, name)
	if err != nil {
		return fmt.Errorf("failed to record category: %w", err)
	}
	return nil
}

// Record inserts an activity entry, deduplicating on message id
func (s *SQLiteStore) Record(ctx context.Context, entry *core.ActivityEntry) (*core.ActivityEntry, bool, error) {
	if entry.MessageID != "" {
		if existing, err := s.getEntryByMessageID(ctx, entry.MessageID); err == nil {
			return existing, false, nil
		}
	}

	stored := *entry
	stored.ID = uuid.NewString()
	stored.CreatedAt = time.Now()

	var msgID interface{}
	if stored.MessageID != "" {
		msgID = stored.MessageID
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity (id, user_id, sender, subject, summary, category, body_html, body_plain, status, message_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, stored.ID, stored.UserID, stored.Sender, stored.Subject, stored.Summary, stored.Category,
		stored.BodyHTML, stored.BodyPlain, string(stored.Status), msgID, stored.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		// A concurrent insert of the same message id trips the unique
		// index; the winner's row is the entry.
		if entry.MessageID != "" {
			if existing, selErr := s.getEntryByMessageID(ctx, entry.MessageID); selErr == nil {
				return existing, false, nil
			}
		}
		return nil, false, fmt.Errorf("failed to record activity entry: %w", err)
	}
	return &stored, true, nil
}

// GetEntry returns the entry with the given id
func (s *SQLiteStore) GetEntry(ctx context.Context, id string) (*core.ActivityEntry, error) {
	return s.scanEntry(s.db.QueryRowContext(ctx, `
		SELECT id, user_id, sender, subject, summary, category, body_html, body_plain, status, message_id, created_at
		FROM activity WHERE id = ?
	`, id))
}

// ListEntries returns a user's activity entries, newest first
func (s *SQLiteStore) ListEntries(ctx context.Context, userID string) ([]core.ActivityEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, sender, subject, summary, category, body_html, body_plain, status, message_id, created_at
		FROM activity
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity entries: %w", err)
	}
	defer rows.Close()

	var entries []core.ActivityEntry
	for rows.Next() {
		var e core.ActivityEntry
		var status, createdAt string
		var msgID sql.NullString
		if err := rows.Scan(&e.ID, &e.UserID, &e.Sender, &e.Subject, &e.Summary, &e.Category,
			&e.BodyHTML, &e.BodyPlain, &status, &msgID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity entry: %w", err)
		}
		e.Status = core.EntryStatus(status)
		e.MessageID = msgID.String
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			e.CreatedAt = ts
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) getEntryByMessageID(ctx context.Context, messageID string) (*core.ActivityEntry, error) {
	return s.scanEntry(s.db.QueryRowContext(ctx, `
		SELECT id, user_id, sender, subject, summary, category, body_html, body_plain, status, message_id, created_at
		FROM activity WHERE message_id = ?
	`, messageID))
}

func (s *SQLiteStore) scanEntry(row *sql.Row) (*core.ActivityEntry, error) {
	var e core.ActivityEntry
	var status, createdAt string
	var msgID sql.NullString
	err := row.Scan(&e.ID, &e.UserID, &e.Sender, &e.Subject, &e.Summary, &e.Category,
		&e.BodyHTML, &e.BodyPlain, &status, &msgID, &createdAt)
	if err == sql.ErrNoRows {
		return nil, core.ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan activity entry: %w", err)
	}
	e.Status = core.EntryStatus(status)
	e.MessageID = msgID.String
	if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		e.CreatedAt = ts
	}
	return &e, nil
}

// MarkForwarded transitions an entry from blocked to forwarded
func (s *SQLiteStore) MarkForwarded(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE activity SET status = ? WHERE id = ? AND status = ?
	`, string(core.StatusForwarded), id, string(core.StatusBlocked))
	if err != nil {
		return fmt.Errorf("failed to update activity entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		if _, err := s.GetEntry(ctx, id); err != nil {
			return err
		}
		return core.ErrNotBlocked
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
