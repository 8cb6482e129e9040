package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/supamail/supamail-gateway/internal/core"
	"go.uber.org/zap"
)

// MySQLStore is a MySQL implementation of the Store interface. The DSN must
// include parseTime=true so DATETIME columns scan into time.Time.
type MySQLStore struct {
	db     *sql.DB
	domain string
	logger *zap.Logger
}

// NewMySQLStore connects to MySQL and initializes the schema
func NewMySQLStore(dsn, domain string, logger *zap.Logger) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(36) PRIMARY KEY,
			username VARCHAR(255) NOT NULL UNIQUE,
			email VARCHAR(255) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS rules (
			id VARCHAR(36) PRIMARY KEY,
			user_id VARCHAR(36) NOT NULL,
			pattern VARCHAR(512) NOT NULL,
			type VARCHAR(16) NOT NULL,
			action VARCHAR(16) NOT NULL,
			created_at DATETIME(6) NOT NULL,
			INDEX idx_rules_user_id (user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS categories (
			name VARCHAR(255) PRIMARY KEY
		)`,
		`CREATE TABLE IF NOT EXISTS activity (
			id VARCHAR(36) PRIMARY KEY,
			user_id VARCHAR(36) NOT NULL,
			sender VARCHAR(512) NOT NULL,
			subject TEXT,
			summary TEXT,
			category VARCHAR(255),
			body_html MEDIUMTEXT,
			body_plain MEDIUMTEXT,
			status VARCHAR(16) NOT NULL,
			message_id VARCHAR(255) NULL,
			created_at DATETIME(6) NOT NULL,
			INDEX idx_activity_user_id (user_id),
			UNIQUE KEY idx_activity_message_id (message_id)
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	return &MySQLStore{
		db:     db,
		domain: strings.ToLower(domain),
		logger: logger,
	}, nil
}

// CreateUser registers a user
func (s *MySQLStore) CreateUser(username, email string) (*core.User, error) {
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
func (s *MySQLStore) CreateRule(rule *core.Rule) (*core.Rule, error) {
	stored := *rule
	stored.ID = uuid.NewString()
	stored.CreatedAt = time.Now()

	_, err := s.db.Exec(`
		INSERT INTO rules (id, user_id, pattern, type, action, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, stored.ID, stored.UserID, stored.Pattern, string(stored.Type), string(stored.Action), stored.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create rule: %w", err)
	}
	return &stored, nil
}

// DeleteRule removes a rule by id
func (s *MySQLStore) DeleteRule(id string) error {
	if _, err := s.db.Exec(`DELETE FROM rules WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	return nil
}

// GetUserByAddress resolves a masked address to its owning user
func (s *MySQLStore) GetUserByAddress(ctx context.Context, address string) (*core.User, error) {
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
func (s *MySQLStore) GetUserByID(ctx context.Context, id string) (*core.User, error) {
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
func (s *MySQLStore) GetRulesForUser(ctx context.Context, userID string) ([]core.Rule, error) {
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
		var ruleType, action string
		if err := rows.Scan(&r.ID, &r.UserID, &r.Pattern, &ruleType, &action, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		r.Type = core.RuleType(ruleType)
		r.Action = core.RuleAction(action)
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// EnsureCategory records a category label on first use. INSERT IGNORE makes
// concurrent first-uses converge on a single row.
func (s *MySQLStore) EnsureCategory(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT IGNORE INTO categories (name) VALUES (?)
	`, name)
	if err != nil {
		return fmt.Errorf("failed to record category: %w", err)
	}
	return nil
}

// Record inserts an activity entry, deduplicating on message id
func (s *MySQLStore) Record(ctx context.Context, entry *core.ActivityEntry) (*core.ActivityEntry, bool, error) {
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
		stored.BodyHTML, stored.BodyPlain, string(stored.Status), msgID, stored.CreatedAt)
	if err != nil {
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
func (s *MySQLStore) GetEntry(ctx context.Context, id string) (*core.ActivityEntry, error) {
	return s.scanEntry(s.db.QueryRowContext(ctx, `
		SELECT id, user_id, sender, subject, summary, category, body_html, body_plain, status, message_id, created_at
		FROM activity WHERE id = ?
	`, id))
}

// ListEntries returns a user's activity entries, newest first
func (s *MySQLStore) ListEntries(ctx context.Context, userID string) ([]core.ActivityEntry, error) {
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
		var status string
		var msgID sql.NullString
		if err := rows.Scan(&e.ID, &e.UserID, &e.Sender, &e.Subject, &e.Summary, &e.Category,
			&e.BodyHTML, &e.BodyPlain, &status, &msgID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity entry: %w", err)
		}
		e.Status = core.EntryStatus(status)
		e.MessageID = msgID.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *MySQLStore) getEntryByMessageID(ctx context.Context, messageID string) (*core.ActivityEntry, error) {
	return s.scanEntry(s.db.QueryRowContext(ctx, `
		SELECT id, user_id, sender, subject, summary, category, body_html, body_plain, status, message_id, created_at
		FROM activity WHERE message_id = ?
	`, messageID))
}

func (s *MySQLStore) scanEntry(row *sql.Row) (*core.ActivityEntry, error) {
	var e core.ActivityEntry
	var status string
	var msgID sql.NullString
	err := row.Scan(&e.ID, &e.UserID, &e.Sender, &e.Subject, &e.Summary, &e.Category,
		&e.BodyHTML, &e.BodyPlain, &status, &msgID, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, core.ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan activity entry: %w", err)
	}
	e.Status = core.EntryStatus(status)
	e.MessageID = msgID.String
	return &e, nil
}

// MarkForwarded transitions an entry from blocked to forwarded
func (s *MySQLStore) MarkForwarded(ctx context.Context, id string) error {
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
func (s *MySQLStore) Close() error {
	return s.db.Close()
}
