package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/supamail/supamail-gateway/internal/core"
	"go.uber.org/zap"
)

// MemoryStore is an in-memory implementation of the Store interface,
// used by the test suite and for local development without a database.
type MemoryStore struct {
	mu         sync.RWMutex
	domain     string
	users      map[string]*core.User // by id
	rules      map[string]*core.Rule // by id
	categories map[string]struct{}
	entries    map[string]*core.ActivityEntry // by id
	byMsgID    map[string]string              // message id -> entry id
	logger     *zap.Logger
}

// NewMemoryStore creates a new in-memory store for the given gateway domain
func NewMemoryStore(domain string, logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		domain:     strings.ToLower(domain),
		users:      make(map[string]*core.User),
		rules:      make(map[string]*core.Rule),
		categories: make(map[string]struct{}),
		entries:    make(map[string]*core.ActivityEntry),
		byMsgID:    make(map[string]string),
		logger:     logger,
	}
}

// CreateUser registers a user
func (s *MemoryStore) CreateUser(username, email string) (*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user := &core.User{
		ID:       uuid.NewString(),
		Username: strings.ToLower(username),
		Email:    email,
	}
	s.users[user.ID] = user
	return user, nil
}

// CreateRule persists a rule
func (s *MemoryStore) CreateRule(rule *core.Rule) (*core.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *rule
	stored.ID = uuid.NewString()
	stored.CreatedAt = time.Now()
	s.rules[stored.ID] = &stored
	copied := stored
	return &copied, nil
}

// DeleteRule removes a rule by id
func (s *MemoryStore) DeleteRule(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rules, id)
	return nil
}

// GetUserByAddress resolves a masked address to its owning user
func (s *MemoryStore) GetUserByAddress(_ context.Context, address string) (*core.User, error) {
	username, ok := localPart(address, s.domain)
	if !ok {
		return nil, core.ErrUserNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, core.ErrUserNotFound
}

// GetUserByID returns the user with the given id
func (s *MemoryStore) GetUserByID(_ context.Context, id string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, core.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

// GetRulesForUser returns the user's rules ordered by creation time
// ascending, id ascending on ties
func (s *MemoryStore) GetRulesForUser(_ context.Context, userID string) ([]core.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rules []core.Rule
	for _, r := range s.rules {
		if r.UserID == userID {
			rules = append(rules, *r)
		}
	}
	sort.Slice(rules, func(i, j int) bool {
		if !rules[i].CreatedAt.Equal(rules[j].CreatedAt) {
			return rules[i].CreatedAt.Before(rules[j].CreatedAt)
		}
		return rules[i].ID < rules[j].ID
	})
	return rules, nil
}

// EnsureCategory records a category label on first use
func (s *MemoryStore) EnsureCategory(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[name] = struct{}{}
	return nil
}

// Categories returns the current vocabulary, sorted
func (s *MemoryStore) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.categories))
	for name := range s.categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Record inserts an activity entry, deduplicating on message id
func (s *MemoryStore) Record(_ context.Context, entry *core.ActivityEntry) (*core.ActivityEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.MessageID != "" {
		if id, ok := s.byMsgID[entry.MessageID]; ok {
			copied := *s.entries[id]
			return &copied, false, nil
		}
	}

	stored := *entry
	stored.ID = uuid.NewString()
	stored.CreatedAt = time.Now()
	s.entries[stored.ID] = &stored
	if stored.MessageID != "" {
		s.byMsgID[stored.MessageID] = stored.ID
	}
	copied := stored
	return &copied, true, nil
}

// ListEntries returns a user's activity entries, newest first
func (s *MemoryStore) ListEntries(_ context.Context, userID string) ([]core.ActivityEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []core.ActivityEntry
	for _, e := range s.entries {
		if e.UserID == userID {
			entries = append(entries, *e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		}
		return entries[i].ID > entries[j].ID
	})
	return entries, nil
}

// GetEntry returns the entry with the given id
func (s *MemoryStore) GetEntry(_ context.Context, id string) (*core.ActivityEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, core.ErrEntryNotFound
	}
	copied := *e
	return &copied, nil
}

// MarkForwarded transitions an entry from blocked to forwarded
func (s *MemoryStore) MarkForwarded(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return core.ErrEntryNotFound
	}
	if e.Status != core.StatusBlocked {
		return core.ErrNotBlocked
	}
	e.Status = core.StatusForwarded
	return nil
}

// Close is a no-op for the memory store
func (s *MemoryStore) Close() error {
	return nil
}

// localPart strips address to its local part when it belongs to the
// gateway domain. Any other address has no owner.
func localPart(address, domain string) (string, bool) {
	addr := strings.ToLower(strings.TrimSpace(address))
	suffix := "@" + domain
	if !strings.HasSuffix(addr, suffix) {
		return "", false
	}
	return strings.TrimSuffix(addr, suffix), true
}
