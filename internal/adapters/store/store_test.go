package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/supamail/supamail-gateway/internal/core"
	"go.uber.org/zap"
)

const testDomain = "supamail.example.com"

// Both implementations must satisfy the same contract, so every test runs
// against each of them. MySQL needs a live server and is covered by the
// same code paths as SQLite.
func withStores(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore(testDomain, zap.NewNop()))
	})
	t.Run("sqlite", func(t *testing.T) {
		s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "gateway.db"), testDomain, zap.NewNop())
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		fn(t, s)
	})
}

func TestGetUserByAddress(t *testing.T) {
	withStores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		user, err := s.CreateUser("mario", "mario@real-mail.com")
		require.NoError(t, err)

		got, err := s.GetUserByAddress(ctx, "mario@supamail.example.com")
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
		assert.Equal(t, "mario@real-mail.com", got.Email)

		// Address matching is case-insensitive.
		got, err = s.GetUserByAddress(ctx, "MARIO@Supamail.Example.COM")
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)

		// Unknown local part.
		_, err = s.GetUserByAddress(ctx, "luigi@supamail.example.com")
		assert.ErrorIs(t, err, core.ErrUserNotFound)

		// Foreign domain, even with a known local part.
		_, err = s.GetUserByAddress(ctx, "mario@elsewhere.com")
		assert.ErrorIs(t, err, core.ErrUserNotFound)
	})
}

func TestGetUserByID(t *testing.T) {
	withStores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		user, err := s.CreateUser("mario", "mario@real-mail.com")
		require.NoError(t, err)

		got, err := s.GetUserByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, user.Email, got.Email)

		_, err = s.GetUserByID(ctx, "missing")
		assert.ErrorIs(t, err, core.ErrUserNotFound)
	})
}

func TestRulesOrderedOldestFirst(t *testing.T) {
	withStores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		user, err := s.CreateUser("mario", "mario@real-mail.com")
		require.NoError(t, err)

		patterns := []string{"first.com", "second.com", "third.com"}
		for _, p := range patterns {
			_, err := s.CreateRule(&core.Rule{
				UserID:  user.ID,
				Pattern: p,
				Type:    core.RuleTypeDomain,
				Action:  core.ActionBlock,
			})
			require.NoError(t, err)
			time.Sleep(2 * time.Millisecond)
		}

		rules, err := s.GetRulesForUser(ctx, user.ID)
		require.NoError(t, err)
		require.Len(t, rules, 3)
		for i, p := range patterns {
			assert.Equal(t, p, rules[i].Pattern)
		}

		require.NoError(t, s.DeleteRule(rules[1].ID))
		rules, err = s.GetRulesForUser(ctx, user.ID)
		require.NoError(t, err)
		require.Len(t, rules, 2)
		assert.Equal(t, "first.com", rules[0].Pattern)
		assert.Equal(t, "third.com", rules[1].Pattern)
	})
}

func TestRulesForUnknownUserAreEmpty(t *testing.T) {
	withStores(t, func(t *testing.T, s Store) {
		rules, err := s.GetRulesForUser(context.Background(), "missing")
		require.NoError(t, err)
		assert.Empty(t, rules)
	})
}

func TestEnsureCategoryDeduplicates(t *testing.T) {
	withStores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.EnsureCategory(ctx, "Promotions"))
		require.NoError(t, s.EnsureCategory(ctx, "Promotions"))
		require.NoError(t, s.EnsureCategory(ctx, "Updates"))
	})
}

func TestRecordIsIdempotentOnMessageID(t *testing.T) {
	withStores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		entry := &core.ActivityEntry{
			UserID:    "u1",
			Sender:    "alice@sender.com",
			Subject:   "Hello",
			Summary:   "Greeting",
			Category:  "Personal",
			BodyHTML:  "<p>hi</p>",
			BodyPlain: "hi",
			Status:    core.StatusForwarded,
			MessageID: "msg-1",
		}

		first, created, err := s.Record(ctx, entry)
		require.NoError(t, err)
		assert.True(t, created)
		require.NotEmpty(t, first.ID)

		second, created, err := s.Record(ctx, entry)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, first.ID, second.ID)

		got, err := s.GetEntry(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, "Greeting", got.Summary)
		assert.Equal(t, core.StatusForwarded, got.Status)
	})
}

func TestRecordWithoutMessageIDAlwaysInserts(t *testing.T) {
	withStores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		entry := &core.ActivityEntry{UserID: "u1", Sender: "a@b.c", Status: core.StatusBlocked}

		first, created, err := s.Record(ctx, entry)
		require.NoError(t, err)
		assert.True(t, created)

		second, created, err := s.Record(ctx, entry)
		require.NoError(t, err)
		assert.True(t, created)
		assert.NotEqual(t, first.ID, second.ID)
	})
}

func TestMarkForwardedTransitions(t *testing.T) {
	withStores(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		blocked, _, err := s.Record(ctx, &core.ActivityEntry{
			UserID: "u1", Sender: "a@b.c", Status: core.StatusBlocked, MessageID: "m1",
		})
		require.NoError(t, err)

		require.NoError(t, s.MarkForwarded(ctx, blocked.ID))
		got, err := s.GetEntry(ctx, blocked.ID)
		require.NoError(t, err)
		assert.Equal(t, core.StatusForwarded, got.Status)

		// forwarded -> forwarded is rejected, never silently re-applied.
		assert.ErrorIs(t, s.MarkForwarded(ctx, blocked.ID), core.ErrNotBlocked)

		assert.ErrorIs(t, s.MarkForwarded(ctx, "missing"), core.ErrEntryNotFound)
	})
}

func TestListEntriesNewestFirst(t *testing.T) {
	withStores(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		for i, msgID := range []string{"m1", "m2", "m3"} {
			status := core.StatusForwarded
			if i == 1 {
				status = core.StatusBlocked
			}
			_, _, err := s.Record(ctx, &core.ActivityEntry{
				UserID: "u1", Sender: "a@b.c", Subject: msgID, Status: status, MessageID: msgID,
			})
			require.NoError(t, err)
			time.Sleep(2 * time.Millisecond)
		}
		_, _, err := s.Record(ctx, &core.ActivityEntry{
			UserID: "u2", Sender: "a@b.c", Status: core.StatusForwarded, MessageID: "other",
		})
		require.NoError(t, err)

		entries, err := s.ListEntries(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, "m3", entries[0].Subject)
		assert.Equal(t, "m1", entries[2].Subject)
		assert.Equal(t, core.StatusBlocked, entries[1].Status)

		entries, err = s.ListEntries(ctx, "unknown")
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestGetEntryNotFound(t *testing.T) {
	withStores(t, func(t *testing.T, s Store) {
		_, err := s.GetEntry(context.Background(), "missing")
		assert.ErrorIs(t, err, core.ErrEntryNotFound)
	})
}
