package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubStore struct {
	usersByAddress map[string]*User
	usersByID      map[string]*User
	rules          []Rule
	rulesErr       error
}

func (s *stubStore) GetUserByAddress(_ context.Context, address string) (*User, error) {
	u, ok := s.usersByAddress[address]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (s *stubStore) GetUserByID(_ context.Context, id string) (*User, error) {
	u, ok := s.usersByID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (s *stubStore) GetRulesForUser(context.Context, string) ([]Rule, error) {
	return s.rules, s.rulesErr
}

type stubCategories struct {
	names []string
	err   error
}

func (s *stubCategories) EnsureCategory(_ context.Context, name string) error {
	s.names = append(s.names, name)
	return s.err
}

type forwardCall struct {
	to, from, subject, html, text string
}

type stubForwarder struct {
	calls []forwardCall
	err   error
	steps *[]string
}

func (f *stubForwarder) Forward(_ context.Context, to, from, subject, html, text string) error {
	if f.steps != nil {
		*f.steps = append(*f.steps, "forward")
	}
	f.calls = append(f.calls, forwardCall{to, from, subject, html, text})
	return f.err
}

type stubRecorder struct {
	entries  map[string]*ActivityEntry
	byMsgID  map[string]string
	nextID   int
	steps    *[]string
	recErr   error
	markErr  error
	markedID string
}

func newStubRecorder() *stubRecorder {
	return &stubRecorder{
		entries: make(map[string]*ActivityEntry),
		byMsgID: make(map[string]string),
	}
}

func (r *stubRecorder) Record(_ context.Context, entry *ActivityEntry) (*ActivityEntry, bool, error) {
	if r.steps != nil {
		*r.steps = append(*r.steps, "record")
	}
	if r.recErr != nil {
		return nil, false, r.recErr
	}
	if entry.MessageID != "" {
		if id, ok := r.byMsgID[entry.MessageID]; ok {
			return r.entries[id], false, nil
		}
	}
	r.nextID++
	stored := *entry
	stored.ID = fmt.Sprintf("e%d", r.nextID)
	stored.CreatedAt = time.Now()
	r.entries[stored.ID] = &stored
	if stored.MessageID != "" {
		r.byMsgID[stored.MessageID] = stored.ID
	}
	return &stored, true, nil
}

func (r *stubRecorder) GetEntry(_ context.Context, id string) (*ActivityEntry, error) {
	e, ok := r.entries[id]
	if !ok {
		return nil, ErrEntryNotFound
	}
	copied := *e
	return &copied, nil
}

func (r *stubRecorder) MarkForwarded(_ context.Context, id string) error {
	if r.markErr != nil {
		return r.markErr
	}
	e, ok := r.entries[id]
	if !ok {
		return ErrEntryNotFound
	}
	if e.Status != StatusBlocked {
		return ErrNotBlocked
	}
	e.Status = StatusForwarded
	r.markedID = id
	return nil
}

type fixture struct {
	svc        *GatewayService
	store      *stubStore
	categories *stubCategories
	forwarder  *stubForwarder
	recorder   *stubRecorder
}

func newFixture(rules []Rule, classifier Classifier) *fixture {
	user := &User{ID: "u1", Username: "mario", Email: "mario@real-mail.com"}
	store := &stubStore{
		usersByAddress: map[string]*User{"mario@supamail.example.com": user},
		usersByID:      map[string]*User{"u1": user},
		rules:          rules,
	}
	categories := &stubCategories{}
	forwarder := &stubForwarder{}
	recorder := newStubRecorder()
	if classifier == nil {
		classifier = classifierFunc(func(_ context.Context, subject, _ string) (*Classification, error) {
			return &Classification{
				Summary:         "Test summary",
				Category:        "Personal",
				EnhancedSubject: "[Test summary] " + subject,
			}, nil
		})
	}
	return &fixture{
		svc:        NewGatewayService(store, categories, classifier, forwarder, recorder, zap.NewNop()),
		store:      store,
		categories: categories,
		forwarder:  forwarder,
		recorder:   recorder,
	}
}

func inbound(msgID string) *InboundEmail {
	return &InboundEmail{
		Sender:    "alice@sender.com",
		Recipient: "mario@supamail.example.com",
		Subject:   "Hello",
		BodyHTML:  "<p>hi</p>",
		BodyPlain: "hi",
		MessageID: msgID,
	}
}

func TestProcessInboundUnknownRecipient(t *testing.T) {
	f := newFixture(nil, nil)
	msg := inbound("m1")
	msg.Recipient = "nobody@supamail.example.com"

	entry, err := f.svc.ProcessInbound(context.Background(), msg)
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.Nil(t, entry)
	assert.Empty(t, f.recorder.entries)
	assert.Empty(t, f.forwarder.calls)
}

func TestProcessInboundAllowForwardsAndLogs(t *testing.T) {
	f := newFixture(nil, nil)

	entry, err := f.svc.ProcessInbound(context.Background(), inbound("m1"))
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, StatusForwarded, entry.Status)
	assert.Equal(t, "u1", entry.UserID)
	assert.Equal(t, "Test summary", entry.Summary)
	assert.Equal(t, "Personal", entry.Category)

	require.Len(t, f.forwarder.calls, 1)
	call := f.forwarder.calls[0]
	assert.Equal(t, "mario@real-mail.com", call.to)
	assert.Equal(t, "alice@sender.com", call.from)
	assert.Equal(t, "[Test summary] Hello", call.subject)
	assert.Equal(t, "<p>hi</p>", call.html)
	assert.Equal(t, "hi", call.text)

	assert.Equal(t, []string{"Personal"}, f.categories.names)
}

func TestProcessInboundBlockSkipsForward(t *testing.T) {
	rules := []Rule{{ID: "r1", UserID: "u1", Pattern: "sender.com", Type: RuleTypeDomain, Action: ActionBlock}}
	f := newFixture(rules, nil)

	entry, err := f.svc.ProcessInbound(context.Background(), inbound("m1"))
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, StatusBlocked, entry.Status)
	assert.Empty(t, f.forwarder.calls)
	assert.Len(t, f.recorder.entries, 1)
}

func TestProcessInboundLogsBeforeForwarding(t *testing.T) {
	f := newFixture(nil, nil)
	var steps []string
	f.recorder.steps = &steps
	f.forwarder.steps = &steps

	_, err := f.svc.ProcessInbound(context.Background(), inbound("m1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"record", "forward"}, steps)
}

func TestProcessInboundForwardFailureKeepsEntry(t *testing.T) {
	f := newFixture(nil, nil)
	f.forwarder.err = errors.New("relay unavailable")

	entry, err := f.svc.ProcessInbound(context.Background(), inbound("m1"))
	require.Error(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, StatusForwarded, entry.Status)
	assert.Len(t, f.recorder.entries, 1)
}

func TestProcessInboundDuplicateDeliveryForwardsOnce(t *testing.T) {
	f := newFixture(nil, nil)

	first, err := f.svc.ProcessInbound(context.Background(), inbound("m1"))
	require.NoError(t, err)
	second, err := f.svc.ProcessInbound(context.Background(), inbound("m1"))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, f.forwarder.calls, 1)
	assert.Len(t, f.recorder.entries, 1)
}

func TestProcessInboundFallbackCategoryIsMatchable(t *testing.T) {
	// Classification fails; the fallback category must still be matchable
	// by category rules, so a block rule on it quarantines the message.
	failing := classifierFunc(func(context.Context, string, string) (*Classification, error) {
		return nil, errors.New("timeout")
	})
	classifier := NewFallbackClassifier(failing, zap.NewNop(), "Summary unavailable", "Updates")
	rules := []Rule{{ID: "r1", UserID: "u1", Pattern: "updates", Type: RuleTypeCategory, Action: ActionBlock}}
	f := newFixture(rules, classifier)

	entry, err := f.svc.ProcessInbound(context.Background(), inbound("m1"))
	require.NoError(t, err)
	assert.Equal(t, StatusBlocked, entry.Status)
	assert.Equal(t, "Updates", entry.Category)
	assert.Equal(t, "Summary unavailable", entry.Summary)
	assert.Empty(t, f.forwarder.calls)
}

func TestProcessInboundCategoryStoreFailureIsNonFatal(t *testing.T) {
	f := newFixture(nil, nil)
	f.categories.err = errors.New("db down")

	entry, err := f.svc.ProcessInbound(context.Background(), inbound("m1"))
	require.NoError(t, err)
	assert.Equal(t, StatusForwarded, entry.Status)
}

func TestForwardBlockedTransition(t *testing.T) {
	rules := []Rule{{ID: "r1", UserID: "u1", Pattern: "sender.com", Type: RuleTypeDomain, Action: ActionBlock}}
	f := newFixture(rules, nil)

	blocked, err := f.svc.ProcessInbound(context.Background(), inbound("m1"))
	require.NoError(t, err)
	require.Equal(t, StatusBlocked, blocked.Status)

	entry, err := f.svc.ForwardBlocked(context.Background(), blocked.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, StatusForwarded, entry.Status)
	assert.Equal(t, blocked.ID, f.recorder.markedID)

	require.Len(t, f.forwarder.calls, 1)
	call := f.forwarder.calls[0]
	assert.Equal(t, "mario@real-mail.com", call.to)
	assert.Equal(t, "[Resend] Hello", call.subject)
}

func TestForwardBlockedForeignEntryLooksMissing(t *testing.T) {
	rules := []Rule{{ID: "r1", UserID: "u1", Pattern: "sender.com", Type: RuleTypeDomain, Action: ActionBlock}}
	f := newFixture(rules, nil)

	blocked, err := f.svc.ProcessInbound(context.Background(), inbound("m1"))
	require.NoError(t, err)

	_, err = f.svc.ForwardBlocked(context.Background(), blocked.ID, "someone-else")
	assert.ErrorIs(t, err, ErrEntryNotFound)
	assert.Empty(t, f.forwarder.calls)
}

func TestForwardBlockedAlreadyForwardedIsNoop(t *testing.T) {
	f := newFixture(nil, nil)

	forwarded, err := f.svc.ProcessInbound(context.Background(), inbound("m1"))
	require.NoError(t, err)
	require.Equal(t, StatusForwarded, forwarded.Status)
	require.Len(t, f.forwarder.calls, 1)

	entry, err := f.svc.ForwardBlocked(context.Background(), forwarded.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, StatusForwarded, entry.Status)
	assert.Len(t, f.forwarder.calls, 1)
}

func TestForwardBlockedUnknownEntry(t *testing.T) {
	f := newFixture(nil, nil)
	_, err := f.svc.ForwardBlocked(context.Background(), "missing", "u1")
	assert.ErrorIs(t, err, ErrEntryNotFound)
}
