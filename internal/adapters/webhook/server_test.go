package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	mgadapter "github.com/supamail/supamail-gateway/internal/adapters/mailgun"
	"github.com/supamail/supamail-gateway/internal/adapters/store"
	"github.com/supamail/supamail-gateway/internal/core"
	"go.uber.org/zap"
)

const (
	testDomain     = "supamail.example.com"
	testSigningKey = "test-signing-key"
)

type fakeClassifier struct {
	category string
	err      error
}

func (c *fakeClassifier) Classify(_ context.Context, subject, _ string) (*core.Classification, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &core.Classification{
		Summary:         "A test message",
		Category:        c.category,
		EnhancedSubject: "[A test message] " + subject,
	}, nil
}

type fakeForwarder struct {
	sent []string
	err  error
}

func (f *fakeForwarder) Forward(_ context.Context, to, _, subject, _, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, to+": "+subject)
	return nil
}

type fixture struct {
	srv       *httptest.Server
	store     *store.MemoryStore
	forwarder *fakeForwarder
	user      *core.User
}

func newFixture(t *testing.T, classifier core.Classifier, forwarder *fakeForwarder) *fixture {
	t.Helper()
	logger := zap.NewNop()

	st := store.NewMemoryStore(testDomain, logger)
	user, err := st.CreateUser("mario", "mario@real-mail.com")
	require.NoError(t, err)

	service := core.NewGatewayService(st, st, classifier, forwarder, st, logger)
	server := NewServer(service, mgadapter.NewSignatureVerifier(testSigningKey), logger, "127.0.0.1:0", time.Second)

	srv := httptest.NewServer(server.Routes())
	t.Cleanup(srv.Close)

	return &fixture{srv: srv, store: st, forwarder: forwarder, user: user}
}

func (f *fixture) postInbound(t *testing.T, form url.Values) (*http.Response, map[string]string) {
	t.Helper()
	resp, err := http.Post(f.srv.URL+"/inbound", "application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp, body
}

func signedForm(recipient, sender, subject, token string) url.Values {
	timestamp := "1700000000"
	form := url.Values{}
	form.Set("from", sender)
	form.Set("recipient", recipient)
	form.Set("subject", subject)
	form.Set("body-plain", "plain body")
	form.Set("body-html", "<p>html body</p>")
	form.Set("timestamp", timestamp)
	form.Set("token", token)
	form.Set("signature", sign(testSigningKey, timestamp, token))
	return form
}

func TestInboundRejectsInvalidSignature(t *testing.T) {
	f := newFixture(t, &fakeClassifier{category: "Personal"}, &fakeForwarder{})

	form := signedForm("mario@"+testDomain, "alice@example.org", "Hello", "tok-1")
	form.Set("signature", "deadbeef")

	resp, body := f.postInbound(t, form)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid signature", body["error"])
	assert.Empty(t, f.forwarder.sent)
}

func TestInboundUnknownRecipient(t *testing.T) {
	f := newFixture(t, &fakeClassifier{category: "Personal"}, &fakeForwarder{})

	resp, body := f.postInbound(t,
		signedForm("nobody@"+testDomain, "alice@example.org", "Hello", "tok-2"))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Recipient not found", body["error"])
}

func TestInboundForwardsAllowedEmail(t *testing.T) {
	fwd := &fakeForwarder{}
	f := newFixture(t, &fakeClassifier{category: "Personal"}, fwd)

	resp, body := f.postInbound(t,
		signedForm("mario@"+testDomain, "alice@example.org", "Hello", "tok-3"))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Email forwarded", body["message"])

	require.Len(t, fwd.sent, 1)
	assert.Equal(t, "mario@real-mail.com: [A test message] Hello", fwd.sent[0])
}

func TestInboundBlocksMatchingSender(t *testing.T) {
	fwd := &fakeForwarder{}
	f := newFixture(t, &fakeClassifier{category: "Personal"}, fwd)

	_, err := f.store.CreateRule(&core.Rule{
		UserID:  f.user.ID,
		Pattern: "alice@example.org",
		Type:    core.RuleTypeEmail,
		Action:  core.ActionBlock,
	})
	require.NoError(t, err)

	resp, body := f.postInbound(t,
		signedForm("mario@"+testDomain, "alice@example.org", "Hello", "tok-4"))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Email blocked", body["message"])
	assert.Empty(t, fwd.sent)
}

func TestInboundForwardFailureIsInternalError(t *testing.T) {
	fwd := &fakeForwarder{err: errors.New("relay down")}
	f := newFixture(t, &fakeClassifier{category: "Personal"}, fwd)

	resp, body := f.postInbound(t,
		signedForm("mario@"+testDomain, "alice@example.org", "Hello", "tok-5"))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Internal error", body["error"])
}

func TestInboundDuplicateTokenForwardsOnce(t *testing.T) {
	fwd := &fakeForwarder{}
	f := newFixture(t, &fakeClassifier{category: "Personal"}, fwd)

	form := signedForm("mario@"+testDomain, "alice@example.org", "Hello", "tok-6")
	resp, _ := f.postInbound(t, form)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, body := f.postInbound(t, form)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Email forwarded", body["message"])

	assert.Len(t, fwd.sent, 1)
}

func TestForwardBlockedEndpoint(t *testing.T) {
	fwd := &fakeForwarder{}
	f := newFixture(t, &fakeClassifier{category: "Spam"}, fwd)

	_, err := f.store.CreateRule(&core.Rule{
		UserID:  f.user.ID,
		Pattern: "spam",
		Type:    core.RuleTypeCategory,
		Action:  core.ActionBlock,
	})
	require.NoError(t, err)

	resp, _ := f.postInbound(t,
		signedForm("mario@"+testDomain, "alice@example.org", "Buy now", "tok-7"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Empty(t, fwd.sent)

	entry := lastEntry(t, f)

	reqBody, _ := json.Marshal(map[string]string{"user_id": f.user.ID})
	resp2, err := http.Post(f.srv.URL+"/logs/"+entry.ID+"/forward", "application/json",
		bytes.NewReader(reqBody))
	require.NoError(t, err)
	defer resp2.Body.Close()

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&body))
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
	assert.Equal(t, "Email forwarded", body["message"])
	require.Len(t, fwd.sent, 1)
	assert.Equal(t, "mario@real-mail.com: [Resend] Buy now", fwd.sent[0])

	updated, err := f.store.GetEntry(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusForwarded, updated.Status)
}

func TestForwardBlockedUnknownEntry(t *testing.T) {
	f := newFixture(t, &fakeClassifier{category: "Personal"}, &fakeForwarder{})

	reqBody, _ := json.Marshal(map[string]string{"user_id": f.user.ID})
	resp, err := http.Post(f.srv.URL+"/logs/missing/forward", "application/json",
		bytes.NewReader(reqBody))
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Log not found", body["error"])
}

func TestForwardBlockedForeignUser(t *testing.T) {
	fwd := &fakeForwarder{}
	f := newFixture(t, &fakeClassifier{category: "Spam"}, fwd)

	_, err := f.store.CreateRule(&core.Rule{
		UserID:  f.user.ID,
		Pattern: "spam",
		Type:    core.RuleTypeCategory,
		Action:  core.ActionBlock,
	})
	require.NoError(t, err)

	resp, _ := f.postInbound(t,
		signedForm("mario@"+testDomain, "alice@example.org", "Buy now", "tok-8"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entry := lastEntry(t, f)

	reqBody, _ := json.Marshal(map[string]string{"user_id": "someone-else"})
	resp2, err := http.Post(f.srv.URL+"/logs/"+entry.ID+"/forward", "application/json",
		bytes.NewReader(reqBody))
	require.NoError(t, err)
	defer resp2.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
	assert.Empty(t, fwd.sent)
}

func TestForwardBlockedMalformedBody(t *testing.T) {
	f := newFixture(t, &fakeClassifier{category: "Personal"}, &fakeForwarder{})

	resp, err := http.Post(f.srv.URL+"/logs/some-id/forward", "application/json",
		strings.NewReader("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	f := newFixture(t, &fakeClassifier{category: "Personal"}, &fakeForwarder{})

	resp, err := http.Get(f.srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

// lastEntry pulls the newest activity entry the scenario just created
func lastEntry(t *testing.T, f *fixture) *core.ActivityEntry {
	t.Helper()
	entries, err := f.store.ListEntries(context.Background(), f.user.ID)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	return &entries[0]
}

func sign(key, timestamp, token string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(timestamp + token))
	return hex.EncodeToString(mac.Sum(nil))
}
