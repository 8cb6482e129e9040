package core

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// GatewayService orchestrates one inbound-processing pass: recipient
// resolution, classification, disposition and the terminal forward-or-log
// step. Signature verification happens at the webhook boundary before the
// service is invoked.
type GatewayService struct {
	rules      RuleStore
	categories CategoryStore
	classifier Classifier
	forwarder  Forwarder
	activity   ActivityRecorder
	logger     *zap.Logger
}

// NewGatewayService creates a new gateway service
func NewGatewayService(
	rules RuleStore,
	categories CategoryStore,
	classifier Classifier,
	forwarder Forwarder,
	activity ActivityRecorder,
	logger *zap.Logger,
) *GatewayService {
	return &GatewayService{
		rules:      rules,
		categories: categories,
		classifier: classifier,
		forwarder:  forwarder,
		activity:   activity,
		logger:     logger,
	}
}

// ProcessInbound runs one message through the pipeline and returns the
// resulting activity entry. ErrUserNotFound means no user owns the
// recipient address and nothing was logged. A non-nil error alongside a
// non-nil entry means the entry is durable but forwarding failed; the
// caller should surface an internal error to the relay, which will retry.
func (s *GatewayService) ProcessInbound(ctx context.Context, email *InboundEmail) (*ActivityEntry, error) {
	user, err := s.rules.GetUserByAddress(ctx, email.Recipient)
	if err != nil {
		return nil, err
	}

	body := email.BodyPlain
	if body == "" {
		body = email.BodyHTML
	}
	cls, err := s.classifier.Classify(ctx, email.Subject, body)
	if err != nil {
		// The injected classifier falls back internally; an error here
		// means a miswired dependency, not a classification failure.
		return nil, fmt.Errorf("classifier broke its fallback contract: %w", err)
	}

	// Vocabulary bookkeeping never blocks disposition.
	if err := s.categories.EnsureCategory(ctx, cls.Category); err != nil {
		s.logger.Warn("Failed to record category",
			zap.String("category", cls.Category),
			zap.Error(err))
	}

	rules, err := s.rules.GetRulesForUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	disp := Decide(email.Sender, cls.Category, rules)

	logFields := []zap.Field{
		zap.String("sender", email.Sender),
		zap.String("user_id", user.ID),
		zap.String("category", cls.Category),
		zap.String("action", string(disp.Action)),
	}
	if disp.MatchedRule != nil {
		logFields = append(logFields,
			zap.String("rule_id", disp.MatchedRule.ID),
			zap.String("rule_type", string(disp.MatchedRule.Type)))
	}
	s.logger.Info("Disposition decided", logFields...)

	entry := &ActivityEntry{
		UserID:    user.ID,
		Sender:    email.Sender,
		Subject:   email.Subject,
		Summary:   cls.Summary,
		Category:  cls.Category,
		BodyHTML:  email.BodyHTML,
		BodyPlain: email.BodyPlain,
		MessageID: email.MessageID,
	}

	if disp.Action == ActionBlock {
		entry.Status = StatusBlocked
		recorded, _, err := s.activity.Record(ctx, entry)
		if err != nil {
			return nil, fmt.Errorf("failed to record blocked email: %w", err)
		}
		return recorded, nil
	}

	// Log before forwarding so the entry exists even if the send fails.
	entry.Status = StatusForwarded
	recorded, created, err := s.activity.Record(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("failed to record forwarded email: %w", err)
	}
	if !created {
		s.logger.Info("Duplicate delivery, skipping forward",
			zap.String("message_id", email.MessageID),
			zap.String("entry_id", recorded.ID))
		return recorded, nil
	}

	if err := s.forwarder.Forward(ctx, user.Email, email.Sender, cls.EnhancedSubject, email.BodyHTML, email.BodyPlain); err != nil {
		s.logger.Warn("Forward failed after log entry was written",
			zap.String("entry_id", recorded.ID),
			zap.Error(err))
		return recorded, fmt.Errorf("failed to forward email: %w", err)
	}

	return recorded, nil
}

// ForwardBlocked re-forwards a previously blocked message to its owner.
// Entries belonging to another user are reported as ErrEntryNotFound. An
// already-forwarded entry is a no-op success, so the operation is safe to
// retry. The status transition is blocked -> forwarded only.
func (s *GatewayService) ForwardBlocked(ctx context.Context, entryID, userID string) (*ActivityEntry, error) {
	entry, err := s.activity.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.UserID != userID {
		return nil, ErrEntryNotFound
	}
	if entry.Status == StatusForwarded {
		return entry, nil
	}

	user, err := s.rules.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.forwarder.Forward(ctx, user.Email, entry.Sender, "[Resend] "+entry.Subject, entry.BodyHTML, entry.BodyPlain); err != nil {
		return nil, fmt.Errorf("failed to re-forward email: %w", err)
	}

	if err := s.activity.MarkForwarded(ctx, entry.ID); err != nil {
		return nil, fmt.Errorf("failed to update entry status: %w", err)
	}

	s.logger.Info("Blocked email re-forwarded",
		zap.String("entry_id", entry.ID),
		zap.String("user_id", userID))

	entry.Status = StatusForwarded
	return entry, nil
}
