// Package notification implements transition and staleness alerting.
//
// Alerts land in an in-app inbox (Postgres rows); an external delivery
// collaborator interface covers push channels. Delivery is best-effort:
// failures are logged and never surfaced to the transition caller.
package notification

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dealpipe.io/dealpipe/internal/domain"
	"dealpipe.io/dealpipe/internal/pkg/logger"
	"dealpipe.io/dealpipe/internal/repository"
)

// Notification type constants.
const (
	TypeStageTransition = "STAGE_TRANSITION"
	TypeStaleDeal       = "STALE_DEAL"
	TypeWIPOverride     = "WIP_OVERRIDE"
)

// Params holds the required fields for creating a notification.
type Params struct {
	RecipientID  string // User ID of the recipient
	Type         string // One of Type* constants above
	Title        string // Human-readable title
	Message      string // Body text
	ResourceType string // e.g. "deal"
	ResourceID   string // ID of the related resource for navigation
}

// Sender defines the interface for sending notifications.
type Sender interface {
	// Send creates a notification for a single recipient.
	Send(ctx context.Context, params Params) error

	// SendToMany creates notifications for multiple recipients.
	// Best-effort: logs errors but does not abort on individual failures.
	SendToMany(ctx context.Context, recipientIDs []string, params Params) error
}

// Deliverer is the external delivery collaborator (email, chat, webhook).
// Failure is non-fatal.
type Deliverer interface {
	Deliver(ctx context.Context, recipient, subject, body string) error
}

// LogDeliverer writes deliveries to the service log. Stands in until a
// real push channel is wired.
type LogDeliverer struct{}

// Deliver logs the outbound message.
func (LogDeliverer) Deliver(_ context.Context, recipient, subject, body string) error {
	logger.Info("external notification delivery",
		zap.String("recipient", recipient),
		zap.String("subject", subject),
		zap.String("body", body),
	)
	return nil
}

// InboxSender writes notifications to the database inbox.
type InboxSender struct {
	repo *repository.NotificationRepo
}

// NewInboxSender creates a new inbox sender.
func NewInboxSender(repo *repository.NotificationRepo) *InboxSender {
	return &InboxSender{repo: repo}
}

// Send stores a single notification to the database.
func (s *InboxSender) Send(ctx context.Context, params Params) error {
	if err := validateParams(params); err != nil {
		return fmt.Errorf("notification params invalid: %w", err)
	}

	err := s.repo.Insert(ctx, &domain.Notification{
		ID:           uuid.NewString(),
		Recipient:    params.RecipientID,
		Type:         params.Type,
		Title:        params.Title,
		Message:      params.Message,
		ResourceType: params.ResourceType,
		ResourceID:   params.ResourceID,
	})
	if err != nil {
		return fmt.Errorf("create notification for user %s: %w", params.RecipientID, err)
	}

	logger.Debug("notification sent",
		zap.String("recipient", params.RecipientID),
		zap.String("type", params.Type),
		zap.String("title", params.Title),
	)

	return nil
}

// SendToMany creates notifications for multiple recipients (best-effort).
// Failures are logged but do not prevent delivery to other recipients.
func (s *InboxSender) SendToMany(ctx context.Context, recipientIDs []string, params Params) error {
	if len(recipientIDs) == 0 {
		return nil
	}

	var failCount int
	for _, recipientID := range recipientIDs {
		p := params
		p.RecipientID = recipientID
		if err := s.Send(ctx, p); err != nil {
			failCount++
			logger.Error("notification delivery failed",
				zap.String("recipient", recipientID),
				zap.String("type", params.Type),
				zap.Error(err),
			)
		}
	}

	if failCount > 0 {
		return fmt.Errorf("notification delivery failed for %d/%d recipients", failCount, len(recipientIDs))
	}
	return nil
}

// compile-time check
var _ Sender = (*InboxSender)(nil)

func validateParams(p Params) error {
	if p.RecipientID == "" {
		return fmt.Errorf("recipient_id is required")
	}
	if p.Title == "" {
		return fmt.Errorf("title is required")
	}
	if p.Message == "" {
		return fmt.Errorf("message is required")
	}
	return nil
}
