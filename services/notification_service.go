package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"github.com/bunzstudio/storefront-backend/models"
	"github.com/bunzstudio/storefront-backend/repository"
	"github.com/bunzstudio/storefront-backend/sender"

	"go.uber.org/zap"
)

// NotificationService sends the order confirmation email. It is the
// terminal consumer of order-placed events: every outcome, including
// failure, ends here with a log record and never propagates upstream.
type NotificationService struct {
	users       repository.UserRepository
	emailSender sender.EmailSender
	logs        repository.NotificationRepository
	tmpl        *template.Template
	logger      *zap.Logger
}

// NewNotificationService parses the confirmation template up front so a
// broken template fails startup, not the first order.
func NewNotificationService(
	users repository.UserRepository,
	emailSender sender.EmailSender,
	logs repository.NotificationRepository,
	templatePath string,
	logger *zap.Logger,
) (*NotificationService, error) {
	tmpl, err := template.ParseFiles(templatePath)
	if err != nil {
		return nil, fmt.Errorf("parse order confirmation template: %w", err)
	}
	return &NotificationService{
		users:       users,
		emailSender: emailSender,
		logs:        logs,
		tmpl:        tmpl,
		logger:      logger,
	}, nil
}

type confirmationData struct {
	BuyerName   string
	OrderRef    string
	Items       []models.PlacedItem
	TotalAmount float64
	Shipping    *models.ShippingAddress
	PlacedAt    string
}

// HandleOrderPlaced sends the confirmation for one materialized order,
// honoring the buyer's opt-out. It never returns an error: delivery is
// best-effort and the order must stand regardless.
func (s *NotificationService) HandleOrderPlaced(ctx context.Context, evt models.OrderPlacedEvent) {
	log := s.logger.With(
		zap.String("order_ref", evt.OrderRef),
		zap.String("recipient", evt.BuyerEmail),
	)

	if evt.BuyerEmail == "" {
		log.Warn("order has no buyer email, skipping confirmation")
		s.record(ctx, evt, models.StatusSkipped, "no recipient email")
		return
	}

	prefs := models.DefaultEmailPreferences()
	user, err := s.users.FindByEmail(ctx, evt.BuyerEmail)
	switch {
	case err == nil:
		prefs = user.EmailPreferences
	case errors.Is(err, repository.ErrNotFound):
		// Guest checkout; signup defaults apply.
	default:
		log.Warn("preference lookup failed, using defaults", zap.Error(err))
	}

	if !prefs.OrderUpdates {
		log.Info("buyer opted out of order updates, skipping confirmation")
		s.record(ctx, evt, models.StatusSkipped, "order updates disabled")
		return
	}

	name := evt.BuyerName
	if name == "" {
		name = "there"
	}
	var body bytes.Buffer
	err = s.tmpl.Execute(&body, confirmationData{
		BuyerName:   name,
		OrderRef:    evt.OrderRef,
		Items:       evt.Items,
		TotalAmount: evt.TotalAmount,
		Shipping:    evt.Shipping,
		PlacedAt:    evt.PlacedAt.Format("2 Jan 2006 15:04 MST"),
	})
	if err != nil {
		log.Error("confirmation template render failed", zap.Error(err))
		s.record(ctx, evt, models.StatusFailed, err.Error())
		return
	}

	subject := fmt.Sprintf("Your Bunz Studio order %s is confirmed", evt.OrderRef)
	result, err := s.emailSender.SendEmail(ctx, evt.BuyerEmail, subject, body.String())
	if err != nil {
		log.Error("confirmation email send failed", zap.Error(err))
		s.record(ctx, evt, models.StatusFailed, err.Error())
		return
	}

	log.Info("order confirmation sent", zap.String("message_id", result.MessageID))
	s.record(ctx, evt, models.StatusSent, "")
}

// record persists the delivery outcome. The audit log is itself
// best-effort; a write failure only logs.
func (s *NotificationService) record(ctx context.Context, evt models.OrderPlacedEvent, status, errMsg string) {
	if s.logs == nil {
		return
	}
	entry := &models.NotificationLog{
		OrderRef:  evt.OrderRef,
		Recipient: evt.BuyerEmail,
		Type:      models.TypeOrderConfirmation,
		Channel:   models.ChannelEmail,
		Status:    status,
		Error:     errMsg,
	}
	if err := s.logs.SaveLog(ctx, entry); err != nil {
		s.logger.Warn("notification log write failed",
			zap.String("order_ref", evt.OrderRef),
			zap.Error(err))
	}
}

// GetLogs exposes the delivery audit trail to operators.
func (s *NotificationService) GetLogs(ctx context.Context, filter models.NotificationFilter) ([]models.NotificationLog, int64, *ServiceError) {
	if s.logs == nil {
		return nil, 0, NewServiceError(http.StatusServiceUnavailable, "notification log storage is not configured")
	}
	entries, total, err := s.logs.GetLogs(ctx, filter)
	if err != nil {
		s.logger.Error("notification log query failed", zap.Error(err))
		return nil, 0, NewServiceError(http.StatusInternalServerError, "notification log query failed")
	}
	return entries, total, nil
}
