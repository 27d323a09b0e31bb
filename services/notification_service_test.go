package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bunzstudio/storefront-backend/models"
	"github.com/bunzstudio/storefront-backend/sender"
	"github.com/bunzstudio/storefront-backend/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testTemplatePath = "../templates/order_confirmation.html"

// ---- fake email sender ----

type fakeEmailSender struct {
	sent    []sentMail
	sendErr error
}

type sentMail struct {
	to      string
	subject string
	body    string
}

func (s *fakeEmailSender) SendEmail(_ context.Context, to, subject, body string) (sender.SendResult, error) {
	if s.sendErr != nil {
		return sender.SendResult{}, s.sendErr
	}
	s.sent = append(s.sent, sentMail{to: to, subject: subject, body: body})
	return sender.SendResult{MessageID: "msg-1", SentAt: time.Now()}, nil
}

// ---- fake notification log ----

type fakeNotificationLog struct {
	entries []models.NotificationLog
	saveErr error
}

func (l *fakeNotificationLog) SaveLog(_ context.Context, entry *models.NotificationLog) error {
	if l.saveErr != nil {
		return l.saveErr
	}
	l.entries = append(l.entries, *entry)
	return nil
}

func (l *fakeNotificationLog) GetLogs(_ context.Context, _ models.NotificationFilter) ([]models.NotificationLog, int64, error) {
	return l.entries, int64(len(l.entries)), nil
}

// ---- helpers ----

func orderPlacedEvent() models.OrderPlacedEvent {
	return models.OrderPlacedEvent{
		Type:        models.EventTypeOrderPlaced,
		OrderID:     "65fa0",
		OrderRef:    "ORD-1700000000000-0042",
		SessionID:   "cs_1",
		BuyerEmail:  "jess@example.com",
		BuyerName:   "Jess",
		TotalAmount: 40.00,
		Items: []models.PlacedItem{
			{Name: "Poster A", Quantity: 2, Price: 20.00},
		},
		Shipping: &models.ShippingAddress{
			Address:    "1 Studio Lane",
			City:       "Kuala Lumpur",
			PostalCode: "50000",
			Country:    "MY",
		},
		PlacedAt: time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC),
	}
}

func newNotificationService(t *testing.T, users *fakeUserRepo, email *fakeEmailSender, logs *fakeNotificationLog) *services.NotificationService {
	t.Helper()
	svc, err := services.NewNotificationService(users, email, logs, testTemplatePath, zap.NewNop())
	require.NoError(t, err)
	return svc
}

// ---- tests ----

func TestHandleOrderPlaced_SendsConfirmation(t *testing.T) {
	users := newFakeUserRepo(models.User{
		Email:            "jess@example.com",
		EmailPreferences: models.DefaultEmailPreferences(),
	})
	email := &fakeEmailSender{}
	logs := &fakeNotificationLog{}
	svc := newNotificationService(t, users, email, logs)

	svc.HandleOrderPlaced(context.Background(), orderPlacedEvent())

	require.Len(t, email.sent, 1)
	assert.Equal(t, "jess@example.com", email.sent[0].to)
	assert.Contains(t, email.sent[0].subject, "ORD-1700000000000-0042")
	assert.Contains(t, email.sent[0].body, "Poster A")
	assert.Contains(t, email.sent[0].body, "RM 40.00")

	require.Len(t, logs.entries, 1)
	assert.Equal(t, models.StatusSent, logs.entries[0].Status)
	assert.Equal(t, models.TypeOrderConfirmation, logs.entries[0].Type)
}

func TestHandleOrderPlaced_RespectsOptOut(t *testing.T) {
	prefs := models.DefaultEmailPreferences()
	prefs.OrderUpdates = false
	users := newFakeUserRepo(models.User{Email: "jess@example.com", EmailPreferences: prefs})
	email := &fakeEmailSender{}
	logs := &fakeNotificationLog{}
	svc := newNotificationService(t, users, email, logs)

	svc.HandleOrderPlaced(context.Background(), orderPlacedEvent())

	assert.Empty(t, email.sent)
	require.Len(t, logs.entries, 1)
	assert.Equal(t, models.StatusSkipped, logs.entries[0].Status)
}

func TestHandleOrderPlaced_GuestGetsDefaults(t *testing.T) {
	users := newFakeUserRepo() // no account for the buyer
	email := &fakeEmailSender{}
	logs := &fakeNotificationLog{}
	svc := newNotificationService(t, users, email, logs)

	svc.HandleOrderPlaced(context.Background(), orderPlacedEvent())

	require.Len(t, email.sent, 1)
}

func TestHandleOrderPlaced_SendFailureIsRecordedNotRaised(t *testing.T) {
	users := newFakeUserRepo()
	email := &fakeEmailSender{sendErr: errors.New("smtp timeout")}
	logs := &fakeNotificationLog{}
	svc := newNotificationService(t, users, email, logs)

	// Must not panic or propagate; the order already stands.
	svc.HandleOrderPlaced(context.Background(), orderPlacedEvent())

	assert.Empty(t, email.sent)
	require.Len(t, logs.entries, 1)
	assert.Equal(t, models.StatusFailed, logs.entries[0].Status)
	assert.Contains(t, logs.entries[0].Error, "smtp timeout")
}

func TestHandleOrderPlaced_NoRecipient(t *testing.T) {
	users := newFakeUserRepo()
	email := &fakeEmailSender{}
	logs := &fakeNotificationLog{}
	svc := newNotificationService(t, users, email, logs)

	evt := orderPlacedEvent()
	evt.BuyerEmail = ""
	svc.HandleOrderPlaced(context.Background(), evt)

	assert.Empty(t, email.sent)
	require.Len(t, logs.entries, 1)
	assert.Equal(t, models.StatusSkipped, logs.entries[0].Status)
}

func TestHandleOrderPlaced_LogWriteFailureOnlyLogs(t *testing.T) {
	users := newFakeUserRepo()
	email := &fakeEmailSender{}
	logs := &fakeNotificationLog{saveErr: errors.New("pg down")}
	svc := newNotificationService(t, users, email, logs)

	svc.HandleOrderPlaced(context.Background(), orderPlacedEvent())

	require.Len(t, email.sent, 1)
}

func TestNewNotificationService_BadTemplate(t *testing.T) {
	_, err := services.NewNotificationService(newFakeUserRepo(), &fakeEmailSender{}, nil, "does-not-exist.html", zap.NewNop())
	require.Error(t, err)
}
