package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/bunzstudio/storefront-backend/models"
	"github.com/bunzstudio/storefront-backend/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"
)

// ---- fake payment provider ----

type fakeProvider struct {
	sessionRef *services.CheckoutSessionRef
	createErr  error
	lineItems  []models.CheckoutLineItem
	listErr    error
	listCalls  int
}

func (p *fakeProvider) CreateCheckoutSession(_ context.Context, _ services.SessionInput) (*services.CheckoutSessionRef, error) {
	return p.sessionRef, p.createErr
}

func (p *fakeProvider) ListLineItems(_ context.Context, _ string) ([]models.CheckoutLineItem, error) {
	p.listCalls++
	return p.lineItems, p.listErr
}

// ---- helpers ----

func checkoutCompletedEvent(t *testing.T, session map[string]interface{}) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(session)
	require.NoError(t, err)
	return stripe.Event{
		ID:   "evt_1",
		Type: "checkout.session.completed",
		Data: &stripe.EventData{Raw: raw},
	}
}

func paidSessionPayload() map[string]interface{} {
	return map[string]interface{}{
		"id":             "cs_1",
		"payment_status": "paid",
		"metadata":       map[string]string{"order_id": "ORD-1700000000000-0042"},
		"customer_details": map[string]interface{}{
			"email": "jess@example.com",
			"name":  "Jess",
			"address": map[string]string{
				"line1":       "9 Billing Road",
				"city":        "Penang",
				"postal_code": "10000",
				"country":     "MY",
			},
		},
		"shipping_details": map[string]interface{}{
			"address": map[string]string{
				"line1":       "1 Studio Lane",
				"line2":       "Unit 4",
				"city":        "Kuala Lumpur",
				"postal_code": "50000",
				"country":     "MY",
			},
		},
		"payment_method_types": []string{"fpx"},
	}
}

// ---- tests ----

func TestRoute_IgnoresUnrelatedEvents(t *testing.T) {
	router := services.NewEventRouter(&fakeProvider{}, zap.NewNop())

	for _, eventType := range []string{"payment_intent.succeeded", "charge.updated", "invoice.created"} {
		checkout, svcErr := router.Route(context.Background(), stripe.Event{
			ID:   "evt_x",
			Type: stripe.EventType(eventType),
			Data: &stripe.EventData{Raw: json.RawMessage(`{}`)},
		})
		assert.Nil(t, svcErr, eventType)
		assert.Nil(t, checkout, eventType)
	}
}

func TestRoute_IgnoresUnpaidSession(t *testing.T) {
	router := services.NewEventRouter(&fakeProvider{}, zap.NewNop())

	payload := paidSessionPayload()
	payload["payment_status"] = "unpaid"

	checkout, svcErr := router.Route(context.Background(), checkoutCompletedEvent(t, payload))

	assert.Nil(t, svcErr)
	assert.Nil(t, checkout)
}

func TestRoute_FetchesLineItems(t *testing.T) {
	provider := &fakeProvider{
		lineItems: []models.CheckoutLineItem{
			{Description: "Poster A", Quantity: 2, AmountTotal: 4000},
		},
	}
	router := services.NewEventRouter(provider, zap.NewNop())

	checkout, svcErr := router.Route(context.Background(), checkoutCompletedEvent(t, paidSessionPayload()))

	require.Nil(t, svcErr)
	require.NotNil(t, checkout)
	assert.Equal(t, 1, provider.listCalls)
	assert.Equal(t, "cs_1", checkout.SessionID)
	assert.Equal(t, "ORD-1700000000000-0042", checkout.OrderRef)
	assert.Equal(t, "jess@example.com", checkout.BuyerEmail)
	assert.Equal(t, "FPX", checkout.PaymentMethod)
	require.Len(t, checkout.LineItems, 1)
	assert.Equal(t, int64(4000), checkout.LineItems[0].AmountTotal)

	require.NotNil(t, checkout.Shipping)
	assert.Equal(t, "1 Studio Lane, Unit 4", checkout.Shipping.Address)
	require.NotNil(t, checkout.Billing)
	assert.Equal(t, "9 Billing Road", checkout.Billing.Address)
}

func TestRoute_UsesEmbeddedLineItems(t *testing.T) {
	provider := &fakeProvider{listErr: errors.New("should not be called")}
	router := services.NewEventRouter(provider, zap.NewNop())

	payload := paidSessionPayload()
	payload["line_items"] = map[string]interface{}{
		"data": []map[string]interface{}{
			{"description": "Poster A", "quantity": 2, "amount_total": 4000},
		},
	}

	checkout, svcErr := router.Route(context.Background(), checkoutCompletedEvent(t, payload))

	require.Nil(t, svcErr)
	require.NotNil(t, checkout)
	assert.Equal(t, 0, provider.listCalls)
	require.Len(t, checkout.LineItems, 1)
	assert.Equal(t, "Poster A", checkout.LineItems[0].Description)
}

func TestRoute_LineItemFetchFailureIsRetryable(t *testing.T) {
	provider := &fakeProvider{listErr: errors.New("stripe unavailable")}
	router := services.NewEventRouter(provider, zap.NewNop())

	checkout, svcErr := router.Route(context.Background(), checkoutCompletedEvent(t, paidSessionPayload()))

	require.Nil(t, checkout)
	require.NotNil(t, svcErr)
	// 5xx keeps the processor retrying; the delivery is not lost.
	assert.Equal(t, 500, svcErr.StatusCode)
}

func TestRoute_MalformedPayload(t *testing.T) {
	router := services.NewEventRouter(&fakeProvider{}, zap.NewNop())

	_, svcErr := router.Route(context.Background(), stripe.Event{
		ID:   "evt_bad",
		Type: "checkout.session.completed",
		Data: &stripe.EventData{Raw: json.RawMessage(`{"id":`)},
	})

	require.NotNil(t, svcErr)
	assert.Equal(t, 400, svcErr.StatusCode)
}

func TestRoute_MissingOrderRefStillActionable(t *testing.T) {
	provider := &fakeProvider{
		lineItems: []models.CheckoutLineItem{
			{Description: "Poster A", Quantity: 1, AmountTotal: 2000},
		},
	}
	router := services.NewEventRouter(provider, zap.NewNop())

	payload := paidSessionPayload()
	delete(payload, "metadata")

	checkout, svcErr := router.Route(context.Background(), checkoutCompletedEvent(t, payload))

	require.Nil(t, svcErr)
	require.NotNil(t, checkout)
	assert.Empty(t, checkout.OrderRef)
}
