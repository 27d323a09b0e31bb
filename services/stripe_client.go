package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bunzstudio/storefront-backend/models"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/client"
	"github.com/stripe/stripe-go/v80/webhook"
)

// SessionItem is one cart line passed to the payment processor.
type SessionItem struct {
	Name        string
	Description string
	Image       string
	Amount      int64 // minor currency units
	Quantity    int64
}

// SessionInput is everything the processor needs to host a checkout.
type SessionInput struct {
	Items      []SessionItem
	Email      string
	OrderRef   string
	Currency   string
	SuccessURL string
	CancelURL  string
}

// CheckoutSessionRef is the handle the storefront redirects the buyer to.
type CheckoutSessionRef struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// PaymentProvider is the outbound surface of the external payment
// processor. Tests substitute a fake.
type PaymentProvider interface {
	CreateCheckoutSession(ctx context.Context, input SessionInput) (*CheckoutSessionRef, error)
	ListLineItems(ctx context.Context, sessionID string) ([]models.CheckoutLineItem, error)
}

// WebhookVerifier authenticates inbound webhook deliveries.
type WebhookVerifier interface {
	VerifyWebhook(payload []byte, sigHeader string) (stripe.Event, error)
	VerificationDisabled() bool
}

// StripeService wraps an explicitly constructed Stripe client. The global
// stripe.Key singleton is deliberately not used so tests and multi-tenant
// setups can hold independent clients.
type StripeService struct {
	api           *client.API
	webhookSecret string
}

func NewStripeService(secretKey, webhookSecret string) *StripeService {
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	})
	api := &client.API{}
	api.Init(secretKey, &stripe.Backends{API: backend, Connect: backend, Uploads: backend})

	return &StripeService{api: api, webhookSecret: webhookSecret}
}

var shippingCountries = []string{"MY", "SG", "US", "GB", "AU", "JP", "KR", "CN", "TH"}

// CreateCheckoutSession requests a hosted payment session, embedding the
// order correlation ref in the session metadata.
func (s *StripeService) CreateCheckoutSession(ctx context.Context, input SessionInput) (*CheckoutSessionRef, error) {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(input.Items))
	for _, item := range input.Items {
		productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(item.Name),
		}
		if item.Description != "" {
			productData.Description = stripe.String(item.Description)
		}
		if item.Image != "" {
			productData.Images = stripe.StringSlice([]string{item.Image})
		}

		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(input.Currency),
				ProductData: productData,
				UnitAmount:  stripe.Int64(item.Amount),
			},
			Quantity: stripe.Int64(item.Quantity),
		})
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card", "fpx", "grabpay"}),
		LineItems:          lineItems,
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		Locale:             stripe.String("auto"),
		ShippingAddressCollection: &stripe.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: stripe.StringSlice(shippingCountries),
		},
		BillingAddressCollection: stripe.String("required"),
		SubmitType:               stripe.String("pay"),
		SuccessURL:               stripe.String(input.SuccessURL),
		CancelURL:                stripe.String(input.CancelURL),
		CustomerEmail:            stripe.String(input.Email),
		CustomerCreation:         stripe.String("always"),
		PhoneNumberCollection: &stripe.CheckoutSessionPhoneNumberCollectionParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("order_id", input.OrderRef)

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &CheckoutSessionRef{ID: sess.ID, URL: sess.URL}, nil
}

// ListLineItems fetches the purchased lines for a session. Webhook payloads
// do not include line items, so the router calls this during routing.
func (s *StripeService) ListLineItems(ctx context.Context, sessionID string) ([]models.CheckoutLineItem, error) {
	params := &stripe.CheckoutSessionListLineItemsParams{
		Session: stripe.String(sessionID),
	}
	params.Context = ctx

	var items []models.CheckoutLineItem
	iter := s.api.CheckoutSessions.ListLineItems(params)
	for iter.Next() {
		li := iter.LineItem()
		items = append(items, models.CheckoutLineItem{
			Description: li.Description,
			Quantity:    li.Quantity,
			AmountTotal: li.AmountTotal,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list session line items: %w", err)
	}
	return items, nil
}

// VerifyWebhook authenticates a raw delivery against the shared secret and
// fails closed on mismatch. With no secret configured it only parses the
// body; callers must treat that mode as insecure and log it as such.
func (s *StripeService) VerifyWebhook(payload []byte, sigHeader string) (stripe.Event, error) {
	if s.webhookSecret == "" {
		var event stripe.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			return event, fmt.Errorf("parse webhook payload: %w", err)
		}
		return event, nil
	}
	return webhook.ConstructEvent(payload, sigHeader, s.webhookSecret)
}

// VerificationDisabled reports whether the insecure parse-only mode is
// active.
func (s *StripeService) VerificationDisabled() bool {
	return s.webhookSecret == ""
}
