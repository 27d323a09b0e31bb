package services

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/bunzstudio/storefront-backend/models"

	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"
)

// EventRouter turns verified webhook events into the typed checkout event
// the materializer consumes. Everything that is not a paid
// checkout.session.completed is acknowledged and dropped here.
type EventRouter struct {
	provider PaymentProvider
	logger   *zap.Logger
}

func NewEventRouter(provider PaymentProvider, logger *zap.Logger) *EventRouter {
	return &EventRouter{provider: provider, logger: logger}
}

// Route returns a non-nil CheckoutEvent only for actionable events. A nil
// event with a nil error means the delivery was recognized but requires no
// work; the caller acknowledges it so the processor stops retrying.
func (r *EventRouter) Route(ctx context.Context, event stripe.Event) (*models.CheckoutEvent, *ServiceError) {
	switch event.Type {
	case "checkout.session.completed":
		return r.routeCheckoutCompleted(ctx, event)
	case "payment_intent.succeeded", "payment_intent.payment_failed", "charge.succeeded", "charge.updated":
		// Observed alongside checkout completion; the session event is the
		// single materialization trigger.
		r.logger.Debug("webhook event acknowledged without action",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID))
		return nil, nil
	default:
		r.logger.Info("unhandled webhook event type",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID))
		return nil, nil
	}
}

func (r *EventRouter) routeCheckoutCompleted(ctx context.Context, event stripe.Event) (*models.CheckoutEvent, *ServiceError) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		r.logger.Error("malformed checkout.session.completed payload",
			zap.String("event_id", event.ID),
			zap.Error(err))
		return nil, NewServiceError(http.StatusBadRequest, "malformed event payload")
	}

	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		// Async payment methods complete the session before the charge
		// settles; a later delivery carries the paid status.
		r.logger.Info("checkout session completed without settled payment",
			zap.String("session_id", sess.ID),
			zap.String("payment_status", string(sess.PaymentStatus)))
		return nil, nil
	}

	checkout := &models.CheckoutEvent{
		SessionID:     sess.ID,
		PaymentStatus: string(sess.PaymentStatus),
		PaymentMethod: paymentMethodLabel(sess.PaymentMethodTypes),
	}

	if sess.Metadata != nil {
		checkout.OrderRef = sess.Metadata["order_id"]
	}
	if checkout.OrderRef == "" {
		r.logger.Warn("checkout session carries no order ref",
			zap.String("session_id", sess.ID))
	}

	if sess.CustomerDetails != nil {
		checkout.BuyerEmail = sess.CustomerDetails.Email
		checkout.BuyerName = sess.CustomerDetails.Name
		checkout.Billing = addressFrom(sess.CustomerDetails.Address)
	}
	if checkout.BuyerEmail == "" {
		checkout.BuyerEmail = sess.CustomerEmail
	}
	if sess.ShippingDetails != nil {
		checkout.Shipping = addressFrom(sess.ShippingDetails.Address)
	}

	if sess.LineItems != nil && len(sess.LineItems.Data) > 0 {
		for _, li := range sess.LineItems.Data {
			checkout.LineItems = append(checkout.LineItems, models.CheckoutLineItem{
				Description: li.Description,
				Quantity:    li.Quantity,
				AmountTotal: li.AmountTotal,
			})
		}
		return checkout, nil
	}

	// Session payloads omit line items; fetch them before handing over.
	items, err := r.provider.ListLineItems(ctx, sess.ID)
	if err != nil {
		r.logger.Error("line item fetch failed, leaving delivery unacknowledged",
			zap.String("session_id", sess.ID),
			zap.Error(err))
		return nil, NewServiceError(http.StatusInternalServerError, "unable to fetch session line items")
	}
	checkout.LineItems = items
	return checkout, nil
}

func paymentMethodLabel(types []string) string {
	if len(types) == 0 {
		return "Card"
	}
	switch types[0] {
	case "card":
		return "Card"
	case "fpx":
		return "FPX"
	case "grabpay":
		return "GrabPay"
	default:
		return strings.ToUpper(types[0][:1]) + types[0][1:]
	}
}

func addressFrom(addr *stripe.Address) *models.ShippingAddress {
	if addr == nil {
		return nil
	}
	line := addr.Line1
	if addr.Line2 != "" {
		line += ", " + addr.Line2
	}
	return &models.ShippingAddress{
		Address:    line,
		City:       addr.City,
		PostalCode: addr.PostalCode,
		Country:    addr.Country,
	}
}
