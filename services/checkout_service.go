package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"
)

var validate = validator.New()

// CheckoutItemRequest is one cart line as submitted by the storefront.
// Amount is the unit price in minor currency units.
type CheckoutItemRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Quantity    int64  `json:"quantity" validate:"required,gt=0"`
}

type CheckoutRequest struct {
	Items []CheckoutItemRequest `json:"items" validate:"required,min=1,dive"`
	Email string                `json:"email" validate:"required,email"`
}

// CheckoutResponse hands the storefront the hosted session plus the order
// ref it can show the buyer while payment is pending.
type CheckoutResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
	OrderRef  string `json:"order_ref"`
}

// CheckoutService initiates hosted checkout sessions.
type CheckoutService struct {
	provider  PaymentProvider
	clientURL string
	currency  string
	logger    *zap.Logger
}

func NewCheckoutService(provider PaymentProvider, clientURL, currency string, logger *zap.Logger) *CheckoutService {
	return &CheckoutService{
		provider:  provider,
		clientURL: clientURL,
		currency:  currency,
		logger:    logger,
	}
}

// newOrderRef mints the human-readable correlation ref embedded in the
// session metadata. Uniqueness is enforced by the order index, not here.
func newOrderRef() string {
	return fmt.Sprintf("ORD-%d-%04d", time.Now().UnixMilli(), rand.Intn(10000))
}

// CreateSession validates the cart and opens a hosted payment session with
// the correlation ref threaded through the processor metadata.
func (s *CheckoutService) CreateSession(ctx context.Context, req *CheckoutRequest) (*CheckoutResponse, *ServiceError) {
	if err := validate.Struct(req); err != nil {
		return nil, NewServiceError(http.StatusBadRequest, err.Error())
	}

	orderRef := newOrderRef()
	input := SessionInput{
		Email:      req.Email,
		OrderRef:   orderRef,
		Currency:   s.currency,
		SuccessURL: s.clientURL + "/payment-success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  s.clientURL + "/products",
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, SessionItem{
			Name:        item.Name,
			Description: item.Description,
			Image:       item.Image,
			Amount:      item.Amount,
			Quantity:    item.Quantity,
		})
	}

	ref, err := s.provider.CreateCheckoutSession(ctx, input)
	if err != nil {
		s.logger.Error("checkout session creation failed",
			zap.String("order_ref", orderRef),
			zap.String("email", req.Email),
			zap.Error(err))
		return nil, checkoutProviderError(err)
	}

	s.logger.Info("checkout session created",
		zap.String("session_id", ref.ID),
		zap.String("order_ref", orderRef),
		zap.Int("items", len(req.Items)))

	return &CheckoutResponse{SessionID: ref.ID, URL: ref.URL, OrderRef: orderRef}, nil
}

// checkoutProviderError keeps processor rejections of bad cart data
// client-visible while masking transport failures.
func checkoutProviderError(err error) *ServiceError {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode >= 400 && stripeErr.HTTPStatusCode < 500 {
		return NewServiceError(http.StatusBadRequest, stripeErr.Msg)
	}
	return NewServiceError(http.StatusBadGateway, "payment processor unavailable")
}
