package services_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/bunzstudio/storefront-backend/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type capturingProvider struct {
	fakeProvider
	input services.SessionInput
}

func (p *capturingProvider) CreateCheckoutSession(_ context.Context, input services.SessionInput) (*services.CheckoutSessionRef, error) {
	p.input = input
	return p.sessionRef, p.createErr
}

func validCheckoutRequest() *services.CheckoutRequest {
	return &services.CheckoutRequest{
		Email: "jess@example.com",
		Items: []services.CheckoutItemRequest{
			{Name: "Poster A", Description: "A3 print", Amount: 2000, Quantity: 2},
		},
	}
}

func TestCreateSession_Success(t *testing.T) {
	provider := &capturingProvider{}
	provider.sessionRef = &services.CheckoutSessionRef{ID: "cs_1", URL: "https://checkout.example/cs_1"}
	svc := services.NewCheckoutService(provider, "http://localhost:3000", "myr", zap.NewNop())

	resp, svcErr := svc.CreateSession(context.Background(), validCheckoutRequest())

	require.Nil(t, svcErr)
	assert.Equal(t, "cs_1", resp.SessionID)
	assert.Equal(t, "https://checkout.example/cs_1", resp.URL)
	assert.Regexp(t, regexp.MustCompile(`^ORD-\d+-\d{4}$`), resp.OrderRef)

	// The correlation ref handed back to the storefront is the one threaded
	// through the processor metadata.
	assert.Equal(t, resp.OrderRef, provider.input.OrderRef)
	assert.Equal(t, "myr", provider.input.Currency)
	assert.Equal(t, "jess@example.com", provider.input.Email)
	assert.Contains(t, provider.input.SuccessURL, "{CHECKOUT_SESSION_ID}")
	require.Len(t, provider.input.Items, 1)
	assert.Equal(t, int64(2000), provider.input.Items[0].Amount)
}

func TestCreateSession_UniqueRefs(t *testing.T) {
	provider := &capturingProvider{}
	provider.sessionRef = &services.CheckoutSessionRef{ID: "cs_1"}
	svc := services.NewCheckoutService(provider, "http://localhost:3000", "myr", zap.NewNop())

	seen := make(map[string]bool)
	for i := 0; i < 25; i++ {
		resp, svcErr := svc.CreateSession(context.Background(), validCheckoutRequest())
		require.Nil(t, svcErr)
		assert.False(t, seen[resp.OrderRef], "duplicate order ref %s", resp.OrderRef)
		seen[resp.OrderRef] = true
	}
}

func TestCreateSession_ValidationFailures(t *testing.T) {
	svc := services.NewCheckoutService(&capturingProvider{}, "http://localhost:3000", "myr", zap.NewNop())

	cases := map[string]*services.CheckoutRequest{
		"empty cart":        {Email: "jess@example.com"},
		"missing email":     {Items: validCheckoutRequest().Items},
		"bad email":         {Email: "not-an-email", Items: validCheckoutRequest().Items},
		"zero quantity":     {Email: "jess@example.com", Items: []services.CheckoutItemRequest{{Name: "Poster A", Amount: 2000}}},
		"negative amount":   {Email: "jess@example.com", Items: []services.CheckoutItemRequest{{Name: "Poster A", Amount: -1, Quantity: 1}}},
		"item without name": {Email: "jess@example.com", Items: []services.CheckoutItemRequest{{Amount: 2000, Quantity: 1}}},
	}

	for name, req := range cases {
		_, svcErr := svc.CreateSession(context.Background(), req)
		require.NotNil(t, svcErr, name)
		assert.Equal(t, 400, svcErr.StatusCode, name)
	}
}

func TestCreateSession_ProviderUnavailable(t *testing.T) {
	provider := &capturingProvider{}
	provider.createErr = errors.New("connection refused")
	svc := services.NewCheckoutService(provider, "http://localhost:3000", "myr", zap.NewNop())

	_, svcErr := svc.CreateSession(context.Background(), validCheckoutRequest())

	require.NotNil(t, svcErr)
	assert.Equal(t, 502, svcErr.StatusCode)
}
