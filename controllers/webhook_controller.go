package controllers

import (
	"io"
	"net/http"

	"github.com/bunzstudio/storefront-backend/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxWebhookBodyBytes bounds webhook payload reads.
const maxWebhookBodyBytes = 64 * 1024

// WebhookController receives payment processor deliveries. The processor
// retries on anything but 2xx, so response codes here are the retry
// protocol: 200 acknowledges (including replays), 400 rejects permanently
// bad deliveries, 5xx asks for a retry.
type WebhookController struct {
	Verifier services.WebhookVerifier
	Router   *services.EventRouter
	Orders   *services.OrderService
	Logger   *zap.Logger
}

func NewWebhookController(verifier services.WebhookVerifier, router *services.EventRouter, orders *services.OrderService, logger *zap.Logger) *WebhookController {
	return &WebhookController{Verifier: verifier, Router: router, Orders: orders, Logger: logger}
}

// HandleWebhook verifies, routes and materializes one delivery.
func (wc *WebhookController) HandleWebhook(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		wc.Logger.Warn("webhook body read failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable payload"})
		return
	}

	if wc.Verifier.VerificationDisabled() {
		wc.Logger.Warn("webhook signature verification is DISABLED, accepting unverified delivery")
	}

	event, err := wc.Verifier.VerifyWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		wc.Logger.Warn("webhook signature verification failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook"})
		return
	}

	wc.Logger.Info("processing webhook delivery",
		zap.String("event_type", string(event.Type)),
		zap.String("event_id", event.ID))

	checkout, svcErr := wc.Router.Route(c.Request.Context(), event)
	if svcErr != nil {
		c.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	if checkout == nil {
		c.JSON(http.StatusOK, gin.H{"status": "received"})
		return
	}

	result, svcErr := wc.Orders.MaterializeOrder(c.Request.Context(), checkout)
	if svcErr != nil {
		c.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	resp := gin.H{"status": "received", "replayed": result.Replayed}
	if result.Order != nil {
		resp["order_id"] = result.Order.ID.Hex()
	}
	c.JSON(http.StatusOK, resp)
}
