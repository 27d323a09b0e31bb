package controllers

import (
	"net/http"

	"github.com/bunzstudio/storefront-backend/services"

	"github.com/gin-gonic/gin"
)

type CheckoutController struct {
	Checkout *services.CheckoutService
}

func NewCheckoutController(checkout *services.CheckoutService) *CheckoutController {
	return &CheckoutController{Checkout: checkout}
}

// CreateCheckoutSession opens a hosted payment session for the submitted
// cart and returns the redirect URL.
func (cc *CheckoutController) CreateCheckoutSession(c *gin.Context) {
	var req services.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, svcErr := cc.Checkout.CreateSession(c.Request.Context(), &req)
	if svcErr != nil {
		c.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	c.JSON(http.StatusOK, resp)
}
