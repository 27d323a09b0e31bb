package controllers

import (
	"net/http"
	"strconv"

	"github.com/bunzstudio/storefront-backend/services"

	"github.com/gin-gonic/gin"
)

type OrderController struct {
	Orders *services.OrderService
}

func NewOrderController(orders *services.OrderService) *OrderController {
	return &OrderController{Orders: orders}
}

// GetOrderBySession backs the payment-success page: the storefront polls it
// with the session id from the redirect URL until the webhook lands.
func (oc *OrderController) GetOrderBySession(c *gin.Context) {
	view, svcErr := oc.Orders.GetOrderBySession(c.Request.Context(), c.Param("sessionId"))
	if svcErr != nil {
		if svcErr.StatusCode == http.StatusNotFound {
			// The webhook may simply not have landed yet; tell the polling
			// storefront to keep waiting.
			c.JSON(http.StatusNotFound, gin.H{"error": svcErr.Message, "processing": true})
			return
		}
		c.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetUserOrders returns a buyer's paginated order history with spend stats.
func (oc *OrderController) GetUserOrders(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	status := c.Query("status")

	history, svcErr := oc.Orders.GetUserOrders(c.Request.Context(), c.Param("email"), status, page, limit)
	if svcErr != nil {
		c.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	c.JSON(http.StatusOK, history)
}

// UpdateOrderStatus moves an order through the fulfillment workflow.
func (oc *OrderController) UpdateOrderStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, svcErr := oc.Orders.UpdateOrderStatus(c.Request.Context(), c.Param("id"), req.Status)
	if svcErr != nil {
		c.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	c.JSON(http.StatusOK, order)
}
