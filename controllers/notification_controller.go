package controllers

import (
	"net/http"
	"strconv"

	"github.com/bunzstudio/storefront-backend/models"
	"github.com/bunzstudio/storefront-backend/services"

	"github.com/gin-gonic/gin"
)

type NotificationController struct {
	Notifications *services.NotificationService
}

func NewNotificationController(notifications *services.NotificationService) *NotificationController {
	return &NotificationController{Notifications: notifications}
}

// GetLogs lists confirmation delivery attempts for operators.
func (nc *NotificationController) GetLogs(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))

	filter := models.NotificationFilter{
		OrderRef: c.Query("orderRef"),
		Status:   c.Query("status"),
		Page:     page,
		PageSize: pageSize,
	}

	entries, total, svcErr := nc.Notifications.GetLogs(c.Request.Context(), filter)
	if svcErr != nil {
		c.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": entries, "total": total})
}
