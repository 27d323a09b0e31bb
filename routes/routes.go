package routes

import (
	"net/http"
	"time"

	"github.com/bunzstudio/storefront-backend/controllers"
	"github.com/bunzstudio/storefront-backend/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Controllers bundles everything route registration needs.
type Controllers struct {
	Checkout      *controllers.CheckoutController
	Webhook       *controllers.WebhookController
	Orders        *controllers.OrderController
	Users         *controllers.UserController
	Notifications *controllers.NotificationController
}

// NewRouter builds the engine with the shared middleware stack and all
// application routes registered.
func NewRouter(ctrl Controllers, mongoClient *mongo.Client, clientURL string, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.RequestLogger(logger))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{clientURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api := r.Group("/api")
	{
		api.POST("/create-checkout-session", ctrl.Checkout.CreateCheckoutSession)
		// Webhook deliveries are authenticated by signature, not session.
		api.POST("/webhook", ctrl.Webhook.HandleWebhook)
	}

	orders := r.Group("/orders")
	{
		orders.GET("/session/:sessionId", ctrl.Orders.GetOrderBySession)
		orders.GET("/user/:email", ctrl.Orders.GetUserOrders)
	}

	users := r.Group("/users")
	{
		users.GET("/:email/preferences", ctrl.Users.GetPreferences)
		users.PUT("/:email/preferences", ctrl.Users.UpdatePreferences)
	}

	admin := r.Group("/admin")
	{
		admin.PATCH("/orders/:id/status", ctrl.Orders.UpdateOrderStatus)
		if ctrl.Notifications != nil {
			admin.GET("/notifications", ctrl.Notifications.GetLogs)
		}
	}

	r.GET("/healthz", func(c *gin.Context) {
		if err := mongoClient.Ping(c.Request.Context(), nil); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	return r
}
