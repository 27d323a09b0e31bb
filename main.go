package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bunzstudio/storefront-backend/config"
	"github.com/bunzstudio/storefront-backend/controllers"
	"github.com/bunzstudio/storefront-backend/database"
	"github.com/bunzstudio/storefront-backend/logger"
	"github.com/bunzstudio/storefront-backend/models"
	aws_pkg "github.com/bunzstudio/storefront-backend/pkg/aws"
	"github.com/bunzstudio/storefront-backend/repository"
	"github.com/bunzstudio/storefront-backend/routes"
	"github.com/bunzstudio/storefront-backend/sender"
	"github.com/bunzstudio/storefront-backend/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const orderConfirmationTemplate = "templates/order_confirmation.html"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fallback := logger.New("production")
		fallback.Fatal("configuration error", zap.Error(err))
	}

	log := buildLogger(cfg)
	defer log.Sync()

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.WebhookVerificationDisabled {
		log.Warn("STRIPE_WEBHOOK_SECRET is not set: webhook signature verification is DISABLED; do not run this way in production")
	}

	// --- Storage ---

	db, err := database.Connect(cfg.MongoURL, cfg.MongoDBName)
	if err != nil {
		log.Fatal("mongo connection failed", zap.Error(err))
	}
	defer database.Close(db)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	if err := database.EnsureOrderIndexes(ctx, db); err != nil {
		cancel()
		log.Fatal("index creation failed", zap.Error(err))
	}
	cancel()

	orderRepo := repository.NewMongoOrderRepository(db)
	productRepo := repository.NewMongoProductRepository(db)
	userRepo := repository.NewMongoUserRepository(db)

	// The notification delivery log lives in Postgres and is optional; the
	// pipeline runs without it.
	var notificationRepo repository.NotificationRepository
	if dsn := cfg.PostgresDSN(); dsn != "" {
		pg, err := database.ConnectPostgres(dsn, log, &models.NotificationLog{})
		if err != nil {
			log.Warn("postgres unavailable, notification log disabled", zap.Error(err))
		} else {
			defer database.ClosePostgres(pg)
			notificationRepo = repository.NewNotificationRepository(pg)
		}
	}

	// --- Services ---

	stripeSvc := services.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	checkoutSvc := services.NewCheckoutService(stripeSvc, cfg.ClientURL, cfg.Currency, log)
	router := services.NewEventRouter(stripeSvc, log)

	orderSvc := services.NewOrderService(orderRepo, productRepo, userRepo, log)

	var notificationSvc *services.NotificationService
	emailSender, err := sender.NewSMTPSender()
	if err != nil {
		log.Warn("smtp not configured, order confirmations disabled", zap.Error(err))
	} else {
		notificationSvc, err = services.NewNotificationService(userRepo, emailSender, notificationRepo, orderConfirmationTemplate, log)
		if err != nil {
			log.Fatal("notification service init failed", zap.Error(err))
		}
		orderSvc.WithNotifier(notificationSvc)
	}

	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Warn("redis unavailable, order cache disabled", zap.Error(err))
		} else {
			orderSvc.WithCache(services.NewOrderCache(redisClient))
		}
	}

	if cfg.OrderSNSTopicARN != "" {
		awsCfg, err := aws_pkg.LoadAWSConfig(context.Background())
		if err != nil {
			log.Warn("aws config load failed, order fan-out disabled", zap.Error(err))
		} else {
			orderSvc.WithSNS(aws_pkg.NewSNSClient(awsCfg), cfg.OrderSNSTopicARN)
		}
	}

	userSvc := services.NewUserService(userRepo, log)

	// --- HTTP ---

	ctrl := routes.Controllers{
		Checkout: controllers.NewCheckoutController(checkoutSvc),
		Webhook:  controllers.NewWebhookController(stripeSvc, router, orderSvc, log),
		Orders:   controllers.NewOrderController(orderSvc),
		Users:    controllers.NewUserController(userSvc),
	}
	if notificationSvc != nil {
		ctrl.Notifications = controllers.NewNotificationController(notificationSvc)
	}

	engine := routes.NewRouter(ctrl, db.Client(), cfg.ClientURL, log)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: engine,
	}

	go func() {
		log.Info("storefront backend starting", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", zap.Error(err))
	}
}

func buildLogger(cfg *config.Config) *zap.Logger {
	if os.Getenv("CLOUDWATCH_ENABLED") == "true" {
		cw, err := aws_pkg.NewCloudWatchLogsClient(context.Background(), "storefront-backend")
		if err == nil && cw.IsEnabled() {
			return logger.NewWithWriter(cfg.Env, cw)
		}
	}
	return logger.New(cfg.Env)
}
