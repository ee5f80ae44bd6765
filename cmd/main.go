package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ashgoren/registration-service/internal/events"
	"github.com/ashgoren/registration-service/internal/handler"
	"github.com/ashgoren/registration-service/internal/mailer"
	"github.com/ashgoren/registration-service/internal/processor"
	"github.com/ashgoren/registration-service/internal/reconcile"
	"github.com/ashgoren/registration-service/internal/repository"
	"github.com/ashgoren/registration-service/internal/service"
	"github.com/ashgoren/registration-service/internal/webhook"
	"github.com/ashgoren/registration-service/pkg/config"
	"github.com/ashgoren/registration-service/pkg/middleware"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.Info("Service configuration",
		zap.String("port", cfg.Port),
		zap.String("environment", cfg.Environment),
		zap.String("processor", cfg.PaymentProcessor),
		zap.String("order_table", cfg.OrderTableName))

	// Initialize components
	dynamoClient, err := repository.NewDynamoDBClient(cfg)
	if err != nil {
		log.Fatal("Failed to create DynamoDB client:", err)
	}

	adapter, err := processor.New(cfg, logger)
	if err != nil {
		log.Fatal("Failed to create payment adapter:", err)
	}

	producer := events.NewProducer(cfg.KafkaBrokers, logger)
	defer producer.Close()

	alertMailer := mailer.NewSendGridMailer(cfg.SendGridAPIKey, cfg.AlertEmailFrom, cfg.AlertEmailTo, logger)

	orderRepo := repository.NewOrderRepository(dynamoClient, cfg.OrderTableName)
	orderService := service.NewOrderService(orderRepo, producer, logger)
	paymentService := service.NewPaymentService(adapter, logger)
	finalizer := webhook.NewFinalizer(adapter, orderRepo, alertMailer,
		time.Duration(cfg.WebhookRetryBaseMS)*time.Millisecond, cfg.WebhookRetryAttempts, logger)
	reconcileJob := reconcile.NewJob(orderRepo, adapter, alertMailer,
		cfg.EventDescription, !cfg.IsProduction(), logger)

	orderHandler := handler.NewOrderHandler(orderService, logger)
	paymentHandler := handler.NewPaymentHandler(paymentService, logger)
	webhookHandler := handler.NewWebhookHandler(finalizer, logger)
	reconcileHandler := handler.NewReconcileHandler(reconcileJob, cfg.ReconcileToken, logger)

	// Setup Gin Router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.RequestID())

	// Routes
	v1 := router.Group("/api/v1")
	{
		v1.POST("/orders", orderHandler.SavePending)
		v1.POST("/orders/:id/finalize", orderHandler.SaveFinal)
		v1.GET("/people-count", orderHandler.PeopleCount)
		v1.POST("/payments/intent", paymentHandler.CreateOrUpdateIntent)
		v1.POST("/payments/capture", paymentHandler.Capture)
		v1.POST("/webhooks/"+adapter.Name(), webhookHandler.Handle)
		v1.POST("/reconcile", reconcileHandler.Trigger)
		v1.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status":      "healthy",
				"service":     "registration-service",
				"environment": cfg.Environment,
				"processor":   adapter.Name(),
			})
		})
	}

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Scheduled reconciliation; the on-demand trigger stays available
	// either way.
	stopReconcile := make(chan struct{})
	if cfg.ReconcileIntervalHr > 0 {
		go func() {
			ticker := time.NewTicker(time.Duration(cfg.ReconcileIntervalHr) * time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
					if _, err := reconcileJob.Run(ctx); err != nil {
						logger.Error("Scheduled reconciliation failed", zap.Error(err))
					}
					cancel()
				case <-stopReconcile:
					return
				}
			}
		}()
	}

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	close(stopReconcile)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}

	logger.Info("Server stopped")
}
