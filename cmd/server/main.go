package main

import (
	"log"
	"net/http"
	"time"

	"merch_shop/internal/config"
	"merch_shop/internal/database"
	"merch_shop/internal/handlers"
	"merch_shop/internal/redis"
	"merch_shop/internal/repository"
	"merch_shop/internal/services"
	"merch_shop/pkg/click"
	"merch_shop/pkg/telegram"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Initialize Redis
	redisClient, err := redis.Initialize(cfg.RedisURL)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer redisClient.Close()

	// Initialize outbound clients
	clickClient := click.NewClient(cfg.ClickBaseURL, cfg.MerchantUserID, cfg.SecretKey, cfg.ServiceID)
	telegramClient := telegram.NewClient(cfg.TelegramBotToken)

	// Initialize repositories
	clientRepo := repository.NewClientRepository(db)
	orderRepo := repository.NewOrderRepository(db)

	// Initialize services
	notifier := services.NewTelegramNotifier(telegramClient, cfg.AdminChatIDs, cfg.GroupChatID)
	clientService := services.NewClientService(clientRepo)
	orderService := services.NewOrderService(orderRepo, clientRepo, clickClient, notifier, cfg.AdminChatIDs)
	intakeService := services.NewIntakeService(
		redisClient,
		clientService,
		orderService,
		telegramClient,
		cfg.AdminChatIDs,
		time.Duration(cfg.SessionTimeout)*time.Second,
	)

	// Initialize handlers
	clickHandler := handlers.NewClickHandler(orderService, cfg.SecretKey)
	telegramHandler := handlers.NewTelegramHandler(intakeService, cfg.TelegramWebhookSecret)
	apiHandler := handlers.NewAPIHandler(orderService, clientService)

	// Setup routes
	router := gin.Default()

	// Payment gateway webhooks
	router.POST("/click-api/prepare", clickHandler.HandlePrepare)
	router.POST("/click-api/complete", clickHandler.HandleComplete)
	router.POST("/click-api/create_invoice", clickHandler.HandleCreateInvoice)

	// Chat webhook
	router.POST("/telegram/webhook", telegramHandler.HandleWebhook)

	// Admin API
	api := router.Group("/api")
	{
		api.GET("/orders", apiHandler.ListOrders)
		api.GET("/orders/:id", apiHandler.GetOrder)
		api.GET("/clients/:client_id/orders", apiHandler.ListClientOrders)
		api.DELETE("/clients/:client_id", apiHandler.DeleteClient)
		api.POST("/orders/:id/approve", apiHandler.ApproveOrder)
		api.POST("/orders/:id/reject", apiHandler.RejectOrder)
		api.POST("/orders/:id/price", apiHandler.SetPrice)
		api.POST("/orders/:id/confirm", apiHandler.ConfirmOrder)
		api.POST("/orders/:id/cancel", apiHandler.CancelOrder)
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// The hosting platform idles the process without inbound traffic.
	if cfg.SelfURL != "" {
		go keepAlive(cfg.SelfURL)
	}

	// Start server
	log.Printf("Server starting on port %s", cfg.ServerPort)
	if err := router.Run(":" + cfg.ServerPort); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

func keepAlive(url string) {
	client := &http.Client{Timeout: 10 * time.Second}
	for range time.Tick(10 * time.Minute) {
		resp, err := client.Get(url)
		if err != nil {
			log.Printf("keep-alive ping failed: %v", err)
			continue
		}
		resp.Body.Close()
	}
}
