package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"vat-service/internal/config"
	"vat-service/internal/database"
	"vat-service/internal/events"
	"vat-service/internal/handlers"
	"vat-service/internal/repository"
	"vat-service/internal/services"
	"gorm.io/gorm"
)

func main() {
	// Load configuration
	cfg := config.Load()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	// Connect to database
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	logger.Info("Connected to database")

	// Run automated database migrations (schema + seed data)
	if err := database.RunMigrations(db); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	// Optional redis cache for rate lookups
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		logger.WithField("addr", cfg.RedisAddr).Info("Redis cache enabled")
	}

	// Initialize NATS events publisher (non-blocking)
	go func() {
		if err := events.InitPublisher(logger); err != nil {
			logger.WithError(err).Warn("Failed to initialize events publisher, events won't be published")
		}
	}()

	// Initialize repository and services
	vatRepo := repository.NewVATRepository(db, redisClient)
	vatCalculator := services.NewVATCalculator(vatRepo)

	// Initialize handlers
	vatHandler := handlers.NewVATHandler(vatCalculator, vatRepo)

	// Setup router
	router := setupRouter(vatHandler, db)

	// Start server
	logger.WithFields(logrus.Fields{
		"port": cfg.Port,
		"env":  cfg.Environment,
	}).Info("VAT Service starting")
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// setupRouter configures the HTTP router
func setupRouter(vatHandler *handlers.VATHandler, db *gorm.DB) *gin.Engine {
	router := gin.Default()

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Health checks
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "vat-service",
		})
	})

	// Liveness probe - simple check that the service is running
	router.GET("/livez", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Readiness probe - check that DB is accessible
	router.GET("/readyz", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err != nil {
			c.JSON(503, gin.H{"status": "error", "message": "database not available"})
			return
		}
		if err := sqlDB.Ping(); err != nil {
			c.JSON(503, gin.H{"status": "error", "message": "database ping failed"})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		vat := v1.Group("/vat")
		{
			vat.GET("/rates", vatHandler.ListVATRates)
			vat.POST("/rates", vatHandler.CreateVATRate)
			vat.PUT("/rates/:id", vatHandler.UpdateVATRate)
			vat.DELETE("/rates/:id", vatHandler.DeleteVATRate)

			vat.POST("/calculate", vatHandler.CalculateVAT)
			vat.POST("/calculate-from-gross", vatHandler.CalculateVATFromGross)

			vat.GET("/expense-categories", vatHandler.GetExpenseCategories)
			vat.GET("/summary/:companyId", vatHandler.GetVATSummary)
		}

		expenses := v1.Group("/expenses")
		{
			expenses.POST("", vatHandler.CreateExpense)
			expenses.GET("/:companyId", vatHandler.ListExpenses)
		}

		invoices := v1.Group("/invoices")
		{
			invoices.POST("", vatHandler.CreateInvoice)
			invoices.GET("/:companyId", vatHandler.ListInvoices)
		}
	}

	return router
}
