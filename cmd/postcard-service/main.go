package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"postcard-service/internal/config"
	"postcard-service/internal/coupon"
	coupon_db "postcard-service/internal/coupon/db"
	"postcard-service/internal/logger"
	"postcard-service/internal/models"
	"postcard-service/internal/notify"
	"postcard-service/internal/order"
	order_db "postcard-service/internal/order/db"
	"postcard-service/internal/order/kafka"
	"postcard-service/internal/order/order_api"
	rediswrap "postcard-service/internal/order/redis"
	"postcard-service/internal/print"
	"postcard-service/internal/storage"
	"postcard-service/internal/template"
)

func verifyConnections(ctx context.Context, cfg *config.Config, logger *logger.Logger) (*bun.DB, *redis.Client) {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		logger.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb = sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN)))

		err = sqldb.Ping()
		if err == nil {
			break
		}

		logger.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	logger.Info("DATABASE", "✅ PostgreSQL connection successful")

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	logger.Info("DATABASE", fmt.Sprintf("✅ Redis connection successful to %s (DB: %d)", cfg.Redis.Addr, redisClient.Options().DB))

	return bunDB, redisClient
}

func createSchema(ctx context.Context, db *bun.DB, logger *logger.Logger) {
	tables := []interface{}{
		(*models.Order)(nil),
		(*models.Customer)(nil),
		(*models.CouponCampaign)(nil),
		(*models.CouponCode)(nil),
		(*models.CouponRedemption)(nil),
		(*models.CouponDistribution)(nil),
	}
	for _, model := range tables {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			logger.Fatal("DATABASE", fmt.Sprintf("Failed to create table for %T: %v", model, err))
		}
	}
	logger.Info("DATABASE", "Schema verified")
}

func ensureMonthlyCoupon(ctx context.Context, couponService *coupon.Service, logger *logger.Logger) {
	run := func() {
		code, err := couponService.EnsureMonthlyCoupon(ctx)
		if err != nil {
			logger.Error("COUPON", fmt.Sprintf("Monthly coupon check failed: %v", err))
			return
		}
		logger.Info("COUPON", fmt.Sprintf("Monthly coupon ready: %s", code))
	}

	run()

	ticker := time.NewTicker(24 * time.Hour)
	go func() {
		for range ticker.C {
			run()
		}
	}()
}

func main() {
	logger := logger.NewLogger()
	defer logger.Close()

	logger.Info("APP", "Starting Postcard Service initialization")

	if err := godotenv.Load(); err != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		logger.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	ctx := context.Background()

	logger.Info("APP", "Verifying database connections")
	bunDB, redisClient := verifyConnections(ctx, cfg, logger)
	defer bunDB.Close()
	defer redisClient.Close()

	createSchema(ctx, bunDB, logger)

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()
		logger.Info("KAFKA", fmt.Sprintf("Kafka producer initialized for topic %s", cfg.Kafka.Topic))
	} else {
		logger.Info("KAFKA", "Kafka publishing disabled")
	}

	uploader := storage.NewCloudinaryUploader(cfg.Storage, logger)
	printer := print.NewClient(cfg.Stannp, !cfg.IsProduction(), logger)
	if !cfg.IsProduction() {
		logger.Warn("VENDOR", "Running in non-production mode, print submissions use the vendor test flag")
	}
	notifier := notify.NewEmailDispatcher(cfg.Email, cfg.AssetRoot, logger)

	couponGateway := coupon.NewStripeGateway(cfg.Stripe.SecretKey, logger)
	couponService := coupon.NewService(&coupon_db.DB{Bun: bunDB}, couponGateway, logger)

	loader := template.NewLoader(logger)
	assets := template.NewAssets(cfg.AssetRoot, logger)
	engine := template.NewEngine(loader, assets, logger)

	payments := order.NewStripePayments(cfg.Stripe, cfg.Pricing, logger)

	orderService := order.NewOrderService(
		&order_db.DB{Bun: bunDB},
		rediswrap.NewCache(redisClient, logger),
		eventPublisher(producer),
		engine,
		uploader,
		printer,
		notifier,
		couponService,
		payments,
		cfg,
		logger,
	)

	ensureMonthlyCoupon(ctx, couponService, logger)
	go orderService.ResumePendingPrints(ctx)

	handler := order_api.NewHandler(orderService, couponService, logger)

	logger.Info("HTTP", "Setting up router")
	r := chi.NewRouter()
	handler.Routes(r)

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP", fmt.Sprintf("🚀 Postcard Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	logger.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		logger.Info("HTTP", "✅ Postcard Service shutdown complete")
	}
}

// eventPublisher keeps the order service's publisher nil when Kafka is
// disabled instead of handing it a typed nil pointer.
func eventPublisher(p *kafka.Producer) order.EventPublisher {
	if p == nil {
		return nil
	}
	return p
}
