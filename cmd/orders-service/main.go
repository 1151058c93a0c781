package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/Nest-Microservices-Edsanol/orders-microservice/docs"
	"github.com/Nest-Microservices-Edsanol/orders-microservice/internal/clock"
	"github.com/Nest-Microservices-Edsanol/orders-microservice/internal/config"
	"github.com/Nest-Microservices-Edsanol/orders-microservice/internal/httpx"
	ord "github.com/Nest-Microservices-Edsanol/orders-microservice/internal/order"
)

// @title        orders-microservice API
// @version      1.0
// @description  Order lifecycle service: creation, status, payment sessions.
// @BasePath     /
func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("postgres connect", zap.Error(err))
	}
	defer pool.Close()

	nc, err := nats.Connect(cfg.NATSURL, nats.Name("orders-service"))
	if err != nil {
		logger.Fatal("nats connect", zap.Error(err))
	}
	defer nc.Drain()

	timeout := cfg.RequestTimeout
	svc := ord.NewService(
		ord.NewPGRepo(pool),
		ord.NewCatalogClient(nc, timeout),
		ord.NewPaymentClient(nc, timeout),
		clock.NewSystem(),
		cfg.Currency,
	)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), httpx.RequestID(), httpx.Logger(logger))

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.POST("/orders", createOrderHandler(svc))
	r.GET("/orders", listOrdersHandler(svc))
	r.GET("/orders/:id", getOrderHandler(svc))
	r.PUT("/orders/:id/status", updateOrderStatusHandler(svc))
	r.POST("/orders/:id/payment-session", createPaymentSessionHandler(svc))
	r.POST("/payments/paid", orderPaidHandler(svc))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{Addr: cfg.OrdersSvcAddr, Handler: r}
	go func() {
		logger.Info("orders-service listening", zap.String("addr", cfg.OrdersSvcAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
	logger.Info("orders-service stopped")
}
