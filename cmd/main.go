package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mahalnishan/crm/internal/handler"
	"github.com/mahalnishan/crm/internal/router"
	"github.com/mahalnishan/crm/internal/workorder"
	"github.com/mahalnishan/crm/pkg/config"
	"github.com/mahalnishan/crm/pkg/database"
	"github.com/mahalnishan/crm/pkg/events"
	"github.com/mahalnishan/crm/pkg/jwtutil"
	"github.com/mahalnishan/crm/pkg/logger"
	"github.com/mahalnishan/crm/prometheus"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	// Load configuration from .env file, optional YAML file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	if err := logger.InitLogger(cfg); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()
	log := logger.GetLogger()
	log.Info("Starting CRM service...", cfg.Fields()...)

	// Money is rendered as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	jwtutil.Initialize(&cfg.JWT)
	log.Info("JWT utilities initialized")

	prometheus.InitMetrics(cfg.Metrics.Prefix, promclient.DefaultRegisterer)
	log.Info("Prometheus metrics initialized", zap.String("prefix", cfg.Metrics.Prefix))

	if err := database.InitDB(cfg, log); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer database.Close()

	publisher, err := events.New(cfg.Broker, cfg.ServiceName, log)
	if err != nil {
		log.Fatal("Failed to connect to event broker", zap.Error(err))
	}
	defer publisher.Close()

	handler.ServiceName = cfg.ServiceName
	handler.InitWorkOrders(workorder.NewReconciler(database.GetDB(), publisher))

	e := router.New(prometheus.Handler(promclient.DefaultGatherer))

	go func() {
		log.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
}
