package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"food-distribution-api/config"
	"food-distribution-api/handlers"
	"food-distribution-api/hub"
	"food-distribution-api/middleware"
	"food-distribution-api/models"
	"food-distribution-api/orders"
	"food-distribution-api/relay"
	"food-distribution-api/routes"
	"food-distribution-api/store"

	"github.com/gin-gonic/gin"
	flag "github.com/spf13/pflag"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	port := flag.String("port", "", "listen port (overrides config and PORT)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	if *port != "" {
		cfg.Port = *port
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})).
		With("service", "food-distribution-api")
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("service stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prodDB, err := config.OpenDB(cfg.Database, log.With("dataset", models.DatasetProduction))
	if err != nil {
		return err
	}
	demoDB, err := config.OpenDB(cfg.DemoDatabase, log.With("dataset", models.DatasetDemo))
	if err != nil {
		return err
	}
	production := store.New(prodDB, models.DatasetProduction)
	demo := store.New(demoDB, models.DatasetDemo)

	created, err := handlers.BootstrapAdmin(ctx, production, cfg.Admin.Name, cfg.Admin.Email, cfg.Admin.Password)
	if err != nil {
		return err
	}
	if created {
		log.Info("bootstrap admin created", "email", cfg.Admin.Email)
	}

	h := hub.New(hub.Options{
		BufferSize:     cfg.Hub.BufferSize,
		MaxConnections: cfg.Hub.MaxConnections,
		IdleTimeout:    cfg.Hub.IdleTimeout,
		Logger:         log,
	})
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go h.Run(hubCtx)

	engineCfg := orders.Config{
		WriteTimeout: cfg.WriteTimeout,
		Location:     cfg.Location(),
		Logger:       log,
	}
	if cfg.AMQP.URL != "" {
		rmq, err := relay.Dial(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			return err
		}
		defer rmq.Close()
		engineCfg.Relay = rmq
		log.Info("relay connected", "exchange", cfg.AMQP.Exchange)
	}
	engine := orders.NewEngine(production, demo, production, h, engineCfg)

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))

	// CORS middleware for frontend integration
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	r.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		body := gin.H{
			"status":  "healthy",
			"service": "Food Distribution Order Lifecycle API",
			"hub":     h.Stats(),
		}
		if err := production.Ping(c.Request.Context()); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
		c.JSON(status, body)
	})

	api := handlers.New(engine, production, handlers.Options{
		JWTSecret: []byte(cfg.JWTSecret),
		TokenTTL:  cfg.TokenTTL,
		Heartbeat: cfg.Hub.Heartbeat,
		Logger:    log,
	})
	routes.SetupRoutes(r, api, []byte(cfg.JWTSecret))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	// Ends live event streams so Shutdown does not wait on them.
	stopHub()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
