package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"strategyfund/internal/alerts"
	"strategyfund/internal/config"
	cronrunner "strategyfund/internal/cron"
	"strategyfund/internal/db"
	"strategyfund/internal/fees"
	"strategyfund/internal/handler"
	"strategyfund/internal/ledger"
	"strategyfund/internal/logger"
	"strategyfund/internal/notify"
	"strategyfund/internal/oracle"
	"strategyfund/internal/registry"
	gormrepository "strategyfund/internal/repository/gorm"
	"strategyfund/internal/trading"
	"strategyfund/internal/transfer"
)

func main() {
	cfgPath := os.Getenv("SF_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("SF_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)

	oracleHTTP := &http.Client{Timeout: cfg.Oracle.Timeout}
	var oracleSource oracle.Source = oracle.NewClient(oracleHTTP, cfg.Oracle.BaseURL)
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		oracleSource = &oracle.CachedSource{
			Next:   oracleSource,
			Redis:  rdb,
			TTL:    cfg.Redis.QuoteTTL,
			Logger: logger,
		}
	}

	hub := notify.NewHub(logger)
	sink := notify.MultiSink{&notify.LogSink{Logger: logger}, hub}

	funds := transfer.NewLedger(logger)

	registrySvc := &registry.Service{Repo: store, Sink: sink, Logger: logger}
	ledgerSvc := &ledger.Service{Repo: store, Transfer: funds, Sink: sink, Logger: logger}
	feeEngine := &fees.Engine{Repo: store, Transfer: funds, Sink: sink, Logger: logger}
	authorizer := &trading.Authorizer{
		Repo:        store,
		Oracle:      oracleSource,
		Sink:        sink,
		Logger:      logger,
		MaxQuoteAge: cfg.Oracle.MaxQuoteAge,
	}
	alertSvc := &alerts.Service{Repo: store, Oracle: oracleSource, Sink: sink, Logger: logger}

	seedRegistry(registrySvc, store, cfg.Ledger, logger)

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	auth := &handler.Auth{Secret: cfg.Auth.JWTSecret, TokenTTL: cfg.Auth.TokenTTL}
	authMW := auth.Middleware()

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(engine)
	registryHandler := &handler.RegistryHandler{Registry: registrySvc, Repo: store}
	registryHandler.Register(engine, authMW)
	strategyHandler := &handler.StrategyHandler{Registry: registrySvc, Repo: store}
	strategyHandler.Register(engine, authMW)
	subscriptionHandler := &handler.SubscriptionHandler{Ledger: ledgerSvc, Repo: store}
	subscriptionHandler.Register(engine, authMW)
	feeHandler := &handler.FeeHandler{Engine: feeEngine}
	feeHandler.Register(engine, authMW)
	tradeHandler := &handler.TradeHandler{Authorizer: authorizer, Repo: store}
	tradeHandler.Register(engine, authMW)
	alertHandler := &handler.AlertHandler{Alerts: alertSvc}
	alertHandler.Register(engine, authMW)
	wsHandler := &handler.WSHandler{Hub: hub}
	wsHandler.Register(engine, authMW)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Cron.Enabled {
		cronRunner := cronrunner.New(logger, ctx)
		if _, err := cronRunner.Add(cfg.Cron.FeeSweep, "fee_sweep", func(ctx context.Context) error {
			return feeEngine.SweepAll(ctx, db.NowUTC())
		}); err != nil {
			logger.Warn("cron register fee sweep failed", zap.Error(err))
		}
		if _, err := cronRunner.Add(cfg.Cron.AlertCheck, "alert_check", func(ctx context.Context) error {
			return alertSvc.CheckAll(ctx, db.NowUTC())
		}); err != nil {
			logger.Warn("cron register alert check failed", zap.Error(err))
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	errCh := make(chan error, 2)

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// seedRegistry initializes the registry row from config on first boot.
// Once the row exists, config changes no longer touch it.
func seedRegistry(svc *registry.Service, store *gormrepository.Store, cfg config.LedgerConfig, logger *zap.Logger) {
	if strings.TrimSpace(cfg.Authority) == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	existing, err := store.GetRegistry(ctx)
	if err != nil {
		logger.Warn("registry lookup failed", zap.Error(err))
		return
	}
	if existing != nil {
		return
	}
	if _, err := svc.InitRegistry(ctx, cfg.Authority, cfg.ProtocolFeeBps, cfg.FeeRecipient); err != nil {
		logger.Warn("registry seed failed", zap.Error(err))
		return
	}
	logger.Info("registry seeded", zap.String("authority", cfg.Authority))
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
