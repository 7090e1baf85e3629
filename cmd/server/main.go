// Command server is the paper-trading engine's process entry point: it
// loads configuration, opens the durable and fast stores, wires the event
// bus and the three trading engines, mounts the REST façade, and starts
// the cron scheduler.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyu9999/paper-trading-1/internal/auth"
	"github.com/hyu9999/paper-trading-1/internal/bus"
	"github.com/hyu9999/paper-trading-1/internal/cache"
	"github.com/hyu9999/paper-trading-1/internal/config"
	"github.com/hyu9999/paper-trading-1/internal/domain"
	"github.com/hyu9999/paper-trading-1/internal/httpapi"
	"github.com/hyu9999/paper-trading-1/internal/mainengine"
	"github.com/hyu9999/paper-trading-1/internal/marketengine"
	"github.com/hyu9999/paper-trading-1/internal/quotes"
	"github.com/hyu9999/paper-trading-1/internal/repository"
	"github.com/hyu9999/paper-trading-1/internal/scheduler"
	"github.com/hyu9999/paper-trading-1/internal/userengine"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("server exited with error")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)

	db, err := repository.Open(cfg.DurableStoreURI)
	if err != nil {
		return err
	}
	defer db.Close()

	rdb, err := cache.NewClient(cfg.FastStoreURI)
	if err != nil {
		return err
	}
	defer rdb.Close()

	userRepo := repository.NewUserRepository(db)
	posRepo := repository.NewPositionRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	statementRepo := repository.NewStatementRepository(db)
	assetsRepo := repository.NewUserAssetsRecordRepository(db)
	jobRunRepo, err := repository.NewJobRunRepository(db)
	if err != nil {
		return err
	}

	userCache := cache.NewUserCache(rdb)
	posCache := cache.NewPositionCache(rdb)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var quoteProvider domain.QuoteProvider = quotes.New(cfg.QuoteProviderBaseURL, cfg.QuoteProviderAPIKey, cfg.QuoteProviderTimeout)
	if cfg.QuoteStreamURL != "" {
		streamClient := quotes.NewStreamClient(quotes.New(cfg.QuoteProviderBaseURL, cfg.QuoteProviderAPIKey, cfg.QuoteProviderTimeout), cfg.QuoteStreamURL, cfg.QuoteStreamTickTTL)
		go streamClient.Run(ctx)
		quoteProvider = streamClient
	}

	eventBus := bus.New(logger, cfg.BusQueueDepth)

	userEngine := userengine.New(logger, userRepo, posRepo, userCache, posCache, quoteProvider, eventBus)

	loc, err := time.LoadLocation(cfg.TradingTimezone)
	if err != nil {
		return err
	}
	session := marketengine.NewChinaASession(loc)
	marketEngine := marketengine.New(logger, session, quoteProvider, userEngine, eventBus)

	mainEngine := mainengine.New(logger, eventBus, marketEngine, userEngine,
		orderRepo, statementRepo, assetsRepo, userRepo, userCache)

	if err := mainEngine.Startup(ctx); err != nil {
		return err
	}
	defer mainEngine.Shutdown(ctx)

	issuer := auth.NewIssuer(cfg)
	resolver := auth.NewResolver(cfg, issuer)

	server := httpapi.NewServer(logger, mainEngine, userEngine, userRepo, userCache, posCache, issuer, resolver)

	sched := scheduler.New(logger, cfg.SchedulerLockFile, mainEngine, userEngine, userCache, jobRunRepo)
	if err := sched.Start(ctx); err != nil {
		logger.Warn().Err(err).Msg("scheduler not started")
	} else {
		defer sched.Stop()
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info().Int("port", cfg.HTTPPort).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return httpServer.Shutdown(shutdownCtx)
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
}
