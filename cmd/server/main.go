package main

import (
	"context"
	"log"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/habits/api/handler"
	"github.com/fastygo/habits/internal/bootstrap"
	"github.com/fastygo/habits/internal/config"
	"github.com/fastygo/habits/internal/infrastructure/monitor"
	"github.com/fastygo/habits/internal/middleware"
	"github.com/fastygo/habits/internal/router"
	"github.com/fastygo/habits/internal/services"
	"github.com/fastygo/habits/internal/services/lifecycle"
	"github.com/fastygo/habits/pkg/httpcontext"
	"github.com/fastygo/habits/pkg/logger"
	"github.com/fastygo/habits/usecase"
	habitUC "github.com/fastygo/habits/usecase/habit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
		File:     cfg.Logger.File,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	backend, err := bootstrap.Open(appCtx, cfg, manager, zapLogger)
	if err != nil {
		zapLogger.Fatal("backend unavailable", zap.Error(err))
	}

	mon := monitor.New(backend.Pool, backend.Redis, backend.Cache, 10*time.Second, zapLogger)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	clock := usecase.SystemClock{}
	stores := habitUC.NewRegistry(
		backend.Docs,
		backend.Auth.ForSession,
		zapLogger,
		habitUC.WithClock(clock),
		habitUC.WithSnapshotter(backend.Cache),
	)
	manager.Register("habit_stores", func(ctx context.Context) error {
		stores.Close()
		return nil
	})

	if cfg.Resync.Enabled {
		resyncer := services.NewResyncer(stores, mon, backend.Cache, zapLogger, services.ResyncConfig{
			Interval:  cfg.Resync.Interval,
			Retention: cfg.Cache.Retention,
		})
		resyncer.Start()
		manager.Register("resync", func(ctx context.Context) error {
			resyncer.Stop(ctx)
			return nil
		})
	}

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Auth:   apiHandler.NewAuthHandler(backend.Auth, stores, ctxAdapter, zapLogger, cfg.JWT.SessionTTL),
		Habit:  apiHandler.NewHabitHandler(stores, clock, ctxAdapter, zapLogger),
		Health: apiHandler.NewHealthHandler(mon, stores, ctxAdapter, zapLogger),
	}

	authMiddleware := middleware.JWTAuth(backend.Tokens, zapLogger)
	r := router.New(handlers, authMiddleware)

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Concurrency:  cfg.HTTP.MaxConn,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started", zap.String("address", cfg.Address()))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
