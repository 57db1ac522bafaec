package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	httphandler "github.com/kjstillabower/weather-lookup/internal/http"
)

// ServeCmd runs the web front end until SIGINT or SIGTERM.
type ServeCmd struct {
	InFlightTimeout time.Duration `help:"How long to wait for in-flight requests after the server stops accepting." default:"5s"`
}

func (c *ServeCmd) Run(app *App) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return c.serve(ctx, app, ":"+app.cfg.ServerPort)
}

func (c *ServeCmd) serve(ctx context.Context, app *App, addr string) error {
	cfg, logger := app.cfg, app.logger

	health := &httphandler.HealthConfig{
		DegradedWindow:   cfg.DegradedWindow,
		DegradedErrorPct: cfg.DegradedErrorPct,
	}
	if app.memcached != nil {
		health.CachePing = app.memcached.Ping
	}
	if app.sqlite != nil {
		health.StoragePing = app.sqlite.Ping
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httphandler.NewHandler(app.lookup, app.favorites, httphandler.Options{
		MinChars: cfg.SearchMinLength,
		MaxChars: cfg.SearchMaxLength,
		Health:   health,
	}, logger)

	srv := &http.Server{
		Addr:         addr,
		Handler:      httphandler.NewRouter(handler, limiter, cfg.RequestTimeout),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("graceful shutdown triggered")
	handler.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.OpenRequests()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), c.InFlightTimeout)
	defer waitCancel()
	if err := httphandler.DrainRequests(waitCtx); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.OpenRequests()))
	}
	logger.Info("shutdown complete")
	return nil
}
