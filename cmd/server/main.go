// Command server runs the security gateway: credential login with lockout,
// rotating session tokens, scoped rate limits and permission checks in front
// of the protected API.
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

	"golang.org/x/sync/errgroup"

	"github.com/jasonachkar/secure-api-gateway-sub001/internal/platform/config"
	"github.com/jasonachkar/secure-api-gateway-sub001/internal/platform/logger"
)

const poolStatsInterval = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "gateway:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("initializing gateway",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"rotation_mode", cfg.Auth.RotationMode,
		"jwt_algorithm", cfg.Auth.JWTAlgorithm,
	)

	infra, err := newInfrastructure(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := infra.Close(); err != nil {
			log.Error("infrastructure shutdown incomplete", "error", err)
		}
	}()

	app, err := newApplication(ctx, cfg, log, infra)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr, "state_store", infra.storeKind)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})
	if app.sweeper != nil {
		g.Go(func() error {
			return ignoreCanceled(app.sweeper.Start(gctx))
		})
	}
	if infra.redis != nil || infra.db != nil {
		g.Go(func() error {
			ticker := time.NewTicker(poolStatsInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if infra.redis != nil {
						infra.redis.RecordPoolStats()
					}
					infra.db.RecordPoolStats()
				case <-gctx.Done():
					return nil
				}
			}
		})
	}

	err = g.Wait()
	log.Info("server stopped")
	return err
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
