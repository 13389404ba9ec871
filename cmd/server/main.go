package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"admin-auth/internal/factory"
	"admin-auth/internal/handler"
	"admin-auth/internal/util"

	"golang.org/x/sync/errgroup"
)

func main() {
	f, err := factory.NewFactory()
	if err != nil {
		util.Fatal("Failed to initialize factory", util.ErrorField(err))
	}
	defer f.Close()

	cfg := f.Config()

	// Adopt a persisted session if one survives and still matches the
	// connected wallet. Failures degrade silently to no admin.
	restoreCtx, cancelRestore := context.WithTimeout(context.Background(), 10*time.Second)
	f.Manager().Restore(restoreCtx)
	cancelRestore()

	adminHandler := handler.NewAdminHandler(f.Facade(), f.Wallet(), f.RoleSelection(), util.Get())
	router := handler.NewRouter(cfg, adminHandler, util.Get())

	server := &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		util.Info("Server started",
			util.String("environment", cfg.Environment),
			util.String("auth_mode", cfg.Auth.Mode),
			util.String("address", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		util.Info("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		util.Error("Server exited with error", util.ErrorField(err))
	}
	util.Info("Server shutdown completed")
}
