package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"speakwise/internal/adapters/auth"
	httpdelivery "speakwise/internal/delivery/http"
	"speakwise/internal/delivery/http/controllers"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	if a.cfg.JWTSecret == "" {
		a.logger.Warn("JWT_SECRET is empty, organizer routes accept tokens signed with an empty key")
	}
	d, err := a.buildDeps(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	_, verifier := auth.NewJWT(a.cfg.JWTSecret)
	ctrl := controllers.NewAttendanceController(a.logger, d.attendance, a.cfg.Import.MaxUploadBytes)
	handler := httpdelivery.NewRouter(httpdelivery.RouterConfig{
		Logger:         a.logger,
		TokenVerifier:  verifier,
		AllowedOrigins: a.cfg.AllowedOrigins,
	}, ctrl)

	srv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		// Uploads are parsed and imported within the request.
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: 2*time.Minute + a.cfg.Import.ProcessTimeout,
		IdleTimeout:  time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("http server listening", "addr", srv.Addr, "env", a.cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
