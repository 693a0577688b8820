package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"midiscribe/internal/api"
)

func newServeCmd(app *appState) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP transcription API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if port != "" {
				app.cfg.Server.Port = port
			}
			return app.serve(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "Port to listen on (overrides server.port)")
	return cmd
}

func (a *appState) serve(ctx context.Context) error {
	defer func() { _ = a.logger.Sync() }()

	p, _, err := a.buildPipeline()
	if err != nil {
		return err
	}

	if a.cfg.Server.GinMode != "" {
		gin.SetMode(a.cfg.Server.GinMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(api.RecoveryHandler(a.logger))
	r.Use(api.CORSMiddleware())
	api.RegisterRoutes(r, p, a.logger)

	ln, err := net.Listen("tcp", net.JoinHostPort("", a.cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("listen on port %s: %w", a.cfg.Server.Port, err)
	}

	srv := &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		// No WriteTimeout: a transcription can run for minutes.
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	a.logger.Info("midiscribe backend running", zap.String("addr", ln.Addr().String()))
	if a.onListen != nil {
		a.onListen(ln.Addr())
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("shutdown error", zap.Error(err))
		return err
	}
	return <-errCh
}
