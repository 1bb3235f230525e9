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

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"equity-token/handlers"
	"equity-token/logger"
	"equity-token/models"
	"equity-token/routers"
	"equity-token/vesting"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the ledger HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, token, closeFn, err := setup()
	if err != nil {
		return err
	}
	defer closeFn()

	logger.Logger.Info("Starting equity token server...")

	token.AcceptHook(vestingHookLogger())

	// Initialize HTTP handlers
	h := handlers.NewHandler(token)

	// Setup router
	r := mux.NewRouter()
	routers.RegisterRoutes(r, h)

	// HTTP Server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Logger.Error("Server stopped", zap.Error(err))
		}
	}()

	logger.Logger.Info("Server running on port", zap.Int("port", cfg.Server.Port))

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Logger.Info("Shutdown signal received, exiting...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// vestingHookLogger records every committed ledger event in the application log
func vestingHookLogger() vesting.Hook {
	return vesting.HookFunc(func(ctx context.Context, e *models.Event) {
		fields := []zap.Field{
			zap.String("event_id", e.ID),
			zap.String("kind", string(e.Kind)),
			zap.String("wallet", e.Wallet.Hex()),
		}
		if e.Amount != nil {
			fields = append(fields, zap.String("amount", e.Amount.String()))
		}
		logger.Logger.Debug("Ledger event", fields...)
	})
}
