package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/siglatools/sigla/internal/api"
	"github.com/siglatools/sigla/internal/loader"
	"github.com/siglatools/sigla/internal/logging"
	"github.com/siglatools/sigla/internal/storage"
)

const shutdownTimeout = 10 * time.Second

var serveAddrFlag string

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept sheet payloads over HTTP",
		Long: `Run an HTTP server that loads the payloads posted to it.

Routes:
  POST   /v1/sheets      load one payload or an array of payloads
  DELETE /v1/documents   delete every document
  GET    /healthz        liveness

Loads are serialized: one request writes at a time.`,
		Example: `  sigla serve --addr :9090 --database-url postgresql://localhost/sigla`,
		Args:    cobra.NoArgs,
		RunE:    runServe,
	}

	cmd.Flags().StringVar(&serveAddrFlag, "addr", "", "Listen address (default: server.addr)")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	out := newPrinter(cmd)

	cfg, err := loadConfig()
	if err != nil {
		out.Failure("Invalid configuration")
		return err
	}
	addr := cfg.Server.Addr
	if serveAddrFlag != "" {
		addr = serveAddrFlag
	}

	logger, err := logging.New(cfg.Logging())
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	l := loader.New(loader.Config{DatabaseURL: cfg.Database.URL}, loader.WithLogger(logger))
	defer l.Close()

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out.Info("Serving %s on %s", storage.Redact(cfg.Database.URL), addr)
	if err := serveUntilDone(ctx, newHTTPServer(addr, l, logger), logger); err != nil {
		return err
	}
	out.Success("Server stopped")
	return nil
}

func newHTTPServer(addr string, l api.Loader, logger *zap.Logger) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           api.NewServer(l, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// serveUntilDone runs srv until ctx is cancelled, then shuts it down gracefully
func serveUntilDone(ctx context.Context, srv *http.Server, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server", zap.Duration("timeout", shutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
