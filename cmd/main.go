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

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bellavista/internal/config"
	"bellavista/internal/logging"
	"bellavista/internal/matching"
	"bellavista/internal/models"
)

const shutdownTimeout = 10 * time.Second

var (
	configFile string
	logLevel   string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "bellavista",
		Short: "Chat ordering for the Bella Vista restaurant",
		Long: `bellavista runs the storefront chat-ordering API, the reference AI chatbot service
and the matcher evaluation suite.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", config.DefaultPath, "path to the YAML configuration file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(newServeCmd(), newChatbotCmd(), newEvaluateCmd())
	return root
}

// setup loads the configuration and builds the logger shared by every command.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// loadCatalog reads the configured catalog file, or returns the built-in menu.
func loadCatalog(cfg *config.Config, logger *zap.Logger) (*models.Catalog, error) {
	if cfg.CatalogFile == "" {
		return models.DefaultCatalog(), nil
	}
	catalog, err := models.LoadCatalog(cfg.CatalogFile)
	if err != nil {
		return nil, err
	}
	if err := newMatcher(cfg, catalog).Validate(); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", cfg.CatalogFile, err)
	}
	logger.Info("catalog loaded", zap.String("file", cfg.CatalogFile), zap.Int("items", catalog.Len()))
	return catalog, nil
}

func newMatcher(cfg *config.Config, catalog *models.Catalog, opts ...matching.Option) *matching.Matcher {
	opts = append([]matching.Option{matching.WithThresholds(cfg.Matching.Thresholds)}, opts...)
	return matching.NewMatcher(catalog.Items(), opts...)
}

// serveHTTP runs handler on addr until ctx is canceled, then shuts it down gracefully.
func serveHTTP(ctx context.Context, name, addr string, handler http.Handler, logger *zap.Logger) error {
	srv := &http.Server{Addr: addr, Handler: handler}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("server", name), zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("%s server: %w", name, err)
	case <-ctx.Done():
		logger.Info("shutting down server", zap.String("server", name))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s server shutdown: %w", name, err)
		}
		return nil
	}
}
