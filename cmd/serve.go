package main

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bellavista/internal/api"
	"bellavista/internal/cart"
	"bellavista/internal/config"
	"bellavista/internal/database"
	"bellavista/internal/evaluation"
	"bellavista/internal/events"
	"bellavista/internal/gateway"
	"bellavista/internal/intent"
	"bellavista/internal/matching"
	"bellavista/internal/monitoring"
	"bellavista/internal/session"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the storefront chat-ordering API and the metrics server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()
			return runServe(cmd.Context(), cfg, logger)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	monitor := monitoring.NewMonitor()

	catalog, err := loadCatalog(cfg, logger)
	if err != nil {
		return err
	}
	parser := intent.NewParser(newMatcher(cfg, catalog, matching.WithObserver(monitor.ObserveMatch)))

	// scores of the built-in corpus are exported next to the live metrics
	evaluator := evaluation.NewEvaluator(intent.NewParser(newMatcher(cfg, catalog)),
		evaluation.WithRecorder(monitor),
		evaluation.WithLogger(logger.Named("evaluation")))
	if _, err := evaluator.EvaluateAll(ctx); err != nil {
		return fmt.Errorf("startup evaluation: %w", err)
	}

	client := gateway.NewClient(cfg.Assistant.ServiceURL,
		gateway.WithTimeout(cfg.Assistant.Timeout),
		gateway.WithObserver(monitor.ObserveGateway),
		gateway.WithLogger(logger.Named("gateway")))

	ledger, err := database.Open(cfg.Orders.DatabaseDSN, logger.Named("ledger"))
	if err != nil {
		return err
	}
	defer ledger.Close()

	publisher := events.NewPublisher(cfg.Orders.KafkaBrokers, cfg.Orders.KafkaTopic, logger.Named("events"))
	defer publisher.Close()

	recorders := []cart.Recorder{ledger}
	if publisher.Enabled() {
		recorders = append(recorders, publisher)
	}

	manager := session.NewManager(catalog, parser,
		session.WithService(client),
		session.WithRecorders(recorders...),
		session.WithSettings(cart.Settings{
			TaxRate:        cfg.Orders.TaxRate,
			SyntheticPrice: cfg.Orders.SyntheticPrice,
			EstimatedTime:  cfg.Orders.EstimatedTime,
		}),
		session.WithObserver(monitor),
		session.WithActionObserver(monitor.ObserveAction),
		session.WithDelayScale(cfg.Assistant.DelayScale),
		session.WithLogger(logger.Named("session")))
	defer manager.Close()

	health := session.NewHealthMonitor(client, cfg.Assistant.HealthInterval, monitor.SetAIStatus, logger.Named("health"))

	storefront := api.NewStorefront(manager,
		api.WithOrders(ledger),
		api.WithHealth(health),
		api.WithMonitor(monitor),
		api.WithLogger(logger.Named("api")))

	metricsRouter := gin.Default()
	metricsRouter.GET("/metrics", gin.WrapH(monitor.Handler()))

	logger.Info("storefront ready",
		zap.String("ai_service", client.BaseURL()),
		zap.Int("menu_items", catalog.Len()),
		zap.Bool("order_events", publisher.Enabled()))

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		health.Run(groupCtx)
		return nil
	})
	group.Go(func() error {
		return serveHTTP(groupCtx, "api", fmt.Sprintf(":%d", cfg.Server.Port), storefront.Router, logger)
	})
	group.Go(func() error {
		return serveHTTP(groupCtx, "metrics", fmt.Sprintf(":%d", cfg.Server.MetricsPort), metricsRouter, logger)
	})
	return group.Wait()
}
