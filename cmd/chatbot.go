package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"bellavista/internal/chatbot"
	"bellavista/internal/config"
	"bellavista/internal/intent"
)

func newChatbotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chatbot",
		Short: "Run the reference AI chatbot service",
		Long: `chatbot serves POST /chat, POST /clear_session, GET /health and GET /menu backed by an
OpenAI-compatible model. Without a token every chat is answered by keyword rules.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()
			return runChatbot(cmd.Context(), cfg, logger)
		},
	}
}

func runChatbot(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	catalog, err := loadCatalog(cfg, logger)
	if err != nil {
		return err
	}

	var model llms.Model
	model, err = chatbot.NewModel(cfg.Chatbot)
	switch {
	case errors.Is(err, chatbot.ErrNoToken):
		logger.Warn("no model token configured, answering with keyword rules only")
		model = nil
	case err != nil:
		return err
	}

	server := chatbot.NewServer(model, catalog, intent.NewParser(newMatcher(cfg, catalog)), cfg.Chatbot,
		chatbot.WithLogger(logger.Named("chatbot")))

	logger.Info("chatbot ready",
		zap.String("model", server.Describe().ID),
		zap.Bool("llm", model != nil))
	return serveHTTP(ctx, "chatbot", fmt.Sprintf(":%d", cfg.Chatbot.Port), server.Router, logger)
}
