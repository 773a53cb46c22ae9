package chatbot

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"bellavista/internal/config"
)

// ErrNoToken is returned when no API token is configured for the model endpoint.
var ErrNoToken = errors.New("GITHUB_TOKEN or OPENAI_API_KEY is required for the chat model")

// ModelInfo describes a chat model reachable through the OpenAI-compatible endpoint
type ModelInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	MaxTokens int    `json:"max_tokens"`
}

// KnownModels lists models served by GitHub Models
var KnownModels = []ModelInfo{
	{ID: "gpt-4o-mini", Name: "GPT-4o Mini", MaxTokens: 128000},
	{ID: "gpt-4o", Name: "GPT-4o", MaxTokens: 128000},
	{ID: "Phi-3.5-mini-instruct", Name: "Phi 3.5 Mini", MaxTokens: 8192},
	{ID: "Meta-Llama-3.1-70B-Instruct", Name: "Llama 3.1 70B", MaxTokens: 8192},
	{ID: "Mistral-large-2407", Name: "Mistral Large", MaxTokens: 32000},
}

// LookupModel returns the info of a known model, matched case-insensitively.
func LookupModel(id string) (ModelInfo, bool) {
	for _, m := range KnownModels {
		if strings.EqualFold(m.ID, id) {
			return m, true
		}
	}
	return ModelInfo{}, false
}

// NewModel creates the OpenAI-compatible chat model described by cfg.
// GitHub Models and OpenAI both speak this API; only the base URL differs.
func NewModel(cfg config.ChatbotConfig) (llms.Model, error) {
	if cfg.Token == "" {
		return nil, ErrNoToken
	}

	opts := []openai.Option{
		openai.WithToken(cfg.Token),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model client: %w", err)
	}
	return client, nil
}

// IsRateLimit reports whether err is the provider refusing the call for quota reasons.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate_limit") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "429")
}
