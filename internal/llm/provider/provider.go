// Package provider builds the configured model gateway.
package provider

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	"github.com/joseph-ayodele/invoice-pipeline/internal/llm"
	"github.com/joseph-ayodele/invoice-pipeline/internal/llm/gemini"
	"github.com/joseph-ayodele/invoice-pipeline/internal/llm/openai"
)

// ConfigFrom maps application configuration onto the gateway configuration.
func ConfigFrom(cfg common.LLMConfig) llm.Config {
	return llm.Config{
		Provider:          strings.ToLower(cfg.Provider),
		Model:             cfg.Model,
		APIKey:            cfg.APIKey,
		BaseURL:           cfg.BaseURL,
		Temperature:       cfg.Temperature,
		Timeout:           cfg.Timeout,
		Retry:             llm.RetryPolicy{MaxAttempts: cfg.MaxAttempts, Backoff: cfg.RetryBackoff},
		OAuthTokenURL:     cfg.OAuthTokenURL,
		OAuthClientID:     cfg.OAuthClientID,
		OAuthClientSecret: cfg.OAuthClientSecret,
	}
}

// New returns the provider named in cfg wrapped with the retry policy.
func New(cfg llm.Config, logger *slog.Logger) (llm.Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var gw llm.Gateway
	switch cfg.Provider {
	case "", "gemini":
		gw = gemini.NewClient(cfg, logger)
	case "openai":
		gw = openai.NewClient(cfg, logger)
	default:
		return nil, common.NewAppError(common.CodeConfig, fmt.Sprintf("unknown LLM provider %q", cfg.Provider), common.ErrInvalidInput)
	}
	logger.Info("llm.provider.ready", "provider", cfg.Provider, "model", gw.Model(),
		"max_attempts", cfg.Retry.MaxAttempts)
	return llm.WithRetry(gw, cfg.Retry, logger), nil
}
