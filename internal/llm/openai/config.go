package openai

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/joseph-ayodele/invoice-pipeline/internal/llm"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
)

// Client talks to any OpenAI-compatible chat/completions endpoint.
type Client struct {
	model       string
	baseURL     string
	temperature float32
	http        *http.Client
	logger      *slog.Logger
}

// NewClient authenticates with a static bearer key, or with the client-credentials flow
// when cfg.OAuthTokenURL is set.
func NewClient(cfg llm.Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		model:       cfg.Model,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		temperature: cfg.Temperature,
		http:        authClient(cfg),
		logger:      logger,
	}
}

func authClient(cfg llm.Config) *http.Client {
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: cfg.Timeout})

	var hc *http.Client
	if cfg.OAuthTokenURL != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.OAuthClientID,
			ClientSecret: cfg.OAuthClientSecret,
			TokenURL:     cfg.OAuthTokenURL,
		}
		hc = cc.Client(ctx)
	} else {
		hc = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.APIKey, TokenType: "Bearer"}))
	}
	hc.Timeout = cfg.Timeout
	return hc
}

func (c *Client) Model() string {
	return c.model
}
