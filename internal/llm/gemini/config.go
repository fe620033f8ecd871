package gemini

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-pipeline/internal/llm"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.0-flash"
)

// Client calls the generateContent endpoint with inline document parts.
type Client struct {
	model       string
	apiKey      string
	baseURL     string
	temperature float32
	http        *http.Client
	logger      *slog.Logger
}

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
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		temperature: cfg.Temperature,
		http:        &http.Client{Timeout: cfg.Timeout},
		logger:      logger,
	}
}

func (c *Client) Model() string {
	return c.model
}
