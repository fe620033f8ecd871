package llm

import "time"

// Config is what a provider needs to talk to its endpoint. It is built by the caller;
// providers never read the environment.
type Config struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	Timeout     time.Duration
	Retry       RetryPolicy

	// Client-credentials flow for OpenAI-compatible gateways fronted by an identity provider.
	OAuthTokenURL     string
	OAuthClientID     string
	OAuthClientSecret string
}
