package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// RetryPolicy bounds retries of gateway calls. Only retryable GatewayErrors are retried.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultRetryPolicy is two attempts with a 500ms initial backoff.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 2, Backoff: 500 * time.Millisecond}

// RetryGateway decorates a Gateway with bounded exponential-backoff retries.
type RetryGateway struct {
	next   Gateway
	policy RetryPolicy
	logger *slog.Logger
}

// WithRetry wraps next with policy. A MaxAttempts below 1 is treated as 1.
func WithRetry(next Gateway, policy RetryPolicy, logger *slog.Logger) *RetryGateway {
	if logger == nil {
		logger = slog.Default()
	}
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &RetryGateway{next: next, policy: policy, logger: logger}
}

func (g *RetryGateway) Model() string {
	return g.next.Model()
}

func (g *RetryGateway) Invoke(ctx context.Context, parts []Part) (string, error) {
	delay := g.policy.Backoff
	var lastErr error

	for attempt := 1; attempt <= g.policy.MaxAttempts; attempt++ {
		out, err := g.next.Invoke(ctx, parts)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if attempt == g.policy.MaxAttempts || !shouldRetry(err) || ctx.Err() != nil {
			break
		}

		g.logger.Warn("llm.retry",
			"attempt", attempt,
			"max_attempts", g.policy.MaxAttempts,
			"delay_ms", delay.Milliseconds(),
			"error", err,
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ClassifyTransport(ctx.Err())
		}
		delay *= 2
	}
	return "", AsGatewayError(lastErr)
}

func shouldRetry(err error) bool {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Retryable()
	}
	return ClassifyTransport(err).Retryable()
}
