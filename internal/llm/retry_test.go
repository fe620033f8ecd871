package llm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

type fakeGateway struct {
	errs  []error
	reply string
	calls int
}

func (f *fakeGateway) Model() string { return "fake-model" }

func (f *fakeGateway) Invoke(_ context.Context, _ []Part) (string, error) {
	f.calls++
	if f.calls <= len(f.errs) && f.errs[f.calls-1] != nil {
		return "", f.errs[f.calls-1]
	}
	return f.reply, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRetryGateway(t *testing.T) {
	tests := []struct {
		name      string
		errs      []error
		attempts  int
		wantCalls int
		wantKind  ErrorKind
	}{
		{"success first try", nil, 2, 1, ""},
		{"transient then success", []error{NewGatewayError(KindServer, "503")}, 2, 2, ""},
		{"quota exhausts attempts", []error{NewGatewayError(KindQuota, "slow down"), NewGatewayError(KindQuota, "slow down")}, 2, 2, KindQuota},
		{"auth not retried", []error{NewGatewayError(KindAuth, "bad key")}, 2, 1, KindAuth},
		{"single attempt policy", []error{NewGatewayError(KindNetwork, "reset")}, 1, 1, KindNetwork},
		{"foreign error wrapped", []error{errors.New("connection reset by peer"), errors.New("connection reset by peer")}, 2, 2, KindNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeGateway{errs: tt.errs, reply: "ok"}
			g := WithRetry(fake, RetryPolicy{MaxAttempts: tt.attempts, Backoff: time.Millisecond}, quietLogger())

			out, err := g.Invoke(context.Background(), []Part{Text("hi")})
			if fake.calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", fake.calls, tt.wantCalls)
			}
			if tt.wantKind == "" {
				if err != nil || out != "ok" {
					t.Fatalf("Invoke() = %q, %v", out, err)
				}
				return
			}
			var ge *GatewayError
			if !errors.As(err, &ge) {
				t.Fatalf("err = %v, want *GatewayError", err)
			}
			if ge.Kind != tt.wantKind {
				t.Errorf("Kind = %s, want %s", ge.Kind, tt.wantKind)
			}
		})
	}
}

func TestRetryGateway_HonorsCancellation(t *testing.T) {
	fake := &fakeGateway{errs: []error{NewGatewayError(KindServer, "boom"), NewGatewayError(KindServer, "boom")}}
	g := WithRetry(fake, RetryPolicy{MaxAttempts: 2, Backoff: time.Hour}, quietLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := g.Invoke(ctx, nil)
	if time.Since(start) > 5*time.Second {
		t.Fatal("retry backoff ignored context cancellation")
	}
	var ge *GatewayError
	if !errors.As(err, &ge) || ge.Kind != KindTimeout {
		t.Errorf("err = %v, want timeout GatewayError", err)
	}
	if fake.calls != 1 {
		t.Errorf("calls = %d, want 1", fake.calls)
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorKind
		retry  bool
	}{
		{401, KindAuth, false},
		{403, KindAuth, false},
		{429, KindQuota, true},
		{408, KindTimeout, true},
		{504, KindTimeout, true},
		{500, KindServer, true},
		{503, KindServer, true},
		{400, KindInvalidRequest, false},
	}
	for _, tt := range tests {
		ge := ClassifyStatus(tt.status, []byte(`{"error":"x"}`))
		if ge.Kind != tt.want || ge.Retryable() != tt.retry || ge.Status != tt.status {
			t.Errorf("ClassifyStatus(%d) = %+v, want kind %s retryable %v", tt.status, ge, tt.want, tt.retry)
		}
	}
}

func TestClassifyTransport(t *testing.T) {
	if got := ClassifyTransport(context.DeadlineExceeded).Kind; got != KindTimeout {
		t.Errorf("deadline -> %s", got)
	}
	if got := ClassifyTransport(errors.New("dial tcp: connection refused")).Kind; got != KindNetwork {
		t.Errorf("refused -> %s", got)
	}
	orig := NewGatewayError(KindAuth, "x")
	if got := ClassifyTransport(orig); got != orig {
		t.Errorf("existing GatewayError should pass through")
	}
}
