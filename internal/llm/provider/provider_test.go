package provider

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	"github.com/joseph-ayodele/invoice-pipeline/internal/llm"
)

func TestNew(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tests := []struct {
		name      string
		cfg       llm.Config
		wantModel string
		wantErr   bool
	}{
		{"gemini default", llm.Config{Provider: "gemini", APIKey: "k"}, "gemini-2.0-flash", false},
		{"empty means gemini", llm.Config{APIKey: "k", Model: "gemini-pro"}, "gemini-pro", false},
		{"openai", llm.Config{Provider: "openai", APIKey: "k", Model: "gpt-4o"}, "gpt-4o", false},
		{"unknown", llm.Config{Provider: "llama"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw, err := New(tt.cfg, logger)
			if tt.wantErr {
				var appErr *common.AppError
				if !errors.As(err, &appErr) || appErr.Code != common.CodeConfig {
					t.Fatalf("err = %v, want CONFIG_ERROR", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if _, ok := gw.(*llm.RetryGateway); !ok {
				t.Errorf("gateway %T is not wrapped with retries", gw)
			}
			if gw.Model() != tt.wantModel {
				t.Errorf("Model() = %q, want %q", gw.Model(), tt.wantModel)
			}
		})
	}
}

func TestConfigFrom(t *testing.T) {
	got := ConfigFrom(common.LLMConfig{Provider: "OpenAI", MaxAttempts: 3, RetryBackoff: time.Second})
	if got.Provider != "openai" || got.Retry.MaxAttempts != 3 || got.Retry.Backoff != time.Second {
		t.Errorf("ConfigFrom() = %+v", got)
	}
}
