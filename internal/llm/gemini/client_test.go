package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/joseph-ayodele/invoice-pipeline/internal/llm"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(llm.Config{APIKey: "secret", BaseURL: srv.URL, Model: "gemini-test"},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestInvoke_SendsPartsInOrder(t *testing.T) {
	var got generateRequest
	var path, key, query string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path, key, query = r.URL.Path, r.Header.Get("x-goog-api-key"), r.URL.RawQuery
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"{\"a\":"},{"text":"1}"}]},"finishReason":"STOP"}]}`)
	})

	out, err := c.Invoke(context.Background(), []llm.Part{
		llm.Inline("application/pdf", []byte("%PDF")),
		llm.Text("extract"),
	})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if out != `{"a":1}` {
		t.Errorf("out = %q", out)
	}
	if path != "/models/gemini-test:generateContent" {
		t.Errorf("path = %q", path)
	}
	if key != "secret" || strings.Contains(query, "secret") {
		t.Errorf("api key must travel in the header only: header=%q query=%q", key, query)
	}
	if len(got.Contents) != 1 || len(got.Contents[0].Parts) != 2 {
		t.Fatalf("request = %+v", got)
	}
	first, last := got.Contents[0].Parts[0], got.Contents[0].Parts[1]
	if first.InlineData == nil || first.InlineData.MimeType != "application/pdf" ||
		first.InlineData.Data != base64.StdEncoding.EncodeToString([]byte("%PDF")) {
		t.Errorf("first part = %+v", first)
	}
	if last.Text != "extract" || last.InlineData != nil {
		t.Errorf("last part = %+v", last)
	}
}

func TestInvoke_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   llm.ErrorKind
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"quota"}}`, llm.KindQuota},
		{"bad key", http.StatusForbidden, `{}`, llm.KindAuth},
		{"server", http.StatusInternalServerError, `oops`, llm.KindServer},
		{"garbage body", http.StatusOK, `not json`, llm.KindBadResponse},
		{"no candidates", http.StatusOK, `{"candidates":[],"promptFeedback":{"blockReason":"SAFETY"}}`, llm.KindBadResponse},
		{"empty text", http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"  "}]}}]}`, llm.KindBadResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := c.Invoke(context.Background(), []llm.Part{llm.Text("x")})
			var ge *llm.GatewayError
			if !errors.As(err, &ge) || ge.Kind != tt.want {
				t.Errorf("err = %v, want kind %s", err, tt.want)
			}
		})
	}
}
