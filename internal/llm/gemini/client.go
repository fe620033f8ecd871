package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joseph-ayodele/invoice-pipeline/internal/llm"
)

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents         []content      `json:"contents"`
	GenerationConfig map[string]any `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// Invoke sends parts in order as a single user turn and returns the concatenated candidate text.
func (c *Client) Invoke(ctx context.Context, parts []llm.Part) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	req := generateRequest{
		Contents:         []content{{Role: "user", Parts: toParts(parts)}},
		GenerationConfig: map[string]any{"temperature": c.temperature},
	}
	c.logger.Info("llm.gemini.invoke",
		"req_id", rid,
		"model", c.model,
		"parts", len(parts),
	)

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	headers := map[string]string{"x-goog-api-key": c.apiKey}
	raw, _, err := llm.SendJSON(ctx, c.http, url, req, headers, c.logger)
	if err != nil {
		c.logger.Error("llm.gemini.http_error", "req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return "", err
	}

	var resp generateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", llm.NewGatewayError(llm.KindBadResponse, fmt.Sprintf("decode gemini response: %v", err))
	}
	if len(resp.Candidates) == 0 {
		msg := "no candidates in gemini response"
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			msg += ": blocked (" + resp.PromptFeedback.BlockReason + ")"
		}
		return "", llm.NewGatewayError(llm.KindBadResponse, msg)
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", llm.NewGatewayError(llm.KindBadResponse, "empty gemini candidate")
	}

	c.logger.Info("llm.gemini.ok",
		"req_id", rid,
		"chars", len(text),
		"finish_reason", resp.Candidates[0].FinishReason,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

func toParts(parts []llm.Part) []part {
	out := make([]part, 0, len(parts))
	for _, p := range parts {
		if p.IsInline() {
			out = append(out, part{InlineData: &inlineData{
				MimeType: p.MediaType,
				Data:     base64.StdEncoding.EncodeToString(p.Data),
			}})
			continue
		}
		out = append(out, part{Text: p.Text})
	}
	return out
}
