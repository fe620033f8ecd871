package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"

	"github.com/joseph-ayodele/invoice-pipeline/internal/llm"
)

// maxDocumentText bounds the PDF text layer forwarded to the model.
const maxDocumentText = 12000

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Invoke sends parts as one user message. Images travel as data URLs; PDFs travel as their
// text layer when one exists, otherwise as an inline file.
func (c *Client) Invoke(ctx context.Context, parts []llm.Part) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	body := map[string]any{
		"model":           c.model,
		"temperature":     c.temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "user", "content": c.toContent(rid, parts)},
		},
	}
	c.logger.Info("llm.openai.invoke", "req_id", rid, "model", c.model, "parts", len(parts))

	raw, _, err := llm.SendJSON(ctx, c.http, c.baseURL+"/chat/completions", body, nil, c.logger)
	if err != nil {
		c.logger.Error("llm.openai.http_error", "req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return "", err
	}

	var cc chatResponse
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", llm.NewGatewayError(llm.KindBadResponse, fmt.Sprintf("decode openai response: %v", err))
	}
	if len(cc.Choices) == 0 {
		return "", llm.NewGatewayError(llm.KindBadResponse, "no choices in openai response")
	}
	content := strings.TrimSpace(cc.Choices[0].Message.Content)
	if content == "" {
		return "", llm.NewGatewayError(llm.KindBadResponse, "empty openai message")
	}

	c.logger.Info("llm.openai.ok", "req_id", rid, "chars", len(content),
		"elapsed_ms", time.Since(start).Milliseconds())
	return content, nil
}

func (c *Client) toContent(rid string, parts []llm.Part) []map[string]any {
	out := make([]map[string]any, 0, len(parts))
	for _, p := range parts {
		switch {
		case !p.IsInline():
			out = append(out, map[string]any{"type": "text", "text": p.Text})
		case p.MediaType == "application/pdf":
			text, err := pdfText(p.Data)
			if err != nil || strings.TrimSpace(text) == "" {
				c.logger.Warn("llm.openai.pdf_text_unavailable", "req_id", rid, "error", err)
				out = append(out, map[string]any{
					"type": "file",
					"file": map[string]any{"filename": "invoice.pdf", "file_data": dataURL(p)},
				})
				continue
			}
			out = append(out, map[string]any{"type": "text", "text": "Document text:\n" + text})
		default:
			out = append(out, map[string]any{
				"type":      "image_url",
				"image_url": map[string]any{"url": dataURL(p)},
			})
		}
	}
	return out
}

func dataURL(p llm.Part) string {
	return "data:" + p.MediaType + ";base64," + base64.StdEncoding.EncodeToString(p.Data)
}

func pdfText(data []byte) (text string, err error) {
	// The reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("read pdf text: %v", r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return truncateText(buf.String(), maxDocumentText), nil
}

// truncateText cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncateText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
