// Package gemini implements the extraction service against Google's
// multimodal Gemini models: the scanned document goes up as an inline blob
// with its MIME type, and the model returns the candidate list as JSON.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"github.com/safesite-labs/sitelog-intake/internal/common"
	"github.com/safesite-labs/sitelog-intake/internal/entity"
	"github.com/safesite-labs/sitelog-intake/internal/extract"
)

type Client struct {
	cfg    Config
	genai  *genai.Client
	logger *slog.Logger
}

var _ extract.Service = (*Client)(nil)

func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	cfg = cfg.withDefaults()
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	gc, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Client{cfg: cfg, genai: gc, logger: logger}, nil
}

// Close releases resources held by the client.
func (c *Client) Close() error {
	if c.genai != nil {
		return c.genai.Close()
	}
	return nil
}

// Extract implements extract.Service.
func (c *Client) Extract(ctx context.Context, payload entity.Payload, guidelines []string) ([]entity.CandidateRecord, error) {
	rid := common.RequestIDFromContext(ctx)
	if rid == "" {
		rid = uuid.New().String()
	}
	start := time.Now()

	c.logger.Info("gemini.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"mime", payload.MIMEType,
		"bytes", len(payload.Data),
		"guidelines", len(guidelines),
	)

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	model := c.genai.GenerativeModel(c.cfg.Model)
	model.SetTemperature(c.cfg.Temperature)
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx,
		genai.Blob{MIMEType: payload.MIMEType, Data: payload.Data},
		genai.Text(buildPrompt(guidelines)),
	)
	if err != nil {
		c.logger.Error("gemini.extract.call_error",
			"req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, fmt.Errorf("generate content: %w", err)
	}

	text, err := textFromResponse(resp)
	if err != nil {
		c.logger.Error("gemini.extract.empty_response",
			"req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}
	raw := []byte(cleanJSONBlock(text))

	if err := extract.ValidateCandidatesJSON(raw); err != nil {
		c.logger.Error("gemini.extract.schema_validation_failed",
			"req_id", rid, "error", err, "content", string(raw),
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	var out []entity.CandidateRecord
	if err := json.Unmarshal(raw, &out); err != nil {
		c.logger.Error("gemini.extract.unmarshal_failed",
			"req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, fmt.Errorf("unmarshal candidates: %w", err)
	}

	c.logger.Info("gemini.extract.ok",
		"req_id", rid,
		"candidates", len(out),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func buildPrompt(guidelines []string) string {
	var b strings.Builder
	b.WriteString("You are a construction-site safety-log parser. The attached document is one scanned daily log sheet. ")
	b.WriteString("It may contain entries for SEVERAL independent teams; return one record per team. ")
	b.WriteString("Return ONLY a JSON array matching this JSON Schema, no markdown, no explanation:\n")
	b.WriteString(mustJSON(extract.BuildCandidateListSchema()))
	b.WriteString("\nCopy names and descriptions verbatim from the sheet; do not invent teams. ")
	b.WriteString("If the sheet is unreadable or contains no log entries, return [].")
	if len(guidelines) > 0 {
		b.WriteString("\nHigh-priority hazard phrases, in priority order; prefer these wordings when the sheet's risks match them:\n- ")
		b.WriteString(strings.Join(guidelines, "\n- "))
	}
	return b.String()
}

func textFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in gemini response")
	}
	cand := resp.Candidates[0]
	if cand.Content == nil || len(cand.Content.Parts) == 0 {
		return "", fmt.Errorf("empty content in gemini response")
	}
	var b strings.Builder
	for _, part := range cand.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("no text parts in gemini response")
	}
	return b.String(), nil
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
