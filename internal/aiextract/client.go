// Package aiextract is the AI-assisted extraction strategy. It sends
// document text to a caller-configured chat-completions endpoint and
// expects a structured {key, value} list back. Transport and parse
// failures surface as common.ErrExtractorResponse so callers can
// distinguish "the call broke" from "extraction found nothing" and
// retry with the rule-based strategy without side effects.
package aiextract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zxj6827111-blip/tianbaoxitong-sub000/constants"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/common"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/extract"
)

// Config for the AI extraction endpoint. Model, key, and base URL are
// caller-supplied; nothing is hardcoded to one provider.
type Config struct {
	Model       string
	APIKey      string
	BaseURL     string // default https://api.openai.com/v1
	Temperature float32
	Timeout     time.Duration
	MaxChars    int // document text cap per request, default 12000
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	resolver   extract.KeyResolver
	log        *slog.Logger
}

func NewClient(cfg Config, resolver extract.KeyResolver, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 12000
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		resolver:   resolver,
		log:        logger,
	}
}

// Extract implements extract.Extractor.
func (c *Client) Extract(ctx context.Context, in extract.Input) (extract.Result, error) {
	rid := uuid.New().String()
	start := time.Now()

	text := in.Doc.FullText()
	for key, extra := range in.ExtraText {
		text += "\n[" + key + "]\n" + extra
	}
	if text == "" {
		return extract.Result{}, common.ErrNoSourceText
	}
	if len(text) > c.cfg.MaxChars {
		text = text[:c.cfg.MaxChars]
	}

	c.log.Info("ai.extract.start",
		"req_id", rid, "model", c.cfg.Model, "text_len", len(text))

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": systemPrompt()},
			{"role": "user", "content": "Document text:\n" + text},
			{"role": "system", "content": "JSON Schema:\n" + schemaJSON()},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := c.post(ctx, endpoint, body)
	if err != nil {
		c.log.Error("ai.extract.http_error",
			"req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return extract.Result{}, common.NewAppError("AI_TRANSPORT", "extraction endpoint call failed", common.ErrExtractorResponse)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil || len(cc.Choices) == 0 {
		c.log.Error("ai.extract.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw))
		return extract.Result{}, common.NewAppError("AI_DECODE", "unparseable endpoint response", common.ErrExtractorResponse)
	}
	content := []byte(strings.TrimSpace(cc.Choices[0].Message.Content))

	if err := validateResponse(content); err != nil {
		c.log.Error("ai.extract.schema_validation_failed",
			"req_id", rid, "error", err, "content", string(content))
		return extract.Result{}, common.NewAppError("AI_SCHEMA", "model output failed schema validation", common.ErrExtractorResponse)
	}

	var payload struct {
		Fields []struct {
			Key   string  `json:"key"`
			Value float64 `json:"value"`
		} `json:"fields"`
	}
	if err := json.Unmarshal(content, &payload); err != nil {
		return extract.Result{}, common.NewAppError("AI_DECODE", "unmarshal fields", common.ErrExtractorResponse)
	}

	res := c.toResult(ctx, payload.Fields)
	c.log.Info("ai.extract.ok",
		"req_id", rid, "items", len(res.Items), "unmatched", len(res.UnmatchedLabels),
		"elapsed_ms", time.Since(start).Milliseconds())
	return res, nil
}

// toResult resolves model-returned keys. The model may answer with a
// canonical key or with the raw label it saw; both are accepted.
func (c *Client) toResult(ctx context.Context, pairs []struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
}) extract.Result {
	var res extract.Result
	for _, p := range pairs {
		item := extract.Item{RawLabel: p.Key, Value: p.Value, Snippet: "ai:" + p.Key}
		if isCanonicalKey(p.Key) {
			item.Key = constants.FieldKey(p.Key)
			item.Confidence = constants.ConfidenceMedium
		} else if key, ok := constants.ResolveLabel(p.Key); ok {
			item.Key = key
			item.Confidence = constants.ConfidenceMedium
		} else if c.resolver != nil {
			if key, ok := c.resolver.ResolveApproved(ctx, p.Key); ok {
				item.Key = key
				item.Confidence = constants.ConfidenceHigh
			}
		}
		if item.Key == "" {
			res.UnmatchedLabels = append(res.UnmatchedLabels, p.Key)
			continue
		}
		res.Items = append(res.Items, item)
	}
	return res
}

func isCanonicalKey(s string) bool {
	for _, k := range constants.AllFieldKeys() {
		if string(k) == s {
			return true
		}
	}
	return false
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("endpoint http error: %w", err)
	}
	defer func(rc io.ReadCloser) {
		if cerr := rc.Close(); cerr != nil {
			c.log.Warn("response body close error", "error", cerr)
		}
	}(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("endpoint status %d: %s", resp.StatusCode, string(raw))
	}
	return raw, nil
}

func systemPrompt() string {
	parts := []string{
		"You read Chinese government budget disclosure tables.",
		"Return ONLY JSON matching the provided schema: {\"fields\":[{\"key\",\"value\"}]}.",
		"Use canonical keys when you recognize a line, otherwise the exact label text you saw.",
		"Values are amounts in 万元 as plain numbers.",
		"Known canonical keys: " + strings.Join(keyNames(), ", ") + ".",
		"Never output null; omit fields you cannot read.",
	}
	return strings.Join(parts, " ")
}

func keyNames() []string {
	keys := constants.AllFieldKeys()
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = string(k)
	}
	return out
}
