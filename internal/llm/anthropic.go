package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"polychat/internal/models"
)

const anthropicVersion = "2023-06-01"

// Anthropic requires max_tokens on every request.
const anthropicDefaultMaxTokens = 4096

// anthropicAdapter speaks the Anthropic messages protocol: SSE events
// filtered to content_block_delta, delta at delta.text.
type anthropicAdapter struct {
	cfg    models.ModelConfig
	client *http.Client
}

func newAnthropicAdapter(cfg models.ModelConfig) *anthropicAdapter {
	return &anthropicAdapter{cfg: cfg, client: newHTTPClient()}
}

func (a *anthropicAdapter) Family() Family { return FamilyToken }

func (a *anthropicAdapter) baseURL() string {
	base := strings.TrimSpace(a.cfg.APIURL)
	if base == "" {
		base = DefaultBaseURL(a.cfg.Provider)
	}
	return strings.TrimSuffix(base, "/")
}

func anthropicContent(m models.Message) any {
	if len(m.Images) == 0 {
		return m.Content
	}
	blocks := []map[string]any{}
	for _, img := range m.Images {
		blocks = append(blocks, map[string]any{
			"type": "image",
			"source": map[string]string{
				"type":       "base64",
				"media_type": img.MimeType,
				"data":       img.Data,
			},
		})
	}
	blocks = append(blocks, map[string]any{"type": "text", "text": m.Content})
	return blocks
}

func (a *anthropicAdapter) OpenStream(ctx context.Context, req ChatRequest) (Stream, error) {
	msgs := make([]map[string]any, 0, len(req.History))
	for _, m := range req.History {
		msgs = append(msgs, map[string]any{
			"role":    string(m.Role),
			"content": anthropicContent(m),
		})
	}
	maxTokens := anthropicDefaultMaxTokens
	if req.Options != nil && req.Options.MaxTokens != nil {
		maxTokens = *req.Options.MaxTokens
	}
	body := map[string]any{
		"model":      a.cfg.ModelName,
		"messages":   msgs,
		"max_tokens": maxTokens,
		"stream":     true,
	}
	if req.Options != nil && req.Options.Temperature != nil {
		body["temperature"] = *req.Options.Temperature
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL()+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, remapContentError(newAPIError(a.cfg.Provider, resp), hasImages(req.History))
	}
	return newTokenStream(resp, parseAnthropicFrame), nil
}

func parseAnthropicFrame(data []byte) frameResult {
	var frame struct {
		Type  string `json:"type"`
		Delta struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"delta"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		return frameResult{Skip: true}
	}
	switch frame.Type {
	case "message_stop":
		return frameResult{Done: true}
	case "content_block_delta":
		return frameResult{Text: frame.Delta.Text}
	default:
		// ping, message_start, content_block_start, ...
		return frameResult{Skip: true}
	}
}

// CheckCredentials issues a one-token completion; Anthropic has no cheap
// list-models call on older API surfaces.
func (a *anthropicAdapter) CheckCredentials(ctx context.Context) bool {
	body := map[string]any{
		"model":      a.cfg.ModelName,
		"max_tokens": 1,
		"messages":   []map[string]any{{"role": "user", "content": "ping"}},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL()+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.cfg.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	resp, err := a.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
