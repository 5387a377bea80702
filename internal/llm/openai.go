package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"polychat/internal/models"
)

// openAIAdapter speaks the OpenAI-compatible chat completions protocol:
// POST {base}/chat/completions with stream:true, SSE frames terminated by
// a [DONE] sentinel, delta at choices[0].delta.content.
type openAIAdapter struct {
	cfg    models.ModelConfig
	client *http.Client
}

func newOpenAIAdapter(cfg models.ModelConfig) *openAIAdapter {
	return &openAIAdapter{cfg: cfg, client: newHTTPClient()}
}

func (a *openAIAdapter) Family() Family { return FamilyToken }

func (a *openAIAdapter) baseURL() string {
	base := strings.TrimSpace(a.cfg.APIURL)
	if base == "" {
		base = DefaultBaseURL(a.cfg.Provider)
	}
	return strings.TrimSuffix(base, "/")
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

func openAIContent(m models.Message) any {
	if len(m.Images) == 0 {
		return m.Content
	}
	parts := []map[string]any{{"type": "text", "text": m.Content}}
	for _, img := range m.Images {
		parts = append(parts, map[string]any{
			"type": "image_url",
			"image_url": map[string]string{
				"url": fmt.Sprintf("data:%s;base64,%s", img.MimeType, img.Data),
			},
		})
	}
	return parts
}

func (a *openAIAdapter) OpenStream(ctx context.Context, req ChatRequest) (Stream, error) {
	msgs := make([]openAIMessage, 0, len(req.History))
	for _, m := range req.History {
		msgs = append(msgs, openAIMessage{Role: string(m.Role), Content: openAIContent(m)})
	}
	body := map[string]any{
		"model":    a.cfg.ModelName,
		"messages": msgs,
		"stream":   true,
	}
	if opts := req.Options; opts != nil {
		if opts.Temperature != nil {
			body["temperature"] = *opts.Temperature
		}
		if opts.MaxTokens != nil {
			body["max_tokens"] = *opts.MaxTokens
		}
	}

	resp, err := a.post(ctx, a.baseURL()+"/chat/completions", body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, remapContentError(newAPIError(a.cfg.Provider, resp), hasImages(req.History))
	}
	return newTokenStream(resp, parseOpenAIFrame), nil
}

func parseOpenAIFrame(data []byte) frameResult {
	if bytes.Equal(bytes.TrimSpace(data), []byte("[DONE]")) {
		return frameResult{Done: true}
	}
	var frame struct {
		Choices []struct {
			Delta struct {
				Content string `json:"content"`
			} `json:"delta"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(data, &frame); err != nil || len(frame.Choices) == 0 {
		return frameResult{Skip: true}
	}
	return frameResult{Text: frame.Choices[0].Delta.Content}
}

func (a *openAIAdapter) CheckCredentials(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL()+"/models", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	resp, err := a.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (a *openAIAdapter) post(ctx context.Context, url string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	return a.client.Do(req)
}

func hasImages(history []models.Message) bool {
	for _, m := range history {
		if len(m.Images) > 0 {
			return true
		}
	}
	return false
}
