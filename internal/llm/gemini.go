package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"polychat/internal/models"
)

// geminiAdapter speaks the Google streamGenerateContent protocol with
// alt=sse framing; delta at candidates[0].content.parts[0].text.
type geminiAdapter struct {
	cfg    models.ModelConfig
	client *http.Client
}

func newGeminiAdapter(cfg models.ModelConfig) *geminiAdapter {
	return &geminiAdapter{cfg: cfg, client: newHTTPClient()}
}

func (a *geminiAdapter) Family() Family { return FamilyToken }

func (a *geminiAdapter) baseURL() string {
	base := strings.TrimSpace(a.cfg.APIURL)
	if base == "" {
		base = DefaultBaseURL(a.cfg.Provider)
	}
	return strings.TrimSuffix(base, "/")
}

// Gemini names the assistant role "model".
func geminiRole(r models.Role) string {
	if r == models.RoleAssistant {
		return "model"
	}
	return "user"
}

func geminiParts(m models.Message) []map[string]any {
	parts := []map[string]any{{"text": m.Content}}
	for _, img := range m.Images {
		parts = append(parts, map[string]any{
			"inline_data": map[string]string{
				"mime_type": img.MimeType,
				"data":      img.Data,
			},
		})
	}
	return parts
}

func (a *geminiAdapter) OpenStream(ctx context.Context, req ChatRequest) (Stream, error) {
	contents := make([]map[string]any, 0, len(req.History))
	for _, m := range req.History {
		contents = append(contents, map[string]any{
			"role":  geminiRole(m.Role),
			"parts": geminiParts(m),
		})
	}
	body := map[string]any{"contents": contents}
	if opts := req.Options; opts != nil {
		genCfg := map[string]any{}
		if opts.Temperature != nil {
			genCfg["temperature"] = *opts.Temperature
		}
		if opts.MaxTokens != nil {
			genCfg["maxOutputTokens"] = *opts.MaxTokens
		}
		if len(genCfg) > 0 {
			body["generationConfig"] = genCfg
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/models/%s:streamGenerateContent?key=%s&alt=sse",
		a.baseURL(), url.PathEscape(a.cfg.ModelName), url.QueryEscape(a.cfg.APIKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, remapContentError(newAPIError(a.cfg.Provider, resp), hasImages(req.History))
	}
	return newTokenStream(resp, parseGeminiFrame), nil
}

func parseGeminiFrame(data []byte) frameResult {
	var frame struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		return frameResult{Skip: true}
	}
	if len(frame.Candidates) == 0 || len(frame.Candidates[0].Content.Parts) == 0 {
		return frameResult{Skip: true}
	}
	return frameResult{Text: frame.Candidates[0].Content.Parts[0].Text}
}

func (a *geminiAdapter) CheckCredentials(ctx context.Context) bool {
	endpoint := fmt.Sprintf("%s/models?key=%s", a.baseURL(), url.QueryEscape(a.cfg.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
