package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"polychat/internal/models"
)

const (
	defaultPollInterval = 5 * time.Second
	// 60 polls at 5s is a 5-minute ceiling per job.
	defaultMaxPolls = 60
)

// Field-name aliases across image APIs, in precedence order. There is no
// canonical source for these; extend the tables when a provider deviates.
var (
	taskIDAliases = []string{"task_id", "taskId", "id", "request_id"}
	statusAliases = []string{"status", "state", "task_status"}
	imageAliases  = []string{"image_url", "imageUrl", "url", "output_url", "image"}
)

var (
	successStatuses = map[string]bool{"succeeded": true, "success": true, "completed": true, "done": true, "finished": true}
	failureStatuses = map[string]bool{"failed": true, "failure": true, "error": true, "cancelled": true, "canceled": true, "expired": true}
)

// imageAdapter drives the asynchronous image-generation protocol: one
// submit POST, then status polls until a terminal state. The result is a
// single Replace chunk holding a markdown image reference, because the
// artifact is not an incremental delta.
type imageAdapter struct {
	cfg    models.ModelConfig
	client *http.Client

	pollInterval time.Duration
	maxPolls     int
}

func newImageAdapter(cfg models.ModelConfig) *imageAdapter {
	return &imageAdapter{
		cfg:          cfg,
		client:       newHTTPClient(),
		pollInterval: defaultPollInterval,
		maxPolls:     defaultMaxPolls,
	}
}

func (a *imageAdapter) Family() Family { return FamilyPolling }

func (a *imageAdapter) baseURL() string {
	return strings.TrimSuffix(strings.TrimSpace(a.cfg.APIURL), "/")
}

// OpenStream submits the job; polling happens lazily in Recv so the
// caller can cancel without paying for buffered work.
func (a *imageAdapter) OpenStream(ctx context.Context, req ChatRequest) (Stream, error) {
	prompt := ""
	for i := len(req.History) - 1; i >= 0; i-- {
		if req.History[i].Role == models.RoleUser {
			prompt = req.History[i].Content
			break
		}
	}
	body := map[string]any{
		"model":  a.cfg.ModelName,
		"prompt": prompt,
		"n":      1,
	}
	if opts := req.Options; opts != nil {
		if opts.ImageSize != "" {
			body["size"] = opts.ImageSize
		}
		if opts.ImageQuality != "" {
			body["quality"] = opts.ImageQuality
		}
		if opts.ImageStyle != "" {
			body["style"] = opts.ImageStyle
		}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL()+"/v1/images/generations", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newAPIError(a.cfg.Provider, resp)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return nil, err
	}
	taskID, ok := lookupAlias(raw, taskIDAliases)
	if !ok {
		return nil, &ProtocolError{
			Provider: a.cfg.Provider,
			Message:  "submit response carries no recognizable task id",
			Raw:      raw,
		}
	}
	return &pollStream{adapter: a, ctx: ctx, taskID: taskID}, nil
}

// pollStream yields exactly one Replace chunk, then io.EOF.
type pollStream struct {
	adapter *imageAdapter
	ctx     context.Context
	taskID  string
	yielded bool
	closed  bool
}

func (s *pollStream) Recv() (Chunk, error) {
	if s.closed {
		return Chunk{}, io.EOF
	}
	if s.yielded {
		return Chunk{}, io.EOF
	}
	url, err := s.adapter.awaitResult(s.ctx, s.taskID)
	if err != nil {
		return Chunk{}, err
	}
	s.yielded = true
	return Chunk{Kind: Replace, Text: fmt.Sprintf("![generated image](%s)", url)}, nil
}

func (s *pollStream) Close() error {
	// The remote job keeps running server-side; we merely stop polling.
	s.closed = true
	return nil
}

func (a *imageAdapter) awaitResult(ctx context.Context, taskID string) (string, error) {
	for attempt := 0; attempt < a.maxPolls; attempt++ {
		if err := sleepCtx(ctx, a.pollInterval); err != nil {
			return "", err
		}
		raw, err := a.pollOnce(ctx, taskID)
		if err != nil {
			return "", err
		}
		status, ok := lookupAlias(raw, statusAliases)
		if !ok {
			return "", &ProtocolError{Provider: a.cfg.Provider, Message: "poll response carries no recognizable status", Raw: raw}
		}
		status = strings.ToLower(status)
		switch {
		case successStatuses[status]:
			url, ok := lookupAlias(raw, imageAliases)
			if !ok {
				return "", &ProtocolError{Provider: a.cfg.Provider, Message: "completed task carries no image location", Raw: raw}
			}
			return url, nil
		case failureStatuses[status]:
			return "", fmt.Errorf("%s: image task %s ended in state %q", a.cfg.Provider, taskID, status)
		}
	}
	return "", fmt.Errorf("%s: image task %s still pending after %d polls", a.cfg.Provider, taskID, a.maxPolls)
}

func (a *imageAdapter) pollOnce(ctx context.Context, taskID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL()+"/v1/tasks/"+taskID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, newAPIError(a.cfg.Provider, resp)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
}

func (a *imageAdapter) CheckCredentials(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL()+"/v1/models", nil)
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

// lookupAlias scans the aliases in precedence order against the document
// root, then one level down inside data/result/output/task wrappers.
func lookupAlias(raw []byte, aliases []string) (string, bool) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", false
	}
	if v, ok := lookupAliasIn(doc, aliases); ok {
		return v, true
	}
	for _, wrapper := range []string{"data", "result", "output", "task"} {
		inner, ok := doc[wrapper]
		if !ok {
			continue
		}
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(inner, &nested); err == nil {
			if v, ok := lookupAliasIn(nested, aliases); ok {
				return v, true
			}
			continue
		}
		// Some APIs wrap the record in a single-element array.
		var list []map[string]json.RawMessage
		if err := json.Unmarshal(inner, &list); err == nil && len(list) > 0 {
			if v, ok := lookupAliasIn(list[0], aliases); ok {
				return v, true
			}
		}
	}
	return "", false
}

func lookupAliasIn(doc map[string]json.RawMessage, aliases []string) (string, bool) {
	for _, key := range aliases {
		raw, ok := doc[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s, true
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil {
			return n.String(), true
		}
	}
	return "", false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
