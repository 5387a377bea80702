package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"polychat/internal/models"
)

const maxErrorBody = 32 * 1024

// APIError is a non-2xx provider response.
type APIError struct {
	Provider   models.ProviderKind
	StatusCode int
	Code       string
	Message    string
	RetryAfter time.Duration
	Raw        []byte
}

func (e *APIError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: http %d: %s (%s)", e.Provider, e.StatusCode, msg, e.Code)
	}
	return fmt.Sprintf("%s: http %d: %s", e.Provider, e.StatusCode, msg)
}

func AsAPIError(err error) (*APIError, bool) {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// ProtocolError is a response the adapter could not parse. Never
// retryable: the provider answered, just not in the expected shape.
type ProtocolError struct {
	Provider models.ProviderKind
	Message  string
	Raw      []byte
	Cause    error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: protocol error: %s", e.Provider, e.Message)
}

func (e *ProtocolError) Unwrap() error { return e.Cause }

// ContentError means the remote model rejected multimodal input. The
// message is already user-facing.
type ContentError struct {
	Provider models.ProviderKind
	Message  string
}

func (e *ContentError) Error() string { return e.Message }

// newAPIError drains a failed response into an APIError, parsing the
// common {"error":{...}} envelope and the Retry-After header.
func newAPIError(provider models.ProviderKind, resp *http.Response) *APIError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	ae := &APIError{
		Provider:   provider,
		StatusCode: resp.StatusCode,
		Raw:        raw,
	}
	var env struct {
		Error *struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    any    `json:"code"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &env) == nil {
		switch {
		case env.Error != nil:
			ae.Message = env.Error.Message
			if env.Error.Code != nil {
				ae.Code = stringifyCode(env.Error.Code)
			} else {
				ae.Code = env.Error.Type
			}
		case env.Message != "":
			ae.Message = env.Message
		}
	}
	if v := strings.TrimSpace(resp.Header.Get("Retry-After")); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			ae.RetryAfter = time.Duration(secs) * time.Second
		} else if t, err := http.ParseTime(v); err == nil {
			if d := time.Until(t); d > 0 {
				ae.RetryAfter = d
			}
		}
	}
	return ae
}

func stringifyCode(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, _ := json.Marshal(v)
	return string(b)
}

// contentErrorHints flag 4xx rejections of image input. Heuristic; there
// is no canonical signal across providers.
var contentErrorHints = []string{
	"image", "vision", "multimodal", "unsupported content", "invalid content type",
}

// remapContentError converts a request-rejection into a ContentError when
// the turn carried images and the provider's complaint looks like a
// modality mismatch.
func remapContentError(err error, hasImages bool) error {
	if !hasImages {
		return err
	}
	ae, ok := AsAPIError(err)
	if !ok || ae.StatusCode < 400 || ae.StatusCode >= 500 {
		return err
	}
	body := strings.ToLower(ae.Message + " " + string(ae.Raw))
	for _, hint := range contentErrorHints {
		if strings.Contains(body, hint) {
			return &ContentError{
				Provider: ae.Provider,
				Message:  "This model rejected the image input. Use a vision-capable model for image attachments.",
			}
		}
	}
	return err
}
