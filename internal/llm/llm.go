// Package llm wraps the provider wire protocols behind one streaming
// contract. Adapters never retry; retry policy belongs to the caller.
package llm

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"polychat/internal/models"
)

// connectTimeout bounds connection setup and time-to-first-byte only.
// Total stream duration is governed by the caller's watchdog.
const connectTimeout = 15 * time.Second

// ChunkKind discriminates how a chunk combines with accumulated content.
type ChunkKind int

const (
	// Append concatenates the chunk onto accumulated content.
	Append ChunkKind = iota
	// Replace discards everything accumulated so far; the chunk text is
	// the whole content. Used by the image adapter, whose final artifact
	// is a single markdown reference rather than a delta.
	Replace
)

// Chunk is one incremental unit of streamed output.
type Chunk struct {
	Kind ChunkKind
	Text string
}

// Stream is a lazy, single-consumption sequence of chunks. Recv returns
// io.EOF after the last chunk. Close may be called at any time.
type Stream interface {
	Recv() (Chunk, error)
	Close() error
}

// Family distinguishes the two latency profiles so callers can budget
// idle timeouts accordingly.
type Family int

const (
	// FamilyToken pushes incremental frames over one connection.
	FamilyToken Family = iota
	// FamilyPolling submits a job and polls until a terminal state.
	FamilyPolling
)

// ChatRequest carries the full re-serialized history; the prompt is the
// last user message.
type ChatRequest struct {
	History []models.Message
	Options *models.GenerationOptions
}

type Adapter interface {
	// OpenStream opens the provider call. It fails immediately on
	// protocol or HTTP errors and never retries internally.
	OpenStream(ctx context.Context, req ChatRequest) (Stream, error)
	// CheckCredentials is a cheap probe (list-models or minimal
	// completion). Any failure, network included, reports false.
	CheckCredentials(ctx context.Context) bool
	Family() Family
}

// New maps a config's provider kind to its concrete adapter. Adding a
// provider adds one case here plus its adapter file.
func New(cfg models.ModelConfig) (Adapter, error) {
	switch cfg.Provider {
	case models.ProviderOpenAI:
		return newOpenAIAdapter(cfg), nil
	case models.ProviderAnthropic:
		return newAnthropicAdapter(cfg), nil
	case models.ProviderGemini:
		return newGeminiAdapter(cfg), nil
	case models.ProviderImage:
		return newImageAdapter(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %q", cfg.Provider)
	}
}

// DefaultBaseURL returns the fixed endpoint for provider kinds that have
// one; kinds returning "" require an explicit apiUrl.
func DefaultBaseURL(kind models.ProviderKind) string {
	switch kind {
	case models.ProviderAnthropic:
		return "https://api.anthropic.com"
	case models.ProviderGemini:
		return "https://generativelanguage.googleapis.com/v1beta"
	default:
		return ""
	}
}

// newHTTPClient builds a client with a connect/TTFB bound and no overall
// timeout, so long streams are not cut off mid-flight.
func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   connectTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   connectTimeout,
			ResponseHeaderTimeout: connectTimeout,
		},
	}
}
