package mocks

import (
	"context"
	"io"
	"sync"

	"polychat/internal/llm"
)

// AdapterMock scripts a provider adapter.
type AdapterMock struct {
	OpenStreamFunc       func(ctx context.Context, req llm.ChatRequest) (llm.Stream, error)
	CheckCredentialsFunc func(ctx context.Context) bool
	FamilyValue          llm.Family
}

func (m *AdapterMock) OpenStream(ctx context.Context, req llm.ChatRequest) (llm.Stream, error) {
	if m.OpenStreamFunc != nil {
		return m.OpenStreamFunc(ctx, req)
	}
	return NewScriptedStream(), nil
}

func (m *AdapterMock) CheckCredentials(ctx context.Context) bool {
	if m.CheckCredentialsFunc != nil {
		return m.CheckCredentialsFunc(ctx)
	}
	return true
}

func (m *AdapterMock) Family() llm.Family { return m.FamilyValue }

// ScriptedStream replays a fixed chunk sequence, optionally ending with
// an error instead of EOF.
type ScriptedStream struct {
	mu     sync.Mutex
	chunks []llm.Chunk
	err    error
	pos    int
	closed bool
}

func NewScriptedStream(chunks ...llm.Chunk) *ScriptedStream {
	return &ScriptedStream{chunks: chunks}
}

// AppendChunks is shorthand for a plain text script.
func AppendChunks(texts ...string) []llm.Chunk {
	chunks := make([]llm.Chunk, 0, len(texts))
	for _, t := range texts {
		chunks = append(chunks, llm.Chunk{Kind: llm.Append, Text: t})
	}
	return chunks
}

func (s *ScriptedStream) FailWith(err error) *ScriptedStream {
	s.err = err
	return s
}

func (s *ScriptedStream) Recv() (llm.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.chunks) {
		if s.err != nil {
			return llm.Chunk{}, s.err
		}
		return llm.Chunk{}, io.EOF
	}
	c := s.chunks[s.pos]
	s.pos++
	return c, nil
}

func (s *ScriptedStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *ScriptedStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
