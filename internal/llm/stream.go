package llm

import (
	"errors"
	"io"
	"net/http"
)

// frameResult is what a protocol-specific frame parser extracted from one
// SSE event.
type frameResult struct {
	Text string
	Done bool
	// Skip marks heartbeats, comments, and frames without incremental
	// text. Malformed frames are also skipped rather than failing the
	// whole stream.
	Skip bool
}

// tokenStream adapts a frame-delimited HTTP response to the Stream
// contract. All three token-streaming protocols share it; only the frame
// parser differs.
type tokenStream struct {
	resp   *http.Response
	sse    *sseReader
	parse  func(data []byte) frameResult
	closed bool
	done   bool
}

func newTokenStream(resp *http.Response, parse func([]byte) frameResult) *tokenStream {
	return &tokenStream{
		resp:  resp,
		sse:   newSSEReader(resp.Body),
		parse: parse,
	}
}

func (s *tokenStream) Recv() (Chunk, error) {
	if s.closed {
		return Chunk{}, errors.New("stream already closed")
	}
	for {
		if s.done {
			return Chunk{}, io.EOF
		}
		data, err := s.sse.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				// Some providers close the connection without a
				// terminator frame.
				s.done = true
				return Chunk{}, io.EOF
			}
			return Chunk{}, err
		}
		res := s.parse(data)
		if res.Done {
			s.done = true
			return Chunk{}, io.EOF
		}
		if res.Skip || res.Text == "" {
			continue
		}
		return Chunk{Kind: Append, Text: res.Text}, nil
	}
}

func (s *tokenStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.resp != nil && s.resp.Body != nil {
		return s.resp.Body.Close()
	}
	return nil
}
