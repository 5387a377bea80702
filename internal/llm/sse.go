package llm

import (
	"bufio"
	"bytes"
	"io"
)

// sseReader yields the data payload of successive SSE events. Comment
// lines and non-data fields are skipped; multiple data lines in one event
// are joined with \n per the SSE spec.
type sseReader struct {
	br *bufio.Reader
}

func newSSEReader(r io.Reader) *sseReader {
	return &sseReader{br: bufio.NewReaderSize(r, 64*1024)}
}

func (s *sseReader) Next() ([]byte, error) {
	var data [][]byte
	for {
		line, err := s.br.ReadBytes('\n')
		line = bytes.TrimRight(line, "\r\n")
		if err != nil {
			if len(line) > 0 {
				data = sseAppend(data, line)
			}
			if len(data) > 0 {
				// Flush a trailing event the server never terminated.
				return bytes.Join(data, []byte("\n")), nil
			}
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, err
		}
		if len(line) == 0 {
			if len(data) == 0 {
				continue
			}
			return bytes.Join(data, []byte("\n")), nil
		}
		if line[0] == ':' {
			continue
		}
		data = sseAppend(data, line)
	}
}

func sseAppend(data [][]byte, line []byte) [][]byte {
	rest, ok := bytes.CutPrefix(line, []byte("data:"))
	if !ok {
		return data
	}
	if len(rest) > 0 && rest[0] == ' ' {
		rest = rest[1:]
	}
	return append(data, bytes.Clone(rest))
}
