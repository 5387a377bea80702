package models

import (
	"fmt"
	"strconv"
	"time"
)

// isoMillis is the wire format for message timestamps: ISO-8601 with
// millisecond precision. Values round-trip losslessly through JSON.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// ISOTime wraps time.Time with a fixed millisecond JSON encoding.
type ISOTime struct {
	time.Time
}

func NewISOTime(t time.Time) ISOTime {
	return ISOTime{t.Truncate(time.Millisecond)}
}

func Now() ISOTime {
	return NewISOTime(time.Now().UTC())
}

func (t ISOTime) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(t.Format(isoMillis))), nil
}

func (t *ISOTime) UnmarshalJSON(data []byte) error {
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("timestamp is not a JSON string: %w", err)
	}
	parsed, err := time.Parse(isoMillis, s)
	if err != nil {
		// Tolerate plain RFC 3339 from older records.
		parsed, err = time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("parse timestamp %q: %w", s, err)
		}
	}
	t.Time = parsed.Truncate(time.Millisecond)
	return nil
}
