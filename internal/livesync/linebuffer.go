package livesync

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// LineBuffer splits a byte stream into lines. Bytes after the last newline
// are kept until a later chunk completes them.
type LineBuffer struct {
	pending []byte
}

// Feed appends chunk and returns every line it completed, without the line
// terminator.
func (b *LineBuffer) Feed(chunk []byte) []string {
	b.pending = append(b.pending, chunk...)
	var lines []string
	for {
		i := bytes.IndexByte(b.pending, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, string(bytes.TrimSuffix(b.pending[:i], []byte{'\r'})))
		b.pending = b.pending[i+1:]
	}
	if len(b.pending) == 0 {
		b.pending = nil
	}
	return lines
}

// Flush returns and clears the unterminated remainder.
func (b *LineBuffer) Flush() string {
	rest := strings.TrimSuffix(string(b.pending), "\r")
	b.pending = nil
	return rest
}

// Pending reports how many bytes are waiting for a line terminator.
func (b *LineBuffer) Pending() int {
	return len(b.pending)
}

// dataField extracts the value of a "data:" line. Other lines (blank
// separators, comments, other event fields) carry no record.
func dataField(line string) (string, bool) {
	if !strings.HasPrefix(line, "data:") {
		return "", false
	}
	return strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "), true
}

// DecodeFunc turns the value of one data line into a payload.
type DecodeFunc func(data []byte) (Payload, error)

// DecodeLogRecord decodes a log feed record.
func DecodeLogRecord(data []byte) (Payload, error) {
	var rec LogRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	if rec.Level == "" || rec.Message == "" {
		return nil, fmt.Errorf("log record missing level or message")
	}
	return rec, nil
}

// DecodeMetricSample decodes a monitoring feed sample.
func DecodeMetricSample(data []byte) (Payload, error) {
	var raw struct {
		MetricSample
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	ts, err := parseTimestamp(raw.Timestamp)
	if err != nil {
		return nil, err
	}
	if ts.IsZero() {
		ts = time.Now()
	}
	sample := raw.MetricSample
	sample.SampledAt = ts
	return sample, nil
}
