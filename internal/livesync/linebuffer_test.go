package livesync

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFeed = "data: {\"timestamp\":\"2024-05-01T10:00:00\",\"level\":\"INFO\",\"service\":\"api\",\"message\":\"started\",\"request_id\":\"a1\"}\n\n" +
	": keepalive\n" +
	"data: {\"timestamp\":\"2024-05-01T10:00:01\",\"level\":\"WARN\",\"service\":\"db\",\"message\":\"slow query\",\"request_id\":\"b2\"}\r\n\r\n" +
	"event: log\n" +
	"data: {\"timestamp\":\"2024-05-01T10:00:02\",\"level\":\"ERROR\",\"service\":\"cache\",\"message\":\"miss storm\",\"request_id\":\"c3\"}\n\n"

func decodeAll(t *testing.T, lines []string) []LogRecord {
	t.Helper()
	var out []LogRecord
	for _, line := range lines {
		data, ok := dataField(line)
		if !ok {
			continue
		}
		p, err := DecodeLogRecord([]byte(data))
		require.NoError(t, err, "line %q", line)
		out = append(out, p.(LogRecord))
	}
	return out
}

func TestLineBufferWholeFeed(t *testing.T) {
	var b LineBuffer
	records := decodeAll(t, b.Feed([]byte(sampleFeed)))

	require.Len(t, records, 3)
	assert.Equal(t, "started", records[0].Message)
	assert.Equal(t, "db", records[1].Source)
	assert.Equal(t, "c3", records[2].CorrelationID)
	assert.Zero(t, b.Pending())
}

func TestLineBufferChunkingInvariance(t *testing.T) {
	var whole LineBuffer
	want := decodeAll(t, whole.Feed([]byte(sampleFeed)))

	feed := []byte(sampleFeed)
	for i := 0; i <= len(feed); i++ {
		for _, j := range []int{i, min(i+1, len(feed)), min(i+7, len(feed)), len(feed)} {
			var b LineBuffer
			var lines []string
			lines = append(lines, b.Feed(feed[:i])...)
			lines = append(lines, b.Feed(feed[i:j])...)
			lines = append(lines, b.Feed(feed[j:])...)
			if rest := b.Flush(); rest != "" {
				lines = append(lines, rest)
			}
			got := decodeAll(t, lines)
			if !assert.Equal(t, want, got, "split at %d/%d", i, j) {
				return
			}
		}
	}
}

func TestLineBufferByteAtATime(t *testing.T) {
	var whole LineBuffer
	want := whole.Feed([]byte(sampleFeed))

	var b LineBuffer
	var got []string
	for i := 0; i < len(sampleFeed); i++ {
		got = append(got, b.Feed([]byte{sampleFeed[i]})...)
	}
	assert.Equal(t, want, got)
}

func TestLineBufferKeepsFragment(t *testing.T) {
	var b LineBuffer
	assert.Empty(t, b.Feed([]byte("data: {\"lev")))
	assert.Equal(t, 11, b.Pending())

	lines := b.Feed([]byte("el\":\"INFO\"}\ndata: tail"))
	assert.Equal(t, []string{`data: {"level":"INFO"}`}, lines)
	assert.Equal(t, "data: tail", b.Flush())
	assert.Zero(t, b.Pending())
}

func TestDataField(t *testing.T) {
	tests := []struct {
		line string
		want string
		ok   bool
	}{
		{"data: {}", "{}", true},
		{"data:{}", "{}", true},
		{"data:  x", " x", true},
		{"", "", false},
		{": comment", "", false},
		{"event: log", "", false},
	}
	for _, tt := range tests {
		got, ok := dataField(tt.line)
		assert.Equal(t, tt.ok, ok, tt.line)
		assert.Equal(t, tt.want, got, tt.line)
	}
}

func TestDecodeLogRecord(t *testing.T) {
	p, err := DecodeLogRecord([]byte(`{"timestamp":"2024-05-01T10:00:00.123456","level":"DEBUG","service":"auth","message":"token ok","request_id":"r-1"}`))
	require.NoError(t, err)
	rec := p.(LogRecord)
	assert.Equal(t, "DEBUG", rec.Level)
	assert.Equal(t, "auth", rec.Source)
	assert.Equal(t, "r-1", rec.CorrelationID)
	assert.Equal(t, 123456000, rec.EmittedAt.Nanosecond())

	_, err = DecodeLogRecord([]byte(`{"level":"INFO"}`))
	assert.Error(t, err)

	_, err = DecodeLogRecord([]byte(`{not json`))
	assert.Error(t, err)

	_, err = DecodeLogRecord([]byte(`{"level":"INFO","message":"x","timestamp":"yesterday"}`))
	assert.Error(t, err)
}

func TestDecodeMetricSample(t *testing.T) {
	p, err := DecodeMetricSample([]byte(`{"timestamp":"2024-05-01T10:00:00Z","cpu_usage":12.5,"memory_usage":40,"disk_usage":71.2,"active_connections":8,"requests_per_minute":120}`))
	require.NoError(t, err)
	s := p.(MetricSample)
	assert.Equal(t, 12.5, s.CPU)
	assert.Equal(t, 8, s.ActiveConnections)
	assert.Equal(t, 2024, s.SampledAt.Year())

	p, err = DecodeMetricSample([]byte(`{"cpu_usage":1}`))
	require.NoError(t, err)
	assert.False(t, p.(MetricSample).SampledAt.IsZero())

	_, err = DecodeMetricSample([]byte(strings.Repeat("{", 3)))
	assert.Error(t, err)
}
