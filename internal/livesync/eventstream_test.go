package livesync

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func logLine(level, msg string) string {
	return fmt.Sprintf("data: {\"timestamp\":\"2024-05-01T10:00:00\",\"level\":%q,\"service\":\"api\",\"message\":%q,\"request_id\":\"r\"}\n\n", level, msg)
}

// feedServer serves body in pieces, flushing after each one.
func feedServer(t *testing.T, pieces ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, p := range pieces {
			fmt.Fprint(w, p)
			flusher.Flush()
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEventStreamSkipsMalformedLine(t *testing.T) {
	srv := feedServer(t,
		logLine("INFO", "first"),
		"data: {\"level\": \"INFO\", \"message\n\n",
		logLine("ERROR", "third"),
	)

	s := NewEventStream(LogsKey, srv.URL, DecodeLogRecord, WithLogger(zaptest.NewLogger(t).Sugar()))
	require.NoError(t, s.Open(context.Background()))
	updates := drain(t, s)

	require.Len(t, updates, 3)
	assert.Equal(t, "first", updates[0].Payload.(LogRecord).Message)
	var decodeErr *DecodeError
	require.ErrorAs(t, updates[1].Err, &decodeErr)
	assert.Equal(t, "third", updates[2].Payload.(LogRecord).Message)

	assert.Equal(t, StateClosed, s.State())
	assert.NoError(t, s.Err())
}

func TestEventStreamSplitRecords(t *testing.T) {
	line := logLine("INFO", "split")
	srv := feedServer(t, line[:9], line[9:30], line[30:]+logLine("WARN", "whole"))

	s := NewEventStream(LogsKey, srv.URL, DecodeLogRecord, WithReadChunkSize(5))
	require.NoError(t, s.Open(context.Background()))
	updates := drain(t, s)

	require.Len(t, updates, 2)
	assert.Equal(t, "split", updates[0].Payload.(LogRecord).Message)
	assert.Equal(t, "whole", updates[1].Payload.(LogRecord).Message)
}

func TestEventStreamDecodesTrailingFragment(t *testing.T) {
	line := logLine("INFO", "last")
	srv := feedServer(t, line[:len(line)-2])

	s := NewEventStream(LogsKey, srv.URL, DecodeLogRecord)
	require.NoError(t, s.Open(context.Background()))
	updates := drain(t, s)

	require.Len(t, updates, 1)
	assert.Equal(t, "last", updates[0].Payload.(LogRecord).Message)
}

func TestEventStreamCloseIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, logLine("INFO", "hello"))
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	s := NewEventStream(LogsKey, srv.URL, DecodeLogRecord)
	require.NoError(t, s.Open(context.Background()))
	u := next(t, s)
	assert.Equal(t, "hello", u.Payload.(LogRecord).Message)

	require.NoError(t, s.Close())
	for _, u := range drain(t, s) {
		assert.NoError(t, u.Err)
	}
	assert.Equal(t, StateClosed, s.State())
	assert.NoError(t, s.Err())

	require.NoError(t, s.Close())
	assert.Equal(t, StateClosed, s.State())
}

func TestEventStreamContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	s := NewEventStream(LogsKey, srv.URL, DecodeLogRecord)
	require.NoError(t, s.Open(ctx))
	cancel()

	assert.Empty(t, drain(t, s))
	assert.Equal(t, StateClosed, s.State())
	assert.NoError(t, s.Err())
}

func TestEventStreamBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	s := NewEventStream(LogsKey, srv.URL, DecodeLogRecord)
	err := s.Open(context.Background())

	var transport *TransportFailure
	require.ErrorAs(t, err, &transport)
	assert.Equal(t, "open", transport.Op)
	assert.Contains(t, err.Error(), "503")
	assert.Equal(t, StateFailed, s.State())
	assert.Empty(t, drain(t, s))
}

func TestEventStreamMetrics(t *testing.T) {
	srv := feedServer(t,
		"data: {\"timestamp\":\"2024-05-01T10:00:00\",\"cpu_usage\":55.5,\"memory_usage\":61,\"disk_usage\":70,\"active_connections\":3,\"requests_per_minute\":90}\n\n",
	)

	s := NewEventStream(MetricsKey, srv.URL, DecodeMetricSample)
	require.NoError(t, s.Open(context.Background()))
	updates := drain(t, s)

	require.Len(t, updates, 1)
	assert.Equal(t, 55.5, updates[0].Payload.(MetricSample).CPU)
}
