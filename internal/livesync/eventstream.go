package livesync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// EventStream reads a long-lived feed of "data: <json>" lines.
type EventStream struct {
	lifecycle

	url    string
	decode DecodeFunc
	client *http.Client
	chunk  int

	cancel context.CancelFunc
	exited chan struct{}
}

// NewEventStream creates a stream reading url and decoding each data line
// with decode.
func NewEventStream(key Key, url string, decode DecodeFunc, opts ...Option) *EventStream {
	o := buildOptions(opts)
	s := &EventStream{
		url:    url,
		decode: decode,
		client: o.httpClient,
		chunk:  o.readChunk,
	}
	s.init(key, o.log)
	return s
}

// Open issues the request and starts reading once the response headers
// arrive. Closing the stream cancels the request.
func (s *EventStream) Open(ctx context.Context) error {
	if err := s.begin(); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		cancel()
		s.fail(&TransportFailure{Op: "open", Err: err})
		s.end()
		return s.Err()
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.client.Do(req)
	if err != nil {
		cancel()
		if ctx.Err() != nil {
			s.transition(StateClosed)
			s.end()
			return ctx.Err()
		}
		s.fail(&TransportFailure{Op: "open", Err: err})
		s.end()
		return s.Err()
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		cancel()
		s.fail(&TransportFailure{Op: "open", Err: fmt.Errorf("GET %s: %d %s", s.url, resp.StatusCode, string(body))})
		s.end()
		return s.Err()
	}

	s.mu.Lock()
	if s.state.IsTerminal() {
		s.mu.Unlock()
		resp.Body.Close()
		cancel()
		return context.Canceled
	}
	s.state = StateOpen
	s.exited = make(chan struct{})
	s.mu.Unlock()

	s.log.Debugw("event stream opened", "key", s.key, "url", s.url)
	go s.readLoop(ctx, resp.Body)
	return nil
}

func (s *EventStream) readLoop(ctx context.Context, body io.ReadCloser) {
	defer close(s.exited)
	defer s.end()
	defer body.Close()

	buf := make([]byte, s.chunk)
	var lines LineBuffer
	records := 0
	for {
		n, err := body.Read(buf)
		if n > 0 {
			for _, line := range lines.Feed(buf[:n]) {
				if s.handleLine(line) {
					records++
				}
			}
		}
		if err == nil {
			continue
		}

		switch {
		case ctx.Err() != nil:
			s.log.Debugw("event stream cancelled", "key", s.key, "records", records)
			s.transition(StateClosed)
		case errors.Is(err, io.EOF):
			if rest := lines.Flush(); rest != "" && s.handleLine(rest) {
				records++
			}
			s.log.Infow("event stream ended", "key", s.key, "records", records)
			s.transition(StateClosed)
		default:
			s.fail(&TransportFailure{Op: "read", Err: err})
		}
		return
	}
}

// handleLine decodes one line. A bad record is reported and skipped.
func (s *EventStream) handleLine(line string) bool {
	data, ok := dataField(line)
	if !ok {
		return false
	}
	payload, err := s.decode([]byte(data))
	if err != nil {
		s.log.Warnw("dropping undecodable record", "key", s.key, "error", err)
		s.emit(Update{Err: &DecodeError{Line: line, Err: err}})
		return false
	}
	s.emit(Update{Payload: payload})
	return true
}

// Close cancels the request and waits for the reader to exit. The
// cancellation is a normal stop, not a failure.
func (s *EventStream) Close() error {
	s.mu.Lock()
	cancel, exited := s.cancel, s.exited
	switch {
	case s.state.IsTerminal():
	case exited == nil:
		s.state = StateClosed
	default:
		s.state = StateDraining
	}
	s.mu.Unlock()

	s.stop()
	if cancel != nil {
		cancel()
	}
	if exited != nil {
		<-exited
	} else {
		s.end()
	}
	return nil
}
