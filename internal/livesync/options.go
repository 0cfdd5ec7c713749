package livesync

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	defaultReadChunk    = 4096
	defaultPingInterval = 30 * time.Second
	pongTimeout         = 60 * time.Second
	writeTimeout        = 10 * time.Second
	handshakeTimeout    = 10 * time.Second
)

type options struct {
	log              *zap.SugaredLogger
	httpClient       *http.Client
	dialer           *websocket.Dialer
	failureThreshold int
	readChunk        int
	pingInterval     time.Duration
	now              func() time.Time
}

// Option configures a channel.
type Option func(*options)

func buildOptions(opts []Option) options {
	o := options{
		log: zap.NewNop().Sugar(),
		// Streams are long-lived, so no client timeout.
		httpClient:   &http.Client{},
		dialer:       &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		readChunk:    defaultReadChunk,
		pingInterval: defaultPingInterval,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the channel's logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// WithHTTPClient sets the client used by event streams.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		if c != nil {
			o.httpClient = c
		}
	}
}

// WithDialer sets the websocket dialer used by sockets.
func WithDialer(d *websocket.Dialer) Option {
	return func(o *options) {
		if d != nil {
			o.dialer = d
		}
	}
}

// WithFailureThreshold makes a poller fail after n consecutive fetch
// errors. Zero keeps retrying until closed.
func WithFailureThreshold(n int) Option {
	return func(o *options) { o.failureThreshold = n }
}

// WithReadChunkSize sets the buffer size of event stream reads.
func WithReadChunkSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.readChunk = n
		}
	}
}

// WithPingInterval sets the socket keepalive interval.
func WithPingInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pingInterval = d
		}
	}
}

// WithClock overrides the time source used to stamp received messages.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
