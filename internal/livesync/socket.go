package livesync

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var senderPrefix = regexp.MustCompile(`^Client #(\d+):`)

// Socket is a bidirectional chat connection. Inbound text messages become
// ChatEvents; Send writes text messages.
type Socket struct {
	lifecycle

	url    string
	selfID string
	dialer *websocket.Dialer
	now    func() time.Time
	ping   time.Duration

	writeMu    sync.Mutex // serialises all conn writes
	conn       *websocket.Conn
	pingCancel context.CancelFunc
	exited     chan struct{}
}

// NewSocket creates a chat socket for the local client selfID.
func NewSocket(key Key, url, selfID string, opts ...Option) *Socket {
	o := buildOptions(opts)
	s := &Socket{
		url:    url,
		selfID: selfID,
		dialer: o.dialer,
		now:    o.now,
		ping:   o.pingInterval,
	}
	s.init(key, o.log)
	return s
}

// Open dials the server. On success a system event announcing the
// connection is emitted before any inbound message.
func (s *Socket) Open(ctx context.Context) error {
	if err := s.begin(); err != nil {
		return err
	}

	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		if ctx.Err() != nil {
			s.transition(StateClosed)
			s.end()
			return ctx.Err()
		}
		s.fail(&TransportFailure{Op: "dial", Err: err})
		s.end()
		return s.Err()
	}

	s.mu.Lock()
	if s.state.IsTerminal() {
		s.mu.Unlock()
		conn.Close()
		return context.Canceled
	}
	pingCtx, pingCancel := context.WithCancel(context.Background())
	s.conn = conn
	s.pingCancel = pingCancel
	s.exited = make(chan struct{})
	s.state = StateOpen
	s.mu.Unlock()

	s.log.Infow("chat socket connected", "key", s.key, "url", s.url, "client", s.selfID)
	s.emit(Update{Payload: s.systemEvent(fmt.Sprintf("joined the chat as Client #%s", s.selfID))})

	go s.pingLoop(pingCtx, conn)
	go s.readLoop(conn)
	return nil
}

func (s *Socket) readLoop(conn *websocket.Conn) {
	defer close(s.exited)
	defer s.end()
	defer conn.Close()

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	conn.SetReadDeadline(time.Now().Add(pongTimeout))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.readFailed(err)
			return
		}
		s.emit(Update{Payload: classifyMessage(string(data), s.selfID, s.now())})
	}
}

func (s *Socket) readFailed(err error) {
	s.mu.Lock()
	closing := s.state == StateDraining || s.state.IsTerminal()
	s.mu.Unlock()

	switch {
	case closing || s.stopped():
		s.transition(StateClosed)
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		s.log.Infow("chat socket closed by server", "key", s.key)
		s.emit(Update{Payload: s.systemEvent("chat connection closed")})
		s.transition(StateClosed)
	default:
		s.emit(Update{Payload: s.systemEvent("disconnected from chat")})
		s.fail(&TransportFailure{Op: "read", Err: err})
	}
	s.stopPing()
}

// pingLoop sends periodic pings on conn until ctx is cancelled or a write
// fails.
func (s *Socket) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(s.ping)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			s.writeMu.Unlock()
			if err != nil {
				s.log.Debugw("ping failed", "key", s.key, "error", err)
				return
			}
		}
	}
}

func (s *Socket) stopPing() {
	s.mu.Lock()
	cancel := s.pingCancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Send writes text to the server. It is rejected unless the socket is open.
func (s *Socket) Send(text string) error {
	s.mu.Lock()
	state, conn := s.state, s.conn
	s.mu.Unlock()
	if state != StateOpen || conn == nil {
		return &RejectedOperation{Op: "send", State: state}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		return &TransportFailure{Op: "write", Err: err}
	}
	return nil
}

// Close sends a close frame and waits for the reader to exit. Closing a
// closed socket does nothing.
func (s *Socket) Close() error {
	s.mu.Lock()
	conn, exited, wasTerminal := s.conn, s.exited, s.state.IsTerminal()
	switch {
	case wasTerminal:
	case exited == nil:
		s.state = StateClosed
	default:
		s.state = StateDraining
	}
	s.mu.Unlock()

	s.stop()
	s.stopPing()
	if conn != nil && !wasTerminal {
		s.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
		s.writeMu.Unlock()
		_ = conn.Close()
	}
	if exited != nil {
		<-exited
	} else {
		s.end()
	}
	return nil
}

func (s *Socket) systemEvent(text string) ChatEvent {
	return ChatEvent{Text: text, ReceivedAt: s.now(), System: true}
}

// classifyMessage wraps an inbound message. The server carries no sender
// field, so a message counts as our own when it contains our
// "Client #<id>:" marker. Text that merely quotes the marker is
// misclassified.
func classifyMessage(text, selfID string, at time.Time) ChatEvent {
	ev := ChatEvent{Text: text, ReceivedAt: at}
	if selfID != "" && strings.Contains(text, "Client #"+selfID+":") {
		ev.Self = true
		ev.SenderID = selfID
		return ev
	}
	if m := senderPrefix.FindStringSubmatch(text); m != nil {
		ev.SenderID = m[1]
	}
	return ev
}
