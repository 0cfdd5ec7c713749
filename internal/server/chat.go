package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	chatSendBuffer   = 64
	chatWriteTimeout = 10 * time.Second
)

type chatClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

func newChatClient(id string, conn *websocket.Conn) *chatClient {
	c := &chatClient{
		id:   id,
		conn: conn,
		send: make(chan []byte, chatSendBuffer),
	}
	go c.writePump()
	return c
}

func (c *chatClient) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(chatWriteTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(chatWriteTimeout))
}

// ChatHub relays chat messages to every connected client. Messages carry
// no envelope; the sender is named in the text.
type ChatHub struct {
	log *zap.SugaredLogger

	mu      sync.RWMutex
	clients map[*chatClient]bool
}

func NewChatHub(log *zap.SugaredLogger) *ChatHub {
	return &ChatHub{
		log:     log,
		clients: make(map[*chatClient]bool),
	}
}

// Join adds conn as client id.
func (h *ChatHub) Join(id string, conn *websocket.Conn) *chatClient {
	c := newChatClient(id, conn)
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	h.log.Infow("chat client joined", "client", id, "remote", conn.RemoteAddr().String())
	return c
}

// Leave removes c. It reports whether c was still connected.
func (h *ChatHub) Leave(c *chatClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return false
	}
	delete(h.clients, c)
	close(c.send)
	return true
}

// Say broadcasts text on behalf of client id.
func (h *ChatHub) Say(id, text string) {
	h.Broadcast(fmt.Sprintf("Client #%s: %s", id, text))
}

// Broadcast sends text to every client. Clients that cannot keep up are
// disconnected.
func (h *ChatHub) Broadcast(text string) {
	data := []byte(text)

	// Sends happen under the read lock so Leave cannot close a queue
	// mid-send.
	var slow []*chatClient
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warnw("chat client too slow, disconnecting", "client", c.id)
		h.Leave(c)
	}
}

// ClientCount returns the number of connected clients.
func (h *ChatHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *ChatHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
