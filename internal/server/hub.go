package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/scrypster/keepsake/internal/notify"
)

// WebSocketHub fans activity events out to connected clients.
type WebSocketHub struct {
	clients    map[*wsClient]bool
	broadcast  chan notify.Event
	register   chan *wsClient
	unregister chan *wsClient
	mu         sync.Mutex
	ctx        context.Context
	cancel     context.CancelFunc
}

type wsClient struct {
	hub  *WebSocketHub
	conn *websocket.Conn
	send chan []byte
}

// NewWebSocketHub creates a hub. Call Run in a goroutine to start it.
func NewWebSocketHub() *WebSocketHub {
	ctx, cancel := context.WithCancel(context.Background())
	return &WebSocketHub{
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan notify.Event, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Publish implements notify.Sink. A full broadcast channel drops the event
// rather than blocking the publisher.
func (h *WebSocketHub) Publish(evt notify.Event) {
	select {
	case h.broadcast <- evt:
	default:
		log.Println("server: websocket broadcast channel full, dropping event")
	}
}

// Run processes registrations and broadcasts until Stop is called.
func (h *WebSocketHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("server: websocket client connected (total: %d)", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("server: websocket client disconnected (total: %d)", count)

		case evt := <-h.broadcast:
			data, err := json.Marshal(evt)
			if err != nil {
				log.Printf("server: failed to marshal websocket event: %v", err)
				continue
			}
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					// Slow client, disconnect it.
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()

		case <-h.ctx.Done():
			return
		}
	}
}

// Stop shuts down the hub and closes all client connections.
func (h *WebSocketHub) Stop() {
	h.cancel()

	h.mu.Lock()
	for client := range h.clients {
		close(client.send)
		if client.conn != nil {
			_ = client.conn.Close(websocket.StatusNormalClosure, "")
		}
	}
	h.clients = make(map[*wsClient]bool)
	h.mu.Unlock()
}

// ServeHTTP upgrades the request and attaches the client to the hub.
func (h *WebSocketHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"localhost:*", "127.0.0.1:*"},
	})
	if err != nil {
		log.Printf("server: websocket upgrade failed: %v", err)
		return
	}

	client := &wsClient{hub: h, conn: conn, send: make(chan []byte, 256)}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

func (c *wsClient) writePump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for message := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := c.conn.Write(ctx, websocket.MessageText, message)
		cancel()
		if err != nil {
			return
		}
	}
}

// readPump drains inbound frames so disconnects are noticed.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		if _, _, err := c.conn.Read(context.Background()); err != nil {
			return
		}
	}
}
