package services

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"stock_refresher/models"
)

// WebSocket hub configuration
const (
	MaxWebSocketClients   = 100
	WebSocketWriteTimeout = 10 * time.Second
	WebSocketPongTimeout  = 60 * time.Second
	WebSocketPingInterval = 30 * time.Second
)

// WebSocketMessage represents a message to broadcast
type WebSocketMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
	Time string      `json:"time"`
}

// Client represents a WebSocket client
type Client struct {
	conn       *websocket.Conn
	send       chan []byte
	subscribed map[string]bool
	mu         sync.RWMutex
}

// wantsCode reports whether the client subscribed to a code. A client
// with no explicit subscriptions receives everything.
func (c *Client) wantsCode(code string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.subscribed) == 0 {
		return true
	}
	return c.subscribed[code]
}

// QuoteHub pushes quotes written by each refresh invocation to
// connected WebSocket subscribers. The hub is purely a transport
// surface: it holds no price state between invocations.
type QuoteHub struct {
	clients    map[*Client]bool
	broadcast  chan WebSocketMessage
	register   chan *Client
	unregister chan *Client
	shutdown   chan struct{}
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
}

// NewQuoteHub creates and starts a quote hub.
func NewQuoteHub() *QuoteHub {
	hub := &QuoteHub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan WebSocketMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		shutdown:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	go hub.run()
	return hub
}

// Shutdown closes all client connections.
func (h *QuoteHub) Shutdown() {
	close(h.shutdown)

	h.mu.Lock()
	for client := range h.clients {
		close(client.send)
		client.conn.Close()
	}
	h.clients = make(map[*Client]bool)
	h.mu.Unlock()
}

// run is the hub loop
func (h *QuoteHub) run() {
	for {
		select {
		case <-h.shutdown:
			return

		case client := <-h.register:
			h.mu.Lock()
			if len(h.clients) >= MaxWebSocketClients {
				h.mu.Unlock()
				client.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "Server at capacity"))
				client.conn.Close()
				log.Printf("WebSocket client rejected: max clients reached (%d)", MaxWebSocketClients)
				continue
			}
			h.clients[client] = true
			clientCount := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client connected. Total clients: %d", clientCount)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			clientCount := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client disconnected. Total clients: %d", clientCount)

		case message := <-h.broadcast:
			h.dispatch(message)
		}
	}
}

// dispatch fans a message out to subscribed clients, dropping clients
// whose send buffer is full.
func (h *QuoteHub) dispatch(message WebSocketMessage) {
	quotes, _ := message.Data.([]models.Quote)

	h.mu.Lock()
	defer h.mu.Unlock()

	deadClients := make([]*Client, 0)
	for client := range h.clients {
		payload := message
		if len(quotes) > 0 {
			filtered := make([]models.Quote, 0, len(quotes))
			for _, q := range quotes {
				if client.wantsCode(q.Code) {
					filtered = append(filtered, q)
				}
			}
			if len(filtered) == 0 {
				continue
			}
			payload.Data = filtered
		}

		data, err := json.Marshal(payload)
		if err != nil {
			log.Printf("Error marshaling broadcast message: %v", err)
			continue
		}

		select {
		case client.send <- data:
		default:
			deadClients = append(deadClients, client)
		}
	}

	for _, client := range deadClients {
		delete(h.clients, client)
		close(client.send)
	}
}

// BroadcastQuotes pushes freshly persisted quotes to subscribers.
func (h *QuoteHub) BroadcastQuotes(quotes []models.Quote) {
	h.broadcast <- WebSocketMessage{
		Type: "quotes",
		Data: quotes,
		Time: time.Now().Format(time.RFC3339),
	}
}

// ClientCount returns the number of connected clients.
func (h *QuoteHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket handles WebSocket connections
func (h *QuoteHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	atCapacity := len(h.clients) >= MaxWebSocketClients
	h.mu.RUnlock()

	if atCapacity {
		http.Error(w, "Server at capacity", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := &Client{
		conn:       conn,
		send:       make(chan []byte, 256),
		subscribed: make(map[string]bool),
	}

	h.register <- client

	go client.writePump()
	go client.readPump(h)
}

// writePump writes messages to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(WebSocketPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(WebSocketWriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(WebSocketWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads subscription commands from the WebSocket connection
func (c *Client) readPump(h *QuoteHub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(WebSocketPongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(WebSocketPongTimeout))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			break
		}

		var cmd struct {
			Action string   `json:"action"`
			Codes  []string `json:"codes"`
		}
		if err := json.Unmarshal(message, &cmd); err != nil {
			continue
		}

		switch cmd.Action {
		case "subscribe":
			c.mu.Lock()
			for _, code := range cmd.Codes {
				c.subscribed[code] = true
			}
			c.mu.Unlock()
		case "unsubscribe":
			c.mu.Lock()
			for _, code := range cmd.Codes {
				delete(c.subscribed, code)
			}
			c.mu.Unlock()
		}
	}
}
