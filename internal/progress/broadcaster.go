// Package progress streams live backtest/batch progress to connected
// websocket clients: a Broadcaster fans messages out to registered
// clients, and a Listener bridges Postgres LISTEN/NOTIFY events from
// internal/runstore into the same broadcaster so that a dashboard
// process separate from the worker still sees live updates.
package progress

import (
	"log"
	"sync"
	"time"
)

// Client is a single connected websocket consumer.
type Client struct {
	ID   string
	Send chan interface{}
}

// Message is the envelope every broadcast event is wrapped in.
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// Broadcaster fans messages out to every registered client. A message
// for a client whose send buffer is full is dropped for that client
// rather than blocking the broadcaster; the client stays registered.
type Broadcaster struct {
	clients    map[string]*Client
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	logger     *log.Logger
	shutdown   chan struct{}
}

// NewBroadcaster returns a Broadcaster. Call Run in its own goroutine to
// start the dispatch loop.
func NewBroadcaster(logger *log.Logger) *Broadcaster {
	return &Broadcaster{
		clients:    make(map[string]*Client),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
		shutdown:   make(chan struct{}),
	}
}

// Register adds a client to the broadcast set.
func (b *Broadcaster) Register(c *Client) { b.register <- c }

// Unregister removes a client from the broadcast set.
func (b *Broadcaster) Unregister(c *Client) { b.unregister <- c }

// Broadcast sends msgType/data to every registered client.
func (b *Broadcaster) Broadcast(msgType string, data interface{}) {
	b.broadcast <- Message{Type: msgType, Data: data, Timestamp: time.Now()}
}

// Run executes the dispatch loop until Shutdown is called. Intended to
// run in its own goroutine.
func (b *Broadcaster) Run() {
	for {
		select {
		case <-b.shutdown:
			return
		case c := <-b.register:
			b.mu.Lock()
			b.clients[c.ID] = c
			b.mu.Unlock()
		case c := <-b.unregister:
			b.mu.Lock()
			if _, ok := b.clients[c.ID]; ok {
				delete(b.clients, c.ID)
				close(c.Send)
			}
			b.mu.Unlock()
		case msg := <-b.broadcast:
			b.mu.RLock()
			for _, c := range b.clients {
				select {
				case c.Send <- msg:
				default:
					b.logger.Printf("[progress] client %s send buffer full, dropping message", c.ID)
				}
			}
			b.mu.RUnlock()
		}
	}
}

// Shutdown stops the dispatch loop.
func (b *Broadcaster) Shutdown() { close(b.shutdown) }

// ClientCount returns the number of currently registered clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}
