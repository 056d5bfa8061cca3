package registry

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"smartplanner/pkg/metrics"
)

// Client is one registered websocket connection. Gorilla allows a single
// concurrent writer per connection, so writes go through the client mutex.
type Client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func NewClient(conn *websocket.Conn) *Client {
	return &Client{conn: conn}
}

// WriteJSON serializes v and writes one message.
func (c *Client) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Registry maps user ids to their live websocket connection. A user has at
// most one registered connection: re-registering replaces the previous entry
// (last-wins), and the replaced connection is closed.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]*Client)}
}

// Register binds a connection to a user, replacing any previous one.
func (r *Registry) Register(userID string, client *Client) {
	r.mu.Lock()
	prev := r.clients[userID]
	r.clients[userID] = client
	n := len(r.clients)
	r.mu.Unlock()

	if prev != nil && prev != client {
		_ = prev.Close()
	}
	metrics.WebsocketConnections.Set(float64(n))
}

// Unregister removes a user's entry only if it still points at this client.
// A stale connection closing after being replaced must not evict its
// successor.
func (r *Registry) Unregister(userID string, client *Client) {
	r.mu.Lock()
	if r.clients[userID] == client {
		delete(r.clients, userID)
	}
	n := len(r.clients)
	r.mu.Unlock()

	metrics.WebsocketConnections.Set(float64(n))
}

// Lookup returns the user's registered connection, if any.
func (r *Registry) Lookup(userID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.clients[userID]
	return client, ok
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
