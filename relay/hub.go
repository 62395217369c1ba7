// Package relay serves a contract.Store to remote participants over
// websockets and enforces presence removal when a socket drops.
package relay

import (
	"ai-live-chat/contract"
	"ai-live-chat/store"
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type Options struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
	SendBuffer     int
	Limits         Limits
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Only set it behind a proxy that overwrites those headers.
	TrustProxy bool
}

func DefaultOptions() Options {
	return Options{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		MaxMessageSize: 8 * 1024,
		SendBuffer:     256,
		Limits:         DefaultLimits(),
	}
}

// pingPeriod must stay below PongWait.
func (o Options) pingPeriod() time.Duration {
	return (o.PongWait * 9) / 10
}

// Hub owns the open connections.
type Hub struct {
	store    contract.Store
	log      *slog.Logger
	metrics  *Metrics
	opts     Options
	limiter  *addressLimiter
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*Client]struct{}
}

func NewHub(store contract.Store, log *slog.Logger, metrics *Metrics, opts Options) *Hub {
	return &Hub{
		store:   store,
		log:     log,
		metrics: metrics,
		opts:    opts,
		limiter: newAddressLimiter(opts.Limits),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// participants are anonymous, any origin may connect
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*Client]struct{}),
	}
}

// ServeWs upgrades the request and starts the pumps of the new client.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Websocket upgrade failed", "error", err)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		hub:     h,
		conn:    conn,
		address: r.RemoteAddr,
		session: store.NewSession(h.store),
		send:    make(chan []byte, h.opts.SendBuffer),
		done:    make(chan struct{}),
		subs:    make(map[uint64]contract.Subscription),
		ctx:     ctx,
		cancel:  cancel,
	}
	h.register(client)

	go client.writePump()
	go client.readPump()
}

// Len is the number of open connections.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close drops every connection. Their disconnect removals still run.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.metrics.Connections.Inc()
	h.log.Debug("Client connected", "address", c.address)
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		h.metrics.Connections.Dec()
		h.log.Debug("Client disconnected", "address", c.address)
	}
}
