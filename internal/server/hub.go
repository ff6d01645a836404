// Package server tracks live clients and their pump goroutines through the
// Hub type, and closes them all on shutdown.
package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var errHubClosed = errors.New("hub is shut down")

// Hub owns the set of live clients. Registration and unregistration are
// serialized through its Run loop; chat routing lives in the registry.
type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	log        *slog.Logger
	metrics    *Metrics
}

// NewHub creates a Hub ready to Run.
func NewHub(metrics *Metrics, log *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		log:        log,
		metrics:    metrics,
	}
}

// Register hands a new client to the Run loop, which starts its pumps.
func (h *Hub) Register(client *Client) error {
	select {
	case h.register <- client:
		return nil
	case <-h.ctx.Done():
		return errHubClosed
	}
}

// Unregister removes a client. It never blocks once the hub is shut down.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// Count returns the number of live clients.
func (h *Hub) Count() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Run is the hub's event loop. It returns once Shutdown is called, after
// closing every live connection.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.log.Warn("received nil client registration; skipping")
				continue
			}

			h.mutex.Lock()
			h.clients[client] = struct{}{}
			clientCount := len(h.clients)
			h.mutex.Unlock()

			h.metrics.TotalConnections.Add(1)
			h.metrics.ActiveConnections.Add(1)
			client.log.Info("client registered", "clients", clientCount)

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
			go func() {
				defer h.wg.Done()
				client.readPump()
			}()

		case client := <-h.unregister:
			h.mutex.Lock()
			_, ok := h.clients[client]
			delete(h.clients, client)
			clientCount := len(h.clients)
			h.mutex.Unlock()

			if ok {
				h.metrics.ActiveConnections.Add(-1)
				client.log.Info("client unregistered", "clients", clientCount)
			}
		}
	}
}

// shutdownClients closes every live connection. Each client's read pump then
// runs its normal disconnect path.
func (h *Hub) shutdownClients() {
	h.log.Info("shutting down all client connections")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.clients = make(map[*Client]struct{})
	h.mutex.Unlock()

	for _, client := range clients {
		_ = client.Close()
		client.closeConnection()
	}
	h.metrics.ActiveConnections.Add(-int64(len(clients)))

	h.log.Info("closed client connections", "count", len(clients))
}

// Shutdown stops the hub and waits for all pumps to finish, or for timeout.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info("initiating hub shutdown")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.log.Warn("hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
