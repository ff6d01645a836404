// Package server manages individual line clients, handling read/write pumps,
// rate limiting, and lifecycle control for each connection.
package server

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/Tyrowin/linechat/internal/chat"
)

// Client is one connected peer. It owns the transport, the outbound queue
// and the chat session, and implements chat.Outbox for the registry.
type Client struct {
	id           string
	conn         lineConn
	send         chan string
	hub          *Hub
	session      *chat.Session
	log          *slog.Logger
	metrics      *Metrics
	limiter      *rate.Limiter
	writeTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

// NewClient wraps conn in a client bound to registry. The returned client is
// idle until the hub starts its pumps.
func NewClient(conn lineConn, hub *Hub, registry *chat.Registry, cfg Config, metrics *Metrics, log *slog.Logger) *Client {
	id := uuid.NewString()
	c := &Client{
		id:           id,
		conn:         conn,
		send:         make(chan string, cfg.SendBuffer),
		hub:          hub,
		log:          log.With("conn", id, "addr", conn.RemoteAddr()),
		metrics:      metrics,
		limiter:      newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval),
		writeTimeout: cfg.WriteTimeout,
	}
	c.session = chat.NewSession(registry, c, c.log)
	return c
}

// ID returns the connection id used in logs.
func (c *Client) ID() string {
	return c.id
}

// SendLine queues a line for the write pump without blocking. A full queue
// means the peer is not keeping up: the line is dropped and the client is
// closed.
func (c *Client) SendLine(line string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		c.metrics.LinesDropped.Add(1)
		return false
	}

	select {
	case c.send <- line:
		return true
	default:
		c.log.Warn("send queue full; disconnecting slow client", "queued", len(c.send))
		c.metrics.LinesDropped.Add(1)
		c.metrics.Evictions.Add(1)
		c.closeLocked()
		return false
	}
}

// Close stops accepting lines. The write pump flushes what is already queued
// and then closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	return nil
}

func (c *Client) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// handleReadError logs the reason the read loop ends.
func (c *Client) handleReadError(err error) {
	var netErr net.Error
	switch {
	case errors.Is(err, io.EOF):
		c.log.Info("client disconnected")
	case errors.Is(err, errLineTooLong), errors.Is(err, websocket.ErrReadLimit):
		c.log.Warn("line exceeded maximum length; closing connection")
	case errors.As(err, &netErr) && netErr.Timeout():
		c.log.Info("client idle timeout")
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.log.Info("client disconnected", "reason", err)
	case isExpectedCloseError(err):
		c.log.Debug("connection closed", "reason", err)
	default:
		c.log.Warn("read error", "error", err)
	}
}

// allow applies the per-connection rate limit to one inbound line.
func (c *Client) allow() bool {
	if c.limiter.Allow() {
		return true
	}
	c.metrics.RateLimited.Add(1)
	c.log.Warn("rate limit exceeded; discarding line",
		"burst", c.limiter.Burst(), "per_second", float64(c.limiter.Limit()))
	return false
}

// readPump feeds inbound lines to the session until the connection ends or
// the session asks to close. The session's registry state is released exactly
// once on the way out.
func (c *Client) readPump() {
	defer func() {
		c.session.Disconnect()
		c.hub.Unregister(c)
		_ = c.Close()
		c.metrics.TotalDisconnects.Add(1)
	}()

	c.session.Greet()

	for {
		line, err := c.conn.ReadLine()
		if err != nil {
			c.handleReadError(err)
			return
		}
		c.metrics.LinesIn.Add(1)

		if !c.allow() {
			continue
		}

		c.session.HandleLine(line)
		if c.isClosed() {
			return
		}
	}
}

// writePump drains the outbound queue to the connection. Lines queued
// together are written with a single flush. It owns closing the connection.
func (c *Client) writePump() {
	var keepalive <-chan time.Time
	p, canPing := c.conn.(pinger)
	if canPing {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		keepalive = ticker.C
	}

	defer c.closeConnection()

	for {
		select {
		case line, ok := <-c.send:
			if !ok {
				c.writeClose()
				return
			}
			if !c.writeLines(line) {
				return
			}
		case <-keepalive:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				c.log.Warn("setting write deadline for ping", "error", err)
				return
			}
			if err := p.Ping(); err != nil {
				c.log.Warn("writing ping", "error", err)
				return
			}
		}
	}
}

// writeLines writes first and everything already queued behind it, then
// flushes. It returns false when the pump should stop.
func (c *Client) writeLines(first string) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		c.log.Warn("setting write deadline", "error", err)
		return false
	}

	if !c.writeLine(first) {
		return false
	}

	n := len(c.send)
	for i := 0; i < n; i++ {
		line, ok := <-c.send
		if !ok {
			break
		}
		if !c.writeLine(line) {
			return false
		}
	}

	if err := c.conn.Flush(); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("flushing lines", "error", err)
		}
		return false
	}
	return true
}

func (c *Client) writeLine(line string) bool {
	if err := c.conn.WriteLine(line); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("writing line", "error", err)
		}
		return false
	}
	c.metrics.LinesOut.Add(1)
	return true
}

// writeClose tells the peer goodbye when the transport supports it.
func (c *Client) writeClose() {
	notifier, ok := c.conn.(closeNotifier)
	if !ok {
		return
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return
	}
	if err := notifier.WriteClose(); err != nil && !isExpectedCloseError(err) {
		c.log.Debug("writing close message", "error", err)
	}
}

// closeConnection closes the transport, ignoring errors expected on a
// connection the peer already dropped.
func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.log.Warn("closing connection", "error", err)
	}
}
