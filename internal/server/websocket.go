// Package server adapts WebSocket text frames to the line transport so
// browsers speak the same protocol as TCP clients.
package server

import (
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// wsConn carries the line protocol over WebSocket text frames. An incoming
// frame may hold several newline-separated lines; outgoing lines queued
// together are sent as one frame, newline-separated.
type wsConn struct {
	conn    *websocket.Conn
	addr    string
	pending []string
	batch   []string
}

func newWSConn(conn *websocket.Conn, addr string, maxLineLength int) *wsConn {
	conn.SetReadLimit(int64(maxLineLength))
	c := &wsConn{conn: conn, addr: addr}
	c.setupReadDeadline()
	return c
}

// setupReadDeadline arms the keepalive: every pong pushes the read deadline
// out by pongWait.
func (c *wsConn) setupReadDeadline() {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

func (c *wsConn) ReadLine() (string, error) {
	for len(c.pending) == 0 {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return "", err
		}
		c.pending = strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	}

	line := strings.TrimSuffix(c.pending[0], "\r")
	c.pending = c.pending[1:]
	return line, nil
}

func (c *wsConn) WriteLine(line string) error {
	c.batch = append(c.batch, line)
	return nil
}

func (c *wsConn) Flush() error {
	if len(c.batch) == 0 {
		return nil
	}

	w, err := c.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte(strings.Join(c.batch, "\n"))); err != nil {
		return err
	}
	c.batch = c.batch[:0]
	return w.Close()
}

func (c *wsConn) SetWriteDeadline(t time.Time) error {
	return c.conn.SetWriteDeadline(t)
}

func (c *wsConn) Ping() error {
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

func (c *wsConn) WriteClose() error {
	return c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (c *wsConn) RemoteAddr() string {
	return c.addr
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
