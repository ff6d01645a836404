// Package server frames raw TCP streams into the newline-terminated lines
// the chat session consumes.
package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// tcpConn frames a raw TCP stream into newline-terminated lines.
type tcpConn struct {
	conn        net.Conn
	scanner     *bufio.Scanner
	writer      *bufio.Writer
	idleTimeout time.Duration
}

func newTCPConn(conn net.Conn, maxLineLength int, idleTimeout time.Duration) *tcpConn {
	scanner := bufio.NewScanner(conn)
	// The scanner needs room for the terminator as well.
	scanner.Buffer(make([]byte, 0, min(maxLineLength+2, 4096)), maxLineLength+2)

	return &tcpConn{
		conn:        conn,
		scanner:     scanner,
		writer:      bufio.NewWriter(conn),
		idleTimeout: idleTimeout,
	}
}

// ReadLine returns the next line without its terminator. A zero idle timeout
// waits forever.
func (c *tcpConn) ReadLine() (string, error) {
	if c.idleTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.idleTimeout)); err != nil {
			return "", err
		}
	}

	if c.scanner.Scan() {
		return c.scanner.Text(), nil
	}
	if err := c.scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return "", fmt.Errorf("%w: %w", errLineTooLong, err)
		}
		return "", err
	}
	return "", io.EOF
}

func (c *tcpConn) WriteLine(line string) error {
	if _, err := c.writer.WriteString(line); err != nil {
		return err
	}
	return c.writer.WriteByte('\n')
}

func (c *tcpConn) Flush() error {
	return c.writer.Flush()
}

func (c *tcpConn) SetWriteDeadline(t time.Time) error {
	return c.conn.SetWriteDeadline(t)
}

func (c *tcpConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func (c *tcpConn) Close() error {
	return c.conn.Close()
}
