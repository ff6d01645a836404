// Package server defines the line transport contract and utility helpers that
// are reused across client and hub logic.
package server

import (
	"errors"
	"strings"
	"time"
)

// lineConn carries the line protocol over one network connection. ReadLine
// is called from the read pump only; WriteLine, Flush and SetWriteDeadline
// from the write pump only.
type lineConn interface {
	ReadLine() (string, error)
	// WriteLine buffers a line; Flush sends everything buffered.
	WriteLine(line string) error
	Flush() error
	SetWriteDeadline(t time.Time) error
	RemoteAddr() string
	Close() error
}

// pinger is implemented by transports with a keepalive frame.
type pinger interface {
	Ping() error
}

// closeNotifier is implemented by transports that tell the peer goodbye
// before the socket goes away.
type closeNotifier interface {
	WriteClose() error
}

var errLineTooLong = errors.New("line exceeds maximum length")

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "connection reset by peer")
}
