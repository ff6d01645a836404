//go:generate go run go.uber.org/mock/mockgen -source=outbox.go -destination=../mocks/mock_outbox.go -package=mocks
package chat

// Outbox is the outbound path of one connection, provided by the transport.
type Outbox interface {
	// SendLine queues a line for delivery without blocking. It returns false
	// when the line was dropped.
	SendLine(line string) bool
	// Close closes the connection once already queued lines are flushed.
	Close() error
}
