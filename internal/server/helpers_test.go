package server

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

const testTimeout = 2 * time.Second

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testConfig binds both listeners to ephemeral loopback ports and relaxes the
// rate limit so scripted clients are never throttled.
func testConfig() Config {
	cfg := defaultConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.RateLimit = RateLimitConfig{Burst: 1000, RefillInterval: time.Millisecond}
	cfg.ShutdownTimeout = testTimeout
	return cfg
}

// runningServer is a Server serving in the background.
type runningServer struct {
	*Server
	cancel context.CancelFunc
	errCh  chan error
}

// startServer starts a Server and stops it when the test ends.
func startServer(t *testing.T, mutate func(*Config)) *runningServer {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	srv, err := New(cfg, discardLogger())
	require.NoError(t, err)
	require.NoError(t, srv.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	rs := &runningServer{Server: srv, cancel: cancel, errCh: make(chan error, 1)}
	go func() {
		rs.errCh <- srv.Serve(ctx)
	}()

	t.Cleanup(func() {
		rs.stop(t)
	})
	return rs
}

// stop cancels Serve and waits for it. Calling it twice is harmless.
func (rs *runningServer) stop(t *testing.T) {
	t.Helper()
	rs.cancel()
	select {
	case err, ok := <-rs.errCh:
		if ok {
			require.NoError(t, err)
			close(rs.errCh)
		}
	case <-time.After(2 * testTimeout):
		t.Fatal("server did not stop")
	}
}

// lineClient is a raw TCP peer.
type lineClient struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
}

// dialLine connects to the TCP listener and consumes the greeting.
func dialLine(t *testing.T, rs *runningServer) *lineClient {
	t.Helper()

	conn, err := net.DialTimeout("tcp", rs.Addr().String(), testTimeout)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	c := &lineClient{t: t, conn: conn, reader: bufio.NewReader(conn)}
	c.expect("-- Welcome to linechat, set a nick with /nick <name>")
	return c
}

func (c *lineClient) send(line string) {
	c.t.Helper()
	_, err := io.WriteString(c.conn, line+"\r\n")
	require.NoError(c.t, err)
}

func (c *lineClient) readLine() (string, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(testTimeout))
	line, err := c.reader.ReadString('\n')
	return strings.TrimRight(line, "\r\n"), err
}

// expect reads the next lines and requires them to equal want, in order.
func (c *lineClient) expect(want ...string) {
	c.t.Helper()
	for _, w := range want {
		got, err := c.readLine()
		require.NoError(c.t, err, "waiting for %q", w)
		require.Equal(c.t, w, got)
	}
}

// expectClosed requires the server to end the connection. A reset counts:
// the server may close with unread input still queued.
func (c *lineClient) expectClosed() {
	c.t.Helper()
	for {
		_, err := c.readLine()
		if err == nil {
			continue
		}
		if !errors.Is(err, syscall.ECONNRESET) {
			require.ErrorIs(c.t, err, io.EOF)
		}
		return
	}
}

// wsClient is a WebSocket peer. Frames may carry several lines.
type wsClient struct {
	t       *testing.T
	conn    *websocket.Conn
	pending []string
}

func dialWS(t *testing.T, rs *runningServer) *wsClient {
	t.Helper()

	header := map[string][]string{"Origin": {"http://localhost:8080"}}
	conn, resp, err := websocket.DefaultDialer.Dial("ws://"+rs.HTTPAddr().String()+"/ws", header)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })

	c := &wsClient{t: t, conn: conn}
	c.expect("-- Welcome to linechat, set a nick with /nick <name>")
	return c
}

func (c *wsClient) send(lines ...string) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteMessage(websocket.TextMessage, []byte(strings.Join(lines, "\n"))))
}

func (c *wsClient) expect(want ...string) {
	c.t.Helper()
	for _, w := range want {
		for len(c.pending) == 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(testTimeout))
			_, data, err := c.conn.ReadMessage()
			require.NoError(c.t, err, "waiting for %q", w)
			c.pending = strings.Split(string(data), "\n")
		}
		require.Equal(c.t, w, c.pending[0])
		c.pending = c.pending[1:]
	}
}

// fakeConn is an in-memory lineConn. Lines pushed on in are read by the
// client; written lines become visible on Flush.
type fakeConn struct {
	in chan string

	mu       sync.Mutex
	buffered []string
	written  []string
	flushes  int

	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan string, 16),
		closed: make(chan struct{}),
	}
}

func (f *fakeConn) ReadLine() (string, error) {
	select {
	case line, ok := <-f.in:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	case <-f.closed:
		return "", net.ErrClosed
	}
}

func (f *fakeConn) WriteLine(line string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.isClosed() {
		return net.ErrClosed
	}
	f.buffered = append(f.buffered, line)
	return nil
}

func (f *fakeConn) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.isClosed() {
		return net.ErrClosed
	}
	f.written = append(f.written, f.buffered...)
	f.buffered = nil
	f.flushes++
	return nil
}

func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeConn) RemoteAddr() string { return "fake:1" }

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func (f *fakeConn) Written() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.written...)
}

func (f *fakeConn) Flushes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flushes
}
