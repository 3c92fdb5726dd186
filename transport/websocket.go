package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

const (
	// DefaultHandshakeTimeout bounds opening handshake
	DefaultHandshakeTimeout = 5 * time.Second
	// DefaultWriteTimeout bounds a single frame write when context has no deadline
	DefaultWriteTimeout = 5 * time.Second
	closeGracePeriod    = time.Second
)

// Conn is a bidirectional message channel to recognition service
type Conn interface {
	// WriteFrame sends encoded image frame as binary message
	WriteFrame(ctx context.Context, payload []byte) error
	// WriteControl sends control message (e.g. pong) as text message
	WriteControl(ctx context.Context, payload []byte) error
	// ReadMessage blocks until next message arrives. It unblocks with error once Close is called
	ReadMessage() (Message, error)
	Close() error
}

// Dialer opens new channels
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// WebsocketDialer opens websocket channels
type WebsocketDialer struct {
	URL              string
	Header           http.Header
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

// NewWebsocketDialer creates dialer with default timeouts
func NewWebsocketDialer(url string) *WebsocketDialer {
	return &WebsocketDialer{
		URL:              url,
		HandshakeTimeout: DefaultHandshakeTimeout,
		WriteTimeout:     DefaultWriteTimeout,
	}
}

// Dial implements Dialer
func (d *WebsocketDialer) Dial(ctx context.Context) (Conn, error) {
	handshakeTimeout := d.HandshakeTimeout
	if handshakeTimeout <= 0 {
		handshakeTimeout = DefaultHandshakeTimeout
	}
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, d.URL, d.Header)
	if err != nil {
		if resp != nil {
			return nil, errors.Wrapf(err, "can't dial %s (status %d)", d.URL, resp.StatusCode)
		}
		return nil, errors.Wrapf(err, "can't dial %s", d.URL)
	}
	writeTimeout := d.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	return NewWebsocketConn(conn, writeTimeout), nil
}

// WebsocketConn adapts gorilla connection to Conn
type WebsocketConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	// gorilla allows one concurrent writer only
	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// NewWebsocketConn wraps established websocket connection
func NewWebsocketConn(conn *websocket.Conn, writeTimeout time.Duration) *WebsocketConn {
	return &WebsocketConn{
		conn:         conn,
		writeTimeout: writeTimeout,
	}
}

// WriteFrame implements Conn
func (c *WebsocketConn) WriteFrame(ctx context.Context, payload []byte) error {
	return c.write(ctx, websocket.BinaryMessage, payload)
}

// WriteControl implements Conn
func (c *WebsocketConn) WriteControl(ctx context.Context, payload []byte) error {
	return c.write(ctx, websocket.TextMessage, payload)
}

func (c *WebsocketConn) write(ctx context.Context, messageType int, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	deadline := time.Now().Add(c.writeTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return errors.Wrap(err, "can't set write deadline")
	}
	if err := c.conn.WriteMessage(messageType, payload); err != nil {
		return errors.Wrap(err, "can't write message")
	}
	return nil
}

// ReadMessage implements Conn
func (c *WebsocketConn) ReadMessage() (Message, error) {
	messageType, data, err := c.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return Message{}, errors.Wrap(ErrChannelClosed, err.Error())
		}
		return Message{}, errors.Wrap(err, "can't read message")
	}
	return Decode(messageType, data), nil
}

// Close sends close frame (best effort) and releases connection. Safe to call many times
func (c *WebsocketConn) Close() error {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		closeMessage := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		// Peer may be gone already
		_ = c.conn.WriteControl(websocket.CloseMessage, closeMessage, time.Now().Add(closeGracePeriod))
		c.writeMu.Unlock()
		if err := c.conn.Close(); err != nil {
			c.closeErr = errors.Wrap(err, "can't close connection")
		}
	})
	return c.closeErr
}

// String returns remote address
func (c *WebsocketConn) String() string {
	return fmt.Sprintf("websocket(%s)", c.conn.RemoteAddr())
}
