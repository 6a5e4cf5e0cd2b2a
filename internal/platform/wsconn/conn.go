// Package wsconn is the websocket plumbing shared by the exchange stream
// clients: dialing, keepalive pings, serialized writes and a blocking read
// loop bound to a context.
package wsconn

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/triarb/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// readWait is the time allowed between two inbound frames of any kind.
	readWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than readWait.
	pingPeriod = 20 * time.Second

	handshakeTimeout = 15 * time.Second
)

// Conn wraps a gorilla websocket connection.
type Conn struct {
	conn *websocket.Conn

	writeMu sync.Mutex
	once    sync.Once
}

// Dial opens a websocket connection to url.
func Dial(ctx context.Context, url string, header http.Header) (*Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
		Proxy:            http.ProxyFromEnvironment,
	}
	conn, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("wsconn: connect: %w", err)
	}

	c := &Conn{conn: conn}
	conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})
	return c, nil
}

// WriteJSON sends v as a text frame. Safe for concurrent use.
func (c *Conn) WriteJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(v); err != nil {
		return fmt.Errorf("wsconn: write: %w", err)
	}
	return nil
}

// Run reads frames and hands each payload to handle until ctx is cancelled,
// the peer goes away or handle returns an error. A keepalive ping is sent
// every pingPeriod. The connection is closed on return.
//
// Run returns ctx.Err() on cancellation and an error wrapping
// domain.ErrWSDisconnect when the connection drops.
func (c *Conn) Run(ctx context.Context, handle func([]byte) error) error {
	stop := make(chan struct{})
	defer close(stop)
	defer c.Close()

	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-stop:
		}
	}()
	go c.pingLoop(stop)

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("wsconn: read: %w: %w", domain.ErrWSDisconnect, err)
		}
		c.conn.SetReadDeadline(time.Now().Add(readWait))
		if err := handle(msg); err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
	}
}

// Close sends a close frame and tears the connection down. Safe to call
// more than once.
func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

func (c *Conn) pingLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
