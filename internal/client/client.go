// Package client is the consumer side of the relay's socket protocol:
// connect, send one rate byte, then read raw frames whose size the caller
// already knows.
package client

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"
)

// Client is a connected consumer.
type Client struct {
	conn net.Conn
	rate uint8
}

// Dial connects to the relay socket at path and requests rate frames per
// second (0 for unthrottled).
func Dial(ctx context.Context, path string, rate uint8) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", path, err)
	}
	if _, err := conn.Write([]byte{rate}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send rate byte: %w", err)
	}
	return &Client{conn: conn, rate: rate}, nil
}

// Rate returns the rate requested at dial time.
func (c *Client) Rate() uint8 {
	return c.rate
}

// ReadFrame fills buf with exactly one frame of len(buf) bytes.
func (c *Client) ReadFrame(buf []byte) error {
	if _, err := io.ReadFull(c.conn, buf); err != nil {
		return fmt.Errorf("read frame: %w", err)
	}
	return nil
}

// SetReadDeadline bounds the next ReadFrame calls.
func (c *Client) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// Close disconnects from the relay.
func (c *Client) Close() error {
	return c.conn.Close()
}
