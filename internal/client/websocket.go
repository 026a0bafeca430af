// ABOUTME: WebSocket subscriber for the item stream sink
// ABOUTME: Handles connection, the hello handshake and routing of frames
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/Resonate-Protocol/iqsource/internal/protocol"
	"github.com/gorilla/websocket"
)

// Config holds client configuration
type Config struct {
	// ServerAddr is host:port of the sink
	ServerAddr string

	// Codec requested from the sink (default: raw)
	Codec string
}

// RemoteError is a server/error message received from the sink
type RemoteError struct {
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("server error %s: %s", e.Code, e.Message)
}

// Client receives one item stream
type Client struct {
	config Config
	conn   *websocket.Conn
	mu     sync.RWMutex

	// Frames carries binary frames in arrival order: whole items for raw,
	// one packet per frame for opus
	Frames chan []byte

	// Stats carries server/stats updates; full buffers drop updates
	Stats chan protocol.ServerStats

	hello protocol.ServerHello

	connected bool
	ctx       context.Context
	cancel    context.CancelFunc
	err       error
}

// NewClient creates a new subscriber
func NewClient(config Config) *Client {
	if config.Codec == "" {
		config.Codec = protocol.CodecRaw
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		config: config,
		Frames: make(chan []byte, 100),
		Stats:  make(chan protocol.ServerStats, 10),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Connect dials the sink and waits for its hello
func (c *Client) Connect() error {
	u := url.URL{
		Scheme:   "ws",
		Host:     c.config.ServerAddr,
		Path:     "/stream",
		RawQuery: url.Values{"codec": {c.config.Codec}}.Encode(),
	}
	log.Printf("Connecting to %s", u.String())

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if err := c.handshake(); err != nil {
		c.Close()
		return fmt.Errorf("handshake failed: %w", err)
	}

	go c.readMessages()
	return nil
}

// handshake reads the server/hello, or the error the sink refused us with
func (c *Client) handshake() error {
	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read server/hello: %w", err)
	}
	c.conn.SetReadDeadline(time.Time{})

	msgType, payload, err := decode(data)
	if err != nil {
		return err
	}

	switch msgType {
	case protocol.TypeServerHello:
		if err := json.Unmarshal(payload, &c.hello); err != nil {
			return fmt.Errorf("failed to parse server/hello: %w", err)
		}
	case protocol.TypeServerError:
		return remoteError(payload)
	default:
		return fmt.Errorf("expected server/hello, got %s", msgType)
	}

	log.Printf("Subscribed to %s (%s, item size %d, codec %s)",
		c.hello.Name, c.hello.ServerID, c.hello.ItemSize, c.hello.Codec)
	return nil
}

// Hello returns the sink's hello
func (c *Client) Hello() protocol.ServerHello {
	return c.hello
}

// readMessages routes frames until the connection ends
func (c *Client) readMessages() {
	defer close(c.Frames)
	defer c.Close()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.setErr(err)
				log.Printf("Read error: %v", err)
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			select {
			case c.Frames <- data:
			case <-c.ctx.Done():
				return
			}
		case websocket.TextMessage:
			if !c.handleJSONMessage(data) {
				return
			}
		}
	}
}

// handleJSONMessage reports whether reading should continue
func (c *Client) handleJSONMessage(data []byte) bool {
	msgType, payload, err := decode(data)
	if err != nil {
		log.Printf("Failed to parse JSON message: %v", err)
		return true
	}

	switch msgType {
	case protocol.TypeServerStats:
		var st protocol.ServerStats
		if err := json.Unmarshal(payload, &st); err != nil {
			log.Printf("Failed to parse stats: %v", err)
			return true
		}
		select {
		case c.Stats <- st:
		default:
		}
	case protocol.TypeServerError:
		err := remoteError(payload)
		c.setErr(err)
		log.Printf("Stream ended: %v", err)
		return false
	default:
		log.Printf("Unknown message type: %s", msgType)
	}
	return true
}

func decode(data []byte) (string, json.RawMessage, error) {
	var msg struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return "", nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return msg.Type, msg.Payload, nil
}

func remoteError(payload json.RawMessage) error {
	var se protocol.ServerError
	if err := json.Unmarshal(payload, &se); err != nil {
		return fmt.Errorf("failed to parse server/error: %w", err)
	}
	return &RemoteError{Code: se.Error, Message: se.Message}
}

func (c *Client) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

// Err returns why the stream ended, or nil for a clean close
func (c *Client) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Close closes the connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		c.connected = false
		c.cancel()
		c.conn.Close()
		log.Printf("Connection closed")
	}
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
