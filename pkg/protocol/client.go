// ABOUTME: WebSocket client for Opaline Protocol communication
// ABOUTME: Handles connection, handshake, and message routing
package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Config holds client configuration.
type Config struct {
	ServerAddr      string
	ClientID        string
	Name            string
	Version         int
	SupportedCodecs []string
	DeviceInfo      DeviceInfo
}

// Client is a WebSocket client for an Opaline server. Incoming messages
// are routed onto typed channels.
type Client struct {
	config Config
	conn   *websocket.Conn
	mu     sync.RWMutex

	// Message channels
	AudioChunks chan AudioChunk
	StreamStart chan StreamStart
	StreamKeys  chan StreamKey
	StreamEnd   chan StreamEnd

	connected bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewClient creates a new WebSocket client.
func NewClient(config Config) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		config:      config,
		AudioChunks: make(chan AudioChunk, 100),
		StreamStart: make(chan StreamStart, 1),
		StreamKeys:  make(chan StreamKey, 10),
		StreamEnd:   make(chan StreamEnd, 1),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Connect establishes the WebSocket connection and performs the handshake.
func (c *Client) Connect() error {
	u := url.URL{Scheme: "ws", Host: c.config.ServerAddr, Path: "/opaline"}
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

// handshake sends client/hello and waits for server/hello.
func (c *Client) handshake() error {
	hello := ClientHello{
		ClientID:        c.config.ClientID,
		Name:            c.config.Name,
		Version:         c.config.Version,
		SupportedCodecs: c.config.SupportedCodecs,
		DeviceInfo:      &c.config.DeviceInfo,
	}

	if err := c.sendJSON(Message{Type: "client/hello", Payload: hello}); err != nil {
		return fmt.Errorf("failed to send client/hello: %w", err)
	}

	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read server/hello: %w", err)
	}
	c.conn.SetReadDeadline(time.Time{})

	var serverMsg Message
	if err := json.Unmarshal(data, &serverMsg); err != nil {
		return fmt.Errorf("failed to parse server/hello: %w", err)
	}
	if serverMsg.Type != "server/hello" {
		return fmt.Errorf("expected server/hello, got %s", serverMsg.Type)
	}

	log.Printf("Handshake complete with server")

	state := ClientState{State: "ready", Volume: 100}
	if err := c.sendJSON(Message{Type: "client/state", Payload: state}); err != nil {
		return fmt.Errorf("failed to send initial state: %w", err)
	}

	return nil
}

func (c *Client) sendJSON(msg Message) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected {
		return fmt.Errorf("not connected")
	}
	return c.conn.WriteJSON(msg)
}

// readMessages reads and routes incoming messages until the connection
// drops or the client closes.
func (c *Client) readMessages() {
	defer c.Close()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			log.Printf("Read error: %v", err)
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			c.handleBinaryMessage(data)
		case websocket.TextMessage:
			c.handleJSONMessage(data)
		default:
			log.Printf("Unknown WebSocket message type: %d", messageType)
		}
	}
}

func (c *Client) handleBinaryMessage(data []byte) {
	chunk, err := UnmarshalAudioChunk(data)
	if err != nil {
		log.Printf("Invalid audio chunk: %v", err)
		return
	}

	select {
	case c.AudioChunks <- chunk:
	case <-c.ctx.Done():
	}
}

func (c *Client) handleJSONMessage(data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Failed to parse JSON message: %v", err)
		return
	}

	payloadBytes, _ := json.Marshal(msg.Payload)

	switch msg.Type {
	case "stream/start":
		var start StreamStart
		if err := json.Unmarshal(payloadBytes, &start); err != nil {
			log.Printf("Failed to parse stream/start: %v", err)
			return
		}
		log.Printf("Stream start: %s %dHz %dch encrypted=%v",
			start.Codec, start.SampleRate, start.Channels, start.Encrypted)
		select {
		case c.StreamStart <- start:
		case <-c.ctx.Done():
		}

	case "stream/key":
		var key StreamKey
		if err := json.Unmarshal(payloadBytes, &key); err != nil {
			log.Printf("Failed to parse stream/key: %v", err)
			return
		}
		select {
		case c.StreamKeys <- key:
		case <-c.ctx.Done():
		}

	case "stream/end":
		var end StreamEnd
		if err := json.Unmarshal(payloadBytes, &end); err != nil {
			log.Printf("Failed to parse stream/end: %v", err)
			return
		}
		select {
		case c.StreamEnd <- end:
		case <-c.ctx.Done():
		}

	default:
		log.Printf("Unknown message type: %s", msg.Type)
	}
}

// SendState sends a client/state message.
func (c *Client) SendState(state ClientState) error {
	return c.sendJSON(Message{Type: "client/state", Payload: state})
}

// SendGoodbye sends a client/goodbye message before disconnecting.
func (c *Client) SendGoodbye(reason string) error {
	return c.sendJSON(Message{Type: "client/goodbye", Payload: ClientGoodbye{Reason: reason}})
}

// Close closes the connection.
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

// IsConnected returns connection status.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
