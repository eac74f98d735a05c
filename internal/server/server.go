// ABOUTME: Demo server implementation for the Opaline Protocol
// ABOUTME: Manages WebSocket sessions and streams encrypted audio chunks
package server

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/Opaline-Protocol/opaline-go/pkg/discovery"
	"github.com/Opaline-Protocol/opaline-go/pkg/protocol"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	ProtocolVersion = 1

	// frameDuration is the audio chunk cadence (20ms Opus frames).
	frameDuration = 20 * time.Millisecond
)

// Config holds server configuration.
type Config struct {
	Port       int
	Name       string
	EnableMDNS bool

	// AudioFile is an MP3 to stream. Empty streams a test tone.
	AudioFile string

	// ToneSeconds bounds the test tone stream (0 = endless).
	ToneSeconds int

	// KeyDelay postpones stream/key delivery after stream/start, to
	// exercise players stalled waiting for a key.
	KeyDelay time.Duration
}

// Server is the Opaline demo server. It streams one encrypted audio
// stream to every client that connects.
type Server struct {
	config   Config
	serverID string

	upgrader   websocket.Upgrader
	httpServer *http.Server
	mux        *http.ServeMux

	encryptor *ChunkEncryptor

	clients   map[string]*session
	clientsMu sync.RWMutex

	mdnsManager *discovery.Manager

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// session is one connected client.
type session struct {
	id   string
	name string
	conn *websocket.Conn

	writeMu sync.Mutex
}

// New creates a new server instance.
func New(config Config) (*Server, error) {
	keyID, key, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	encryptor, err := NewChunkEncryptor(keyID, key)
	if err != nil {
		return nil, err
	}

	srv := &Server{
		config:    config,
		serverID:  uuid.New().String(),
		mux:       http.NewServeMux(),
		encryptor: encryptor,
		upgrader: websocket.Upgrader{
			// Local network deployments only; accept all origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients:  make(map[string]*session),
		stopChan: make(chan struct{}),
	}
	srv.mux.HandleFunc("/opaline", srv.handleWebSocket)
	return srv, nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.mux }

// Start starts the server and blocks until it shuts down.
func (s *Server) Start() error {
	log.Printf("Server starting: %s (ID: %s)", s.config.Name, s.serverID)

	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        s.config.Port,
			ServerMode:  true,
		})
		if err := s.mdnsManager.Advertise(); err != nil {
			log.Printf("mDNS advertisement failed: %v", err)
		}
	}

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.config.Port),
		Handler: s.mux,
	}

	log.Printf("Listening on port %d", s.config.Port)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Stop shuts the server down.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		if s.mdnsManager != nil {
			s.mdnsManager.Stop()
		}
		s.clientsMu.Lock()
		for _, sess := range s.clients {
			sess.conn.Close()
		}
		s.clientsMu.Unlock()
		if s.httpServer != nil {
			s.httpServer.Close()
		}
		s.wg.Wait()
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	sess, err := s.handshake(conn)
	if err != nil {
		log.Printf("Handshake failed: %v", err)
		conn.Close()
		return
	}

	s.clientsMu.Lock()
	s.clients[sess.id] = sess
	s.clientsMu.Unlock()

	log.Printf("Client connected: %s (%s)", sess.name, sess.id)

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.readLoop(sess)
	}()
	go func() {
		defer s.wg.Done()
		defer s.dropClient(sess)
		if err := s.streamTo(sess); err != nil {
			log.Printf("Stream to %s ended: %v", sess.name, err)
		}
	}()
}

// handshake reads client/hello and answers with server/hello.
func (s *Server) handshake(conn *websocket.Conn) (*session, error) {
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("failed to read client/hello: %w", err)
	}
	conn.SetReadDeadline(time.Time{})

	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse client/hello: %w", err)
	}
	if msg.Type != "client/hello" {
		return nil, fmt.Errorf("expected client/hello, got %s", msg.Type)
	}

	payloadBytes, _ := json.Marshal(msg.Payload)
	var hello protocol.ClientHello
	if err := json.Unmarshal(payloadBytes, &hello); err != nil {
		return nil, fmt.Errorf("failed to parse hello payload: %w", err)
	}

	sess := &session{
		id:   hello.ClientID,
		name: hello.Name,
		conn: conn,
	}
	if sess.id == "" {
		sess.id = uuid.New().String()
	}

	serverHello := protocol.Message{
		Type: "server/hello",
		Payload: protocol.ServerHello{
			ServerID: s.serverID,
			Name:     s.config.Name,
			Version:  ProtocolVersion,
		},
	}
	if err := sess.sendJSON(serverHello); err != nil {
		return nil, fmt.Errorf("failed to send server/hello: %w", err)
	}

	return sess, nil
}

// readLoop drains client messages until disconnect.
func (s *Server) readLoop(sess *session) {
	for {
		_, data, err := sess.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "client/state":
			var state protocol.ClientState
			payloadBytes, _ := json.Marshal(msg.Payload)
			if err := json.Unmarshal(payloadBytes, &state); err == nil {
				log.Printf("Client %s state: %s (volume %d)", sess.name, state.State, state.Volume)
			}
		case "client/goodbye":
			log.Printf("Client %s said goodbye", sess.name)
		}
	}
}

// streamTo runs one encrypted stream to a client.
func (s *Server) streamTo(sess *session) error {
	source, err := s.newSource()
	if err != nil {
		return err
	}
	defer source.Close()

	start := protocol.Message{
		Type: "stream/start",
		Payload: protocol.StreamStart{
			Codec:      "opus",
			SampleRate: source.SampleRate(),
			Channels:   source.Channels(),
			BitDepth:   16,
			Encrypted:  true,
			KeyID:      base64.StdEncoding.EncodeToString(s.encryptor.KeyID()),
		},
	}
	if err := sess.sendJSON(start); err != nil {
		return fmt.Errorf("failed to send stream/start: %w", err)
	}

	// Key delivery is intentionally decoupled from stream/start: with a
	// delay configured, chunks outrun their key and the player has to
	// stall until the key lands.
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if s.config.KeyDelay > 0 {
			log.Printf("Delaying key delivery by %v", s.config.KeyDelay)
			select {
			case <-time.After(s.config.KeyDelay):
			case <-s.stopChan:
				return
			}
		}
		keyMsg := protocol.Message{
			Type:    "stream/key",
			Payload: protocol.EncodeStreamKey(s.encryptor.KeyID(), s.encryptor.Key()),
		}
		if err := sess.sendJSON(keyMsg); err != nil {
			log.Printf("Failed to send stream/key: %v", err)
		}
	}()

	frameSize := source.SampleRate() * int(frameDuration.Milliseconds()) / 1000
	encoder, err := NewOpusEncoder(source.SampleRate(), source.Channels(), frameSize)
	if err != nil {
		return err
	}
	defer encoder.Close()

	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	pcm := make([]int16, frameSize*source.Channels())
	var timestamp time.Duration

	for {
		select {
		case <-s.stopChan:
			return nil
		case <-ticker.C:
		}

		n, err := source.Read(pcm)
		if err == io.EOF || n == 0 {
			return s.endStream(sess, timestamp)
		}
		if err != nil {
			return fmt.Errorf("source read failed: %w", err)
		}
		// Pad a short final read to a full Opus frame.
		for i := n; i < len(pcm); i++ {
			pcm[i] = 0
		}

		packet, err := encoder.Encode(pcm)
		if err != nil {
			return err
		}

		iv, ciphertext, err := s.encryptor.Encrypt(packet)
		if err != nil {
			return err
		}

		chunk := protocol.AudioChunk{
			Timestamp: timestamp.Microseconds(),
			IV:        iv,
			Payload:   ciphertext,
		}
		if err := sess.sendChunk(chunk); err != nil {
			return err
		}

		timestamp += frameDuration
	}
}

// endStream sends the EOS chunk and stream/end.
func (s *Server) endStream(sess *session, timestamp time.Duration) error {
	eos := protocol.AudioChunk{Timestamp: timestamp.Microseconds(), EOS: true}
	if err := sess.sendChunk(eos); err != nil {
		return err
	}
	end := protocol.Message{Type: "stream/end", Payload: protocol.StreamEnd{Reason: "complete"}}
	return sess.sendJSON(end)
}

func (s *Server) newSource() (AudioSource, error) {
	if s.config.AudioFile != "" {
		return NewMP3Source(s.config.AudioFile)
	}
	maxFrames := uint64(s.config.ToneSeconds) * uint64(DefaultSampleRate)
	return NewTestToneSource(maxFrames), nil
}

func (s *Server) dropClient(sess *session) {
	s.clientsMu.Lock()
	delete(s.clients, sess.id)
	s.clientsMu.Unlock()
	sess.conn.Close()
	log.Printf("Client disconnected: %s", sess.name)
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

func (c *session) sendJSON(msg protocol.Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(msg)
}

func (c *session) sendChunk(chunk protocol.AudioChunk) error {
	data, err := chunk.Marshal()
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}
