// ABOUTME: End-to-end tests for the demo server
// ABOUTME: Drives the WebSocket handshake and stream flow with a raw client
package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Opaline-Protocol/opaline-go/pkg/protocol"
	"github.com/gorilla/websocket"
)

func dialTestServer(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/opaline"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	hello := protocol.Message{
		Type: "client/hello",
		Payload: protocol.ClientHello{
			ClientID:        "test-client",
			Name:            "Test Client",
			Version:         ProtocolVersion,
			SupportedCodecs: []string{"opus"},
		},
	}
	if err := conn.WriteJSON(hello); err != nil {
		t.Fatalf("failed to send hello: %v", err)
	}

	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) protocol.Message {
	t.Helper()
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if msgType != websocket.TextMessage {
			continue
		}
		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("bad JSON message: %v", err)
		}
		return msg
	}
}

func TestServerHandshake(t *testing.T) {
	srv, err := New(Config{Name: "Test Server", ToneSeconds: 1})
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	defer srv.Stop()

	conn := dialTestServer(t, srv)

	msg := readJSON(t, conn)
	if msg.Type != "server/hello" {
		t.Fatalf("expected server/hello, got %s", msg.Type)
	}

	payloadBytes, _ := json.Marshal(msg.Payload)
	var hello protocol.ServerHello
	if err := json.Unmarshal(payloadBytes, &hello); err != nil {
		t.Fatalf("bad server/hello payload: %v", err)
	}
	if hello.Name != "Test Server" || hello.Version != ProtocolVersion {
		t.Errorf("unexpected server/hello: %+v", hello)
	}
}

func TestServerStreamFlow(t *testing.T) {
	srv, err := New(Config{Name: "Test Server", ToneSeconds: 1})
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	defer srv.Stop()

	conn := dialTestServer(t, srv)
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))

	if msg := readJSON(t, conn); msg.Type != "server/hello" {
		t.Fatalf("expected server/hello, got %s", msg.Type)
	}

	var sawStart, sawKey, sawChunk, sawEOS, sawEnd bool
	var start protocol.StreamStart

	for !sawEnd {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}

		if msgType == websocket.BinaryMessage {
			chunk, err := protocol.UnmarshalAudioChunk(data)
			if err != nil {
				t.Fatalf("bad audio chunk: %v", err)
			}
			if chunk.EOS {
				sawEOS = true
			} else {
				if len(chunk.Payload) == 0 {
					t.Error("audio chunk with empty payload")
				}
				if len(chunk.IV) != protocol.ChunkIVSize {
					t.Errorf("bad IV length %d", len(chunk.IV))
				}
				sawChunk = true
			}
			continue
		}

		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("bad JSON message: %v", err)
		}
		payloadBytes, _ := json.Marshal(msg.Payload)

		switch msg.Type {
		case "stream/start":
			if err := json.Unmarshal(payloadBytes, &start); err != nil {
				t.Fatalf("bad stream/start: %v", err)
			}
			if !start.Encrypted || start.KeyID == "" {
				t.Errorf("stream not announced as encrypted: %+v", start)
			}
			if start.Codec != "opus" || start.SampleRate != 48000 {
				t.Errorf("unexpected format: %+v", start)
			}
			sawStart = true

		case "stream/key":
			var key protocol.StreamKey
			if err := json.Unmarshal(payloadBytes, &key); err != nil {
				t.Fatalf("bad stream/key: %v", err)
			}
			keyID, keyBytes, err := key.Decode()
			if err != nil {
				t.Fatalf("undecodable key: %v", err)
			}
			if len(keyBytes) != 16 {
				t.Errorf("expected 16-byte key, got %d", len(keyBytes))
			}
			wantID, _ := start.KeyIDBytes()
			if sawStart && string(keyID) != string(wantID) {
				t.Error("stream/key id does not match stream/start")
			}
			sawKey = true

		case "stream/end":
			sawEnd = true
		}
	}

	if !sawStart || !sawKey || !sawChunk || !sawEOS {
		t.Errorf("incomplete stream flow: start=%v key=%v chunk=%v eos=%v",
			sawStart, sawKey, sawChunk, sawEOS)
	}
}
