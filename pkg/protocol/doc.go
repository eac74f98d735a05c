// ABOUTME: Opaline wire protocol package
// ABOUTME: Defines protocol messages, the audio chunk codec, and the client
// Package protocol implements the Opaline wire protocol.
//
// Control messages (handshake, stream setup, key delivery) are JSON over
// WebSocket text frames; audio travels as binary chunks carrying a
// timestamp, an initialization vector, and the encrypted payload.
package protocol
