// ABOUTME: Package documentation for core audio types
// ABOUTME: Describes configs, encrypted buffers, frames, and timestamp math
// Package audio provides the core data model for the Opaline player.
//
// This package defines the types that flow through the decrypting decode
// pipeline:
//   - Config: describes an encrypted audio stream (codec, rate, channels)
//   - EncryptedBuffer: one compressed, encrypted chunk plus key ID and IV
//   - Frame: one decoded PCM frame with reconstructed timestamp/duration
//   - FrameTimestamper: derives a gapless output timeline from frame counts
package audio
