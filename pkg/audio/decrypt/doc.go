// ABOUTME: Package documentation for the decrypting decode stage
// ABOUTME: Explains the state machine, threading model, and call contract
// Package decrypt implements the decrypting audio decode stage of the
// Opaline player: an asynchronous pipeline component that turns
// encrypted, compressed audio buffers into decoded, timestamp-continuous
// PCM frames by delegating decrypt+decode work to a cdm.Decryptor.
//
// All operations and completion callbacks execute on a single internal
// goroutine, so no two callbacks ever run concurrently, though they
// interleave across the decoder's suspension points (waiting for the
// decryptor, for a decode response, or for a key to arrive).
//
// Call contract: Initialize must complete successfully before Decode;
// at most one Decode may be outstanding at a time; Reset must not be
// called while Initialize is outstanding. Violations are programmer
// errors and panic. Stop may be called at any time and aborts every
// outstanding callback exactly once.
package decrypt
