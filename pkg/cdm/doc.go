// ABOUTME: Package documentation for the CDM capability layer
// ABOUTME: Describes the Decryptor contract, key store, and ClearKey module
// Package cdm defines the decryptor capability the Opaline decode stage
// consumes, and provides a ClearKey reference implementation.
//
// A Decryptor turns one encrypted, compressed buffer into zero or more
// decoded PCM frames, or a status code. The decode stage never inspects
// decryption internals; it reacts only to the four Status values and to
// key-arrival signals from RegisterKeyListener.
//
// Source is the one-shot hand-off through which a player makes a
// Decryptor available to the decode stage once the stream format (and
// therefore the right CDM) is known.
package cdm
