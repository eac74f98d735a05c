// ABOUTME: High-level Opaline library API
// ABOUTME: Provides the Player API for most use cases
// Package opaline provides the high-level API for Opaline audio playback.
//
// This is the main entry point for most library users. A Player connects
// to an Opaline server, obtains content keys over the control channel,
// and plays encrypted streams through a decrypting decode stage.
//
// Example:
//
//	player, err := opaline.NewPlayer(opaline.PlayerConfig{
//	    ServerAddr: "localhost:8927",
//	    PlayerName: "Living Room",
//	    Volume:     80,
//	})
//	err = player.Connect()
//
// For lower-level control, see the audio, cdm, protocol, and discovery
// packages.
package opaline
