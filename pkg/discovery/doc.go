// ABOUTME: mDNS service discovery package
// ABOUTME: Discover and advertise Opaline servers on the local network
// Package discovery provides mDNS service discovery for Opaline servers.
//
// Servers advertise as _opaline-server._tcp; players browse for them and
// receive results on a channel.
package discovery
