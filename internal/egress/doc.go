// Package egress routes browser traffic through a SOCKS5 proxy.
//
// Client checks that a proxy really speaks SOCKS5 before the browser is
// pointed at it, and provides an HTTP client over the same proxy for
// reachability checks. EmbeddedTor starts a private Tor daemon with
// tornago when the user asks for Tor instead of an existing proxy.
package egress
