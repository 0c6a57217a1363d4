// Package server implements the lobby transport and the HTTP monitoring API.
//
// UDPServer reads datagrams on a background goroutine into a queue which the
// tick goroutine drains with PollEvents. Every drained packet goes through a
// Dispatcher, which decodes the opcode and runs the handler registered for it.
// HTTPServer exposes read-only JSON views of a LobbyStatus snapshot plus the
// Prometheus registry.
package server
