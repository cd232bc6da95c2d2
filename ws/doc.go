// Package ws holds websocket transports for sessions. Each implementation
// turns a websocket connection into a byte stream: every Flush sends one
// binary message, and reads run across message boundaries.
package ws

import (
	"io"
	"net/http"
)

// Stream is a websocket connection seen as a byte stream.
type Stream interface {
	io.ReadWriteCloser
	Flush() error
}

// Upgrader takes an HTTP request, upgrades it to a websocket server and
// returns a stream. This allows switching between different websocket
// implementations.
type Upgrader interface {
	Upgrade(*http.Request, http.ResponseWriter) (Stream, error)
}
