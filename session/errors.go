package session

import (
	"errors"
	"io"
	"net"
)

type terminalError struct {
	error
}

func (err terminalError) Terminal() bool { return true }

func (err terminalError) Unwrap() error { return err.error }

// Terminal marks err as unrecoverable for the stream it came from. A decoder
// returns a Terminal error when it cannot find the next frame boundary, which
// stops the read loop instead of retrying a broken stream.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return terminalError{err}
}

// IsTerminal reports whether a read error means the stream is finished.
func IsTerminal(err error) bool {
	var t interface{ Terminal() bool }
	if errors.As(err, &t) && t.Terminal() {
		return true
	}
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed)
}
