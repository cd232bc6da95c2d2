package session

import (
	"errors"
	"fmt"
)

var (
	// ErrReadErrorLimit ends the read loop when non-terminal read errors
	// arrive faster than Config.ReadErrorRate allows.
	ErrReadErrorLimit = errors.New("session: read error rate exceeded")

	errTableClosed = errors.New("session: correlation table closed")
)

// Command is an outbound request: a method name and an opaque payload that
// the codec knows how to write.
type Command struct {
	Method  string
	Payload []byte
}

// Response is an inbound reply or push.
type Response struct {
	Method  string
	Status  int16
	Payload []byte
}

// Frame is one decoded inbound message tagged with its correlation id.
type Frame struct {
	ID int32
	Response
}

func (f Frame) String() string {
	return fmt.Sprintf("frame %d %s (status %d, %d bytes)", f.ID, f.Method, f.Status, len(f.Payload))
}

// Handler receives every frame that matches no outstanding call, and every
// read error (with a zero Frame). It runs on the read loop, so it must not
// block; hand off to another goroutine for anything slow.
type Handler func(frame Frame, err error)

func nopHandler(Frame, error) {}

// pendingRequest travels through the submission queue to the write loop.
type pendingRequest struct {
	cmd  Command
	slot *slot
}

// ErrIDInUse is returned when a correlation id is still held by an
// unresolved call.
type ErrIDInUse struct {
	ID int32
}

func (err ErrIDInUse) Error() string {
	return fmt.Sprintf("correlation id in use: %d", err.ID)
}
