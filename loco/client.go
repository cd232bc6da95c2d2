package loco

import (
	"context"
	"errors"
	"fmt"

	"github.com/vipnode/locomux/session"
)

// ErrNoResponse is returned when a call resolves without a reply: the write
// failed, the session ended, or ctx ran out first.
var ErrNoResponse = errors.New("loco: no response")

// StatusError is a reply with a non-zero status.
type StatusError struct {
	Method string
	Status int32
}

func (err StatusError) Error() string {
	return fmt.Sprintf("loco: %s failed with status %d", err.Method, err.Status)
}

// Sender is implemented by *session.Session.
type Sender interface {
	Send(ctx context.Context, cmd session.Command) *session.Call
}

var _ Sender = &session.Session{}

// Client issues BSON request/response calls over a session.
type Client struct {
	Sender Sender
}

// Call sends method with params as its body, waits for the reply, checks its
// status and decodes the body into result (if result is not nil).
func (c *Client) Call(ctx context.Context, result interface{}, method string, params interface{}) error {
	cmd, err := NewCommand(method, params)
	if err != nil {
		return err
	}
	resp, ok := c.Sender.Send(ctx, cmd).Wait(ctx)
	if !ok {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %s", ErrNoResponse, err)
		}
		return ErrNoResponse
	}
	status, err := Status(resp)
	if err != nil {
		return err
	}
	if status != 0 {
		return StatusError{Method: resp.Method, Status: status}
	}
	if result == nil {
		return nil
	}
	return Unmarshal(resp, result)
}
