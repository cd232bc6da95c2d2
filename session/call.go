package session

import "context"

// Call is the pending result of Session.Send.
type Call struct {
	slot *slot
}

// Done is closed once the call has resolved, with or without a response.
func (c *Call) Done() <-chan struct{} {
	return c.slot.done
}

// Result returns the response if the call resolved with one. It does not
// block; before Done is closed it returns false.
func (c *Call) Result() (*Response, bool) {
	select {
	case <-c.slot.done:
	default:
		return nil, false
	}
	if c.slot.resp == nil {
		return nil, false
	}
	return c.slot.resp, true
}

// Wait blocks until the call resolves or ctx ends. A false result means there
// is no response: the write failed, the session shut down, or ctx ended first.
// Giving up on a call is safe; its reply is discarded when it arrives.
func (c *Call) Wait(ctx context.Context) (*Response, bool) {
	select {
	case <-c.slot.done:
		return c.Result()
	case <-ctx.Done():
		return nil, false
	}
}

func resolvedCall() *Call {
	s := newSlot()
	s.drop()
	return &Call{slot: s}
}
