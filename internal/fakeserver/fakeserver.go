// Package fakeserver is a LOCO responder for tests and local experiments. It
// echoes every command back with status 0, except for a few reserved
// methods.
package fakeserver

import (
	"errors"
	"io"
	"net"
	"sync"

	"github.com/vipnode/locomux/loco"
	"github.com/vipnode/locomux/session"
	"go.mongodb.org/mongo-driver/bson"
)

const (
	// MethodFail is answered with StatusFail.
	MethodFail = "FAIL"
	// MethodDrop is never answered.
	MethodDrop = "DROP"
	// MethodPushMe is answered, then followed by a push of MethodPush.
	MethodPushMe = "PUSHME"
	// MethodPush is the method of server-initiated frames.
	MethodPush = "MSG"

	StatusFail int32 = -500

	// FirstPushID is the id of the first push. Pushes count up from it so they
	// never collide with the low ids a fresh session uses.
	FirstPushID uint32 = 0x7fff0000
)

// Call is a command the server received.
type Call struct {
	ID     uint32
	Method string
}

// Calls lists received commands in arrival order.
type Calls []Call

// Server answers LOCO commands on any number of connections.
type Server struct {
	Limits loco.Limits

	mu     sync.Mutex
	calls  Calls
	conns  map[*conn]struct{}
	pushID uint32
}

func New() *Server {
	return &Server{
		conns:  map[*conn]struct{}{},
		pushID: FirstPushID,
	}
}

type conn struct {
	rw io.ReadWriter
	mu sync.Mutex
}

func (c *conn) write(h loco.Header, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := loco.WriteFrame(c.rw, h, body); err != nil {
		return err
	}
	return session.FlushWriter(c.rw)
}

// Calls returns the commands received so far, in arrival order.
func (s *Server) Calls() Calls {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(Calls, len(s.calls))
	copy(out, s.calls)
	return out
}

// Serve accepts connections until l is closed.
func (s *Server) Serve(l net.Listener) error {
	for {
		c, err := l.Accept()
		if err != nil {
			return err
		}
		go func() {
			defer c.Close()
			if err := s.ServeConn(c); err != nil && err != io.EOF {
				logger.Printf("connection %s ended: %s", c.RemoteAddr(), err)
			}
		}()
	}
}

// ServeConn answers commands on rw until reading fails.
func (s *Server) ServeConn(rw io.ReadWriter) error {
	c := &conn{rw: rw}
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
	}()

	limits := s.Limits
	if limits == (loco.Limits{}) {
		limits = loco.DefaultLimits()
	}
	for {
		h, body, err := loco.ReadFrame(rw, limits)
		var frameErr loco.FrameError
		if errors.As(err, &frameErr) {
			logger.Printf("skipping frame: %s", err)
			continue
		}
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.calls = append(s.calls, Call{h.ID, h.Method})
		s.mu.Unlock()

		if err := s.answer(c, h, body); err != nil {
			return err
		}
	}
}

func (s *Server) answer(c *conn, h loco.Header, body []byte) error {
	status := int32(0)
	switch h.Method {
	case MethodDrop:
		return nil
	case MethodFail:
		status = StatusFail
	}

	reply, err := bson.Marshal(bson.D{
		{Key: "status", Value: status},
		{Key: "echo", Value: bson.Raw(orEmpty(body))},
	})
	if err != nil {
		return err
	}
	if err := c.write(loco.Header{ID: h.ID, Method: h.Method}, reply); err != nil {
		return err
	}
	if h.Method == MethodPushMe {
		return s.pushTo(c, MethodPush, bson.D{{Key: "for", Value: int64(h.ID)}})
	}
	return nil
}

// Push sends an unsolicited frame to every open connection.
func (s *Server) Push(method string, doc interface{}) error {
	s.mu.Lock()
	conns := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		if err := s.pushTo(c, method, doc); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) pushTo(c *conn, method string, doc interface{}) error {
	body, err := bson.Marshal(doc)
	if err != nil {
		return err
	}
	s.mu.Lock()
	id := s.pushID
	s.pushID++
	s.mu.Unlock()
	return c.write(loco.Header{ID: id, Method: method}, body)
}

func orEmpty(body []byte) []byte {
	if len(body) == 0 {
		empty, _ := bson.Marshal(bson.D{})
		return empty
	}
	return body
}
