package session

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"testing"
	"time"
)

const testTimeout = 2 * time.Second

// peer is the far end of a session's pipe. It reads requests and writes
// replies with the same JSON framing the session uses.
type peer struct {
	conn net.Conn
	dec  Decoder
	enc  *json.Encoder
}

func newPeer(conn net.Conn) *peer {
	return &peer{
		conn: conn,
		dec:  JSONCodec{}.NewDecoder(conn),
		enc:  json.NewEncoder(conn),
	}
}

func (p *peer) recv(t *testing.T) Frame {
	t.Helper()
	p.conn.SetReadDeadline(time.Now().Add(testTimeout))
	f, err := p.dec.Decode()
	if err != nil {
		t.Fatalf("peer failed to read request: %s", err)
	}
	return f
}

func (p *peer) reply(t *testing.T, id int32, method string, payload string) {
	t.Helper()
	p.conn.SetWriteDeadline(time.Now().Add(testTimeout))
	err := p.enc.Encode(jsonFrame{
		ID:      id,
		Method:  method,
		Payload: []byte(payload),
	})
	if err != nil {
		t.Fatalf("peer failed to write reply: %s", err)
	}
}

// openPipe starts a session on one end of a net.Pipe and returns a peer for
// the other end. The session is closed when the test ends.
func openPipe(t *testing.T, cfg Config, handler Handler) (*Session, *peer) {
	t.Helper()
	c1, c2 := net.Pipe()
	s := cfg.Open(c1, JSONCodec{}, handler)
	t.Cleanup(func() {
		c2.Close()
		s.Close()
	})
	return s, newPeer(c2)
}

func waitCall(t *testing.T, call *Call) (*Response, bool) {
	t.Helper()
	select {
	case <-call.Done():
	case <-time.After(testTimeout):
		t.Fatal("call did not resolve")
	}
	return call.Result()
}

// handled collects what a session passes to its handler.
type handled struct {
	frames chan Frame
	errs   chan error
}

func newHandled() *handled {
	return &handled{
		frames: make(chan Frame, 64),
		errs:   make(chan error, 64),
	}
}

func (h *handled) handle(frame Frame, err error) {
	if err != nil {
		h.errs <- err
		return
	}
	h.frames <- frame
}

func (h *handled) nextFrame(t *testing.T) Frame {
	t.Helper()
	select {
	case f := <-h.frames:
		return f
	case <-time.After(testTimeout):
		t.Fatal("handler did not receive a frame")
	}
	return Frame{}
}

var errForced = errors.New("forced write failure")

// flakyCodec fails to encode any command whose method is failMethod.
type flakyCodec struct {
	JSONCodec
	failMethod string
}

func (c flakyCodec) NewEncoder(w io.Writer) Encoder {
	return flakyEncoder{c.JSONCodec.NewEncoder(w), c.failMethod}
}

type flakyEncoder struct {
	Encoder
	failMethod string
}

func (e flakyEncoder) Encode(id int32, cmd Command) error {
	if cmd.Method == e.failMethod {
		return errForced
	}
	return e.Encoder.Encode(id, cmd)
}

// brokenCodec decodes nothing but errors.
type brokenCodec struct {
	JSONCodec
	err error
}

func (c brokenCodec) NewDecoder(io.Reader) Decoder {
	return brokenDecoder{c.err}
}

type brokenDecoder struct {
	err error
}

func (d brokenDecoder) Decode() (Frame, error) {
	return Frame{}, d.err
}

// gatedStream blocks every Write until gate is closed, and every Read until
// eof is closed.
type gatedStream struct {
	started chan struct{}
	gate    chan struct{}
	eof     chan struct{}
}

func newGatedStream() *gatedStream {
	return &gatedStream{
		started: make(chan struct{}, 1),
		gate:    make(chan struct{}),
		eof:     make(chan struct{}),
	}
}

func (g *gatedStream) Write(p []byte) (int, error) {
	select {
	case g.started <- struct{}{}:
	default:
	}
	<-g.gate
	return len(p), nil
}

func (g *gatedStream) Read(p []byte) (int, error) {
	<-g.eof
	return 0, io.EOF
}
