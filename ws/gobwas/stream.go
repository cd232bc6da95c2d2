// Package gobwas implements websocket streams with github.com/gobwas/ws.
package gobwas

import (
	"context"
	"io"
	"net"
	"net/http"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	locows "github.com/vipnode/locomux/ws"
)

var _ locows.Stream = &Stream{}

// Stream reads and writes binary websocket messages over conn.
type Stream struct {
	conn    net.Conn
	r       *wsutil.Reader
	w       *wsutil.Writer
	inFrame bool
}

// Dial opens a client-side stream to url.
func Dial(ctx context.Context, url string) (*Stream, error) {
	conn, br, _, err := ws.Dial(ctx, url)
	if err != nil {
		return nil, err
	}
	var src io.Reader = conn
	if br != nil {
		// The server may have sent frames right after the handshake.
		src = io.MultiReader(br, conn)
	}
	return newStream(conn, src, ws.StateClientSide), nil
}

// ClientStream wraps an already upgraded client-side connection.
func ClientStream(conn net.Conn) *Stream {
	return newStream(conn, conn, ws.StateClientSide)
}

// ServerStream wraps an already upgraded server-side connection.
func ServerStream(conn net.Conn) *Stream {
	return newStream(conn, conn, ws.StateServerSide)
}

func newStream(conn net.Conn, src io.Reader, state ws.State) *Stream {
	return &Stream{
		conn: conn,
		r:    wsutil.NewReader(src, state),
		w:    wsutil.NewWriter(conn, state, ws.OpBinary),
	}
}

// Read reads message payloads as one continuous stream. Control frames are
// skipped; a close frame ends the stream with io.EOF.
func (s *Stream) Read(p []byte) (int, error) {
	for {
		if !s.inFrame {
			hdr, err := s.r.NextFrame()
			if err != nil {
				return 0, err
			}
			if hdr.OpCode == ws.OpClose {
				return 0, io.EOF
			}
			if hdr.OpCode.IsControl() {
				if err := s.r.Discard(); err != nil {
					return 0, err
				}
				continue
			}
			s.inFrame = true
		}

		n, err := s.r.Read(p)
		if err == io.EOF {
			s.inFrame = false
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

// Write buffers p into the current message.
func (s *Stream) Write(p []byte) (int, error) {
	return s.w.Write(p)
}

// Flush sends the buffered message.
func (s *Stream) Flush() error {
	return s.w.Flush()
}

func (s *Stream) Close() error {
	return s.conn.Close()
}

var _ locows.Upgrader = &Upgrader{}

// Upgrader upgrades an HTTP request to a server-side websocket stream.
type Upgrader struct {
	Upgrader ws.HTTPUpgrader
}

func (u *Upgrader) Upgrade(r *http.Request, w http.ResponseWriter) (locows.Stream, error) {
	conn, _, _, err := u.Upgrader.Upgrade(r, w)
	if err != nil {
		return nil, err
	}
	return ServerStream(conn), nil
}
