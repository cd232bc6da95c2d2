// Package gorilla implements websocket streams with github.com/gorilla/websocket.
package gorilla

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/vipnode/locomux/session"
	locows "github.com/vipnode/locomux/ws"
)

var _ locows.Stream = &Stream{}

// Stream reads and writes binary websocket messages over conn.
type Stream struct {
	conn *websocket.Conn
	r    io.Reader
	buf  bytes.Buffer
}

// Dial opens a client-side stream to url.
func Dial(ctx context.Context, url string) (*Stream, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return NewStream(conn), nil
}

func NewStream(conn *websocket.Conn) *Stream {
	return &Stream{conn: conn}
}

// Read reads message payloads as one continuous stream. A normal close ends
// the stream with io.EOF; any other read failure is terminal, since the
// connection cannot be read again.
func (s *Stream) Read(p []byte) (int, error) {
	for {
		if s.r == nil {
			_, r, err := s.conn.NextReader()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return 0, io.EOF
				}
				return 0, session.Terminal(err)
			}
			s.r = r
		}

		n, err := s.r.Read(p)
		if err == io.EOF {
			s.r = nil
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
	return s.buf.Write(p)
}

// Flush sends the buffered bytes as one binary message.
func (s *Stream) Flush() error {
	if s.buf.Len() == 0 {
		return nil
	}
	err := s.conn.WriteMessage(websocket.BinaryMessage, s.buf.Bytes())
	s.buf.Reset()
	return err
}

func (s *Stream) Close() error {
	return s.conn.Close()
}

var _ locows.Upgrader = &Upgrader{}

// Upgrader upgrades an HTTP request to a server-side websocket stream.
type Upgrader struct {
	Upgrader websocket.Upgrader
}

func (u *Upgrader) Upgrade(r *http.Request, w http.ResponseWriter) (locows.Stream, error) {
	conn, err := u.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return NewStream(conn), nil
}

// Handler upgrades every request and hands the stream to serve. The stream
// is closed when serve returns.
func Handler(upgrader locows.Upgrader, serve func(locows.Stream) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stream, err := upgrader.Upgrade(r, w)
		if err != nil {
			logger.Printf("websocket upgrade error from %s: %s", r.RemoteAddr, err)
			return
		}
		defer stream.Close()
		if err := serve(stream); err != nil && !session.IsTerminal(err) {
			logger.Printf("stream from %s ended: %s", r.RemoteAddr, err)
		}
	}
}
