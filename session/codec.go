package session

import (
	"bufio"
	"encoding/json"
	"io"
)

// Codec builds the frame encoder for the write half of a stream and the
// frame decoder for its read half. The two are used from different
// goroutines and must not share state.
type Codec interface {
	NewEncoder(w io.Writer) Encoder
	NewDecoder(r io.Reader) Decoder
}

// Encoder writes one frame per Encode call. Flush pushes everything written
// so far onto the stream.
type Encoder interface {
	Encode(id int32, cmd Command) error
	Flush() error
}

// Decoder reads one frame per Decode call.
type Decoder interface {
	Decode() (Frame, error)
}

type flusher interface {
	Flush() error
}

// FlushWriter flushes w if it buffers writes (as message-oriented streams
// such as websockets do). Codecs call it after flushing their own buffers.
func FlushWriter(w io.Writer) error {
	if f, ok := w.(flusher); ok {
		return f.Flush()
	}
	return nil
}

var _ Codec = JSONCodec{}

// JSONCodec encodes frames as newline-delimited JSON objects:
//
//	{"id":0,"method":"PING","payload":"..."}
//
// Payloads are base64 encoded by encoding/json.
type JSONCodec struct{}

type jsonFrame struct {
	ID      int32  `json:"id"`
	Method  string `json:"method"`
	Status  int16  `json:"status,omitempty"`
	Payload []byte `json:"payload,omitempty"`
}

func (JSONCodec) NewEncoder(w io.Writer) Encoder {
	buf := bufio.NewWriter(w)
	return &jsonEncoder{
		w:   w,
		buf: buf,
		enc: json.NewEncoder(buf),
	}
}

func (JSONCodec) NewDecoder(r io.Reader) Decoder {
	return &jsonDecoder{dec: json.NewDecoder(r)}
}

type jsonEncoder struct {
	w   io.Writer
	buf *bufio.Writer
	enc *json.Encoder
}

func (e *jsonEncoder) Encode(id int32, cmd Command) error {
	return e.enc.Encode(jsonFrame{
		ID:      id,
		Method:  cmd.Method,
		Payload: cmd.Payload,
	})
}

func (e *jsonEncoder) Flush() error {
	if err := e.buf.Flush(); err != nil {
		return err
	}
	return FlushWriter(e.w)
}

type jsonDecoder struct {
	dec *json.Decoder
}

func (d *jsonDecoder) Decode() (Frame, error) {
	var f jsonFrame
	if err := d.dec.Decode(&f); err != nil {
		if _, ok := err.(*json.SyntaxError); ok {
			// json.Decoder cannot resync after a syntax error.
			return Frame{}, Terminal(err)
		}
		return Frame{}, err
	}
	return Frame{
		ID: f.ID,
		Response: Response{
			Method:  f.Method,
			Status:  f.Status,
			Payload: f.Payload,
		},
	}, nil
}
