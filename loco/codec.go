package loco

import (
	"bufio"
	"io"

	"github.com/vipnode/locomux/session"
)

var _ session.Codec = Codec{}

// Codec reads and writes LOCO frames. The zero value uses DefaultLimits.
type Codec struct {
	Limits Limits
}

func (c Codec) limits() Limits {
	if c.Limits == (Limits{}) {
		return DefaultLimits()
	}
	return c.Limits
}

func (c Codec) NewEncoder(w io.Writer) session.Encoder {
	return &encoder{
		w:   w,
		buf: bufio.NewWriter(w),
	}
}

func (c Codec) NewDecoder(r io.Reader) session.Decoder {
	return &decoder{
		r:      bufio.NewReader(r),
		limits: c.limits(),
	}
}

type encoder struct {
	w   io.Writer
	buf *bufio.Writer
}

func (e *encoder) Encode(id int32, cmd session.Command) error {
	return WriteFrame(e.buf, Header{
		ID:       uint32(id),
		Method:   cmd.Method,
		DataType: DataTypeBSON,
	}, cmd.Payload)
}

func (e *encoder) Flush() error {
	if err := e.buf.Flush(); err != nil {
		return err
	}
	return session.FlushWriter(e.w)
}

type decoder struct {
	r      *bufio.Reader
	limits Limits
}

func (d *decoder) Decode() (session.Frame, error) {
	h, body, err := ReadFrame(d.r, d.limits)
	if err != nil {
		return session.Frame{}, err
	}
	return session.Frame{
		ID: int32(h.ID),
		Response: session.Response{
			Method:  h.Method,
			Status:  h.Status,
			Payload: body,
		},
	}, nil
}
