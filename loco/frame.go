package loco

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"math"
)

const (
	// HeaderLen is the fixed size of a frame header.
	HeaderLen = 22
	// MethodLen is the size of the method field.
	MethodLen = 11

	// DataTypeBSON marks a BSON body.
	DataTypeBSON int8 = 0
)

var (
	// ErrMethodTooLong is returned when encoding a method that does not fit
	// the header.
	ErrMethodTooLong = errors.New("loco: method longer than 11 bytes")
	// ErrBodyTooLarge is the cause of a FrameError for a body over
	// Limits.MaxBodyBytes, and is returned when writing a body whose size
	// does not fit the header.
	ErrBodyTooLarge = errors.New("loco: body too large")
	// ErrDataType is the cause of a FrameError for a body that is not BSON.
	ErrDataType = errors.New("loco: unsupported data type")
)

// Header is the fixed part of a frame.
type Header struct {
	ID       uint32
	Status   int16
	Method   string
	DataType int8
	DataSize uint32
}

// Limits constrains decoder memory use.
type Limits struct {
	MaxBodyBytes uint32
}

// DefaultLimits allows bodies of up to 16 MiB.
func DefaultLimits() Limits {
	return Limits{
		MaxBodyBytes: 16 * 1024 * 1024,
	}
}

// FrameError reports a frame that was read off the wire but rejected. The
// stream is still positioned at the next frame.
type FrameError struct {
	Header Header
	Cause  error
}

func (err FrameError) Error() string {
	return fmt.Sprintf("loco: frame %d %s rejected: %s", err.Header.ID, err.Header.Method, err.Cause)
}

func (err FrameError) Unwrap() error {
	return err.Cause
}

// EncodeHeader writes h into b, which must be HeaderLen bytes long.
func EncodeHeader(b []byte, h Header) error {
	if len(b) != HeaderLen {
		return fmt.Errorf("loco: invalid header buffer length: %d", len(b))
	}
	if len(h.Method) > MethodLen {
		return ErrMethodTooLong
	}
	binary.LittleEndian.PutUint32(b[0:4], h.ID)
	binary.LittleEndian.PutUint16(b[4:6], uint16(h.Status))
	method := b[6:17]
	for i := range method {
		method[i] = 0
	}
	copy(method, h.Method)
	b[17] = byte(h.DataType)
	binary.LittleEndian.PutUint32(b[18:22], h.DataSize)
	return nil
}

// DecodeHeader parses a HeaderLen byte header.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) != HeaderLen {
		return Header{}, fmt.Errorf("loco: invalid header length: %d", len(b))
	}
	method := b[6:17]
	n := 0
	for n < len(method) && method[n] != 0 {
		n++
	}
	return Header{
		ID:       binary.LittleEndian.Uint32(b[0:4]),
		Status:   int16(binary.LittleEndian.Uint16(b[4:6])),
		Method:   string(method[:n]),
		DataType: int8(b[17]),
		DataSize: binary.LittleEndian.Uint32(b[18:22]),
	}, nil
}

// ReadFrame reads one frame from r. A body over the limit is skipped, and a
// body with a data type other than DataTypeBSON is dropped; both are reported
// as a FrameError, leaving r at the start of the next frame.
func ReadFrame(r io.Reader, limits Limits) (Header, []byte, error) {
	var hb [HeaderLen]byte
	if _, err := io.ReadFull(r, hb[:]); err != nil {
		return Header{}, nil, err
	}
	h, err := DecodeHeader(hb[:])
	if err != nil {
		return Header{}, nil, err
	}

	if limits.MaxBodyBytes > 0 && h.DataSize > limits.MaxBodyBytes {
		if _, err := io.CopyN(ioutil.Discard, r, int64(h.DataSize)); err != nil {
			return Header{}, nil, unexpectedEOF(err)
		}
		return h, nil, FrameError{Header: h, Cause: ErrBodyTooLarge}
	}

	body := make([]byte, h.DataSize)
	if _, err := io.ReadFull(r, body); err != nil {
		return Header{}, nil, unexpectedEOF(err)
	}
	if h.DataType != DataTypeBSON {
		return h, nil, FrameError{Header: h, Cause: ErrDataType}
	}
	return h, body, nil
}

// WriteFrame writes h and body to w. h.DataSize is set from body.
func WriteFrame(w io.Writer, h Header, body []byte) error {
	if uint64(len(body)) > math.MaxUint32 {
		return ErrBodyTooLarge
	}
	h.DataSize = uint32(len(body))
	var hb [HeaderLen]byte
	if err := EncodeHeader(hb[:], h); err != nil {
		return err
	}
	if _, err := w.Write(hb[:]); err != nil {
		return err
	}
	if len(body) > 0 {
		if _, err := w.Write(body); err != nil {
			return err
		}
	}
	return nil
}

// unexpectedEOF turns an EOF inside a frame into io.ErrUnexpectedEOF; only a
// clean EOF between frames is reported as io.EOF.
func unexpectedEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
