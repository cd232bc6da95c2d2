package loco

import (
	"bytes"
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/vipnode/locomux/session"
)

func TestHeaderRoundTrip(t *testing.T) {
	want := Header{
		ID:       0xdeadbeef,
		Status:   -300,
		Method:   "LOGINLIST",
		DataType: DataTypeBSON,
		DataSize: 1234,
	}
	b := make([]byte, HeaderLen)
	if err := EncodeHeader(b, want); err != nil {
		t.Fatal(err)
	}
	// id is little endian
	if b[0] != 0xef || b[3] != 0xde {
		t.Errorf("unexpected id bytes: % x", b[0:4])
	}
	got, err := DecodeHeader(b)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got: %+v; want %+v", got, want)
	}
}

func TestHeaderMethodLength(t *testing.T) {
	b := make([]byte, HeaderLen)
	if err := EncodeHeader(b, Header{Method: "ELEVENCHARS"}); err != nil {
		t.Errorf("11 byte method rejected: %s", err)
	}
	if err := EncodeHeader(b, Header{Method: "TWELVECHARSX"}); err != ErrMethodTooLong {
		t.Errorf("got: %v; want ErrMethodTooLong", err)
	}
	if _, err := DecodeHeader(b[:10]); err == nil {
		t.Error("short header accepted")
	}
}

func TestCodecRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	codec := Codec{}
	enc := codec.NewEncoder(&buf)
	if err := enc.Encode(5, session.Command{Method: "GETCONF", Payload: []byte("body")}); err != nil {
		t.Fatal(err)
	}
	if err := enc.Flush(); err != nil {
		t.Fatal(err)
	}
	if got, want := buf.Len(), HeaderLen+4; got != want {
		t.Errorf("frame length: got %d; want %d", got, want)
	}

	dec := codec.NewDecoder(&buf)
	f, err := dec.Decode()
	if err != nil {
		t.Fatal(err)
	}
	if f.ID != 5 || f.Method != "GETCONF" || string(f.Payload) != "body" {
		t.Errorf("unexpected frame: %s", f)
	}
	if _, err := dec.Decode(); err != io.EOF {
		t.Errorf("got: %v; want io.EOF", err)
	}
}

func TestCodecMethodTooLong(t *testing.T) {
	var buf bytes.Buffer
	enc := Codec{}.NewEncoder(&buf)
	err := enc.Encode(0, session.Command{Method: strings.Repeat("M", MethodLen+1)})
	if err != ErrMethodTooLong {
		t.Errorf("got: %v; want ErrMethodTooLong", err)
	}
	if err := enc.Flush(); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Errorf("rejected command left %d bytes behind", buf.Len())
	}
}

func TestDecodeBodyLimit(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, Header{ID: 1, Method: "BIG"}, make([]byte, 64)); err != nil {
		t.Fatal(err)
	}
	if err := WriteFrame(&buf, Header{ID: 2, Method: "SMALL"}, []byte("ok")); err != nil {
		t.Fatal(err)
	}

	dec := Codec{Limits: Limits{MaxBodyBytes: 16}}.NewDecoder(&buf)
	_, err := dec.Decode()
	frameErr, ok := err.(FrameError)
	if !ok {
		t.Fatalf("got: %v; want FrameError", err)
	}
	if frameErr.Header.ID != 1 || frameErr.Cause != ErrBodyTooLarge {
		t.Errorf("unexpected error: %s", frameErr)
	}
	if session.IsTerminal(err) {
		t.Error("oversized body should not end the stream")
	}

	f, err := dec.Decode()
	if err != nil {
		t.Fatal(err)
	}
	if f.ID != 2 || string(f.Payload) != "ok" {
		t.Errorf("decoder lost sync: %s", f)
	}
}

func TestDecodeTruncated(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, Header{ID: 1, Method: "CUT"}, []byte("0123456789")); err != nil {
		t.Fatal(err)
	}
	truncated := buf.Bytes()[:HeaderLen+3]

	_, err := Codec{}.NewDecoder(bytes.NewReader(truncated)).Decode()
	if err != io.ErrUnexpectedEOF {
		t.Errorf("got: %v; want io.ErrUnexpectedEOF", err)
	}
	_, err = Codec{}.NewDecoder(bytes.NewReader(truncated[:5])).Decode()
	if err != io.ErrUnexpectedEOF {
		t.Errorf("partial header: got %v; want io.ErrUnexpectedEOF", err)
	}
}

func TestDecodeDataType(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, Header{ID: 1, Method: "RAW", DataType: 2}, []byte{0, 0, 0, 0, 0}); err != nil {
		t.Fatal(err)
	}
	if err := WriteFrame(&buf, Header{ID: 2, Method: "MSG"}, []byte("ok")); err != nil {
		t.Fatal(err)
	}

	dec := Codec{}.NewDecoder(&buf)
	_, err := dec.Decode()
	frameErr, ok := err.(FrameError)
	if !ok {
		t.Fatalf("got: %v; want FrameError", err)
	}
	if frameErr.Header.DataType != 2 || frameErr.Cause != ErrDataType {
		t.Errorf("unexpected error: %s", frameErr)
	}
	if session.IsTerminal(err) {
		t.Error("unsupported data type should not end the stream")
	}

	f, err := dec.Decode()
	if err != nil {
		t.Fatal(err)
	}
	if f.ID != 2 {
		t.Errorf("decoder lost sync: %s", f)
	}
}
