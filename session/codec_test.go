package session

import (
	"bytes"
	"io"
	"reflect"
	"strings"
	"testing"
)

func TestJSONCodec(t *testing.T) {
	var buf bytes.Buffer
	codec := JSONCodec{}

	enc := codec.NewEncoder(&buf)
	if err := enc.Encode(42, Command{Method: "LOGINLIST", Payload: []byte{0, 1, 2}}); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Error("encoder wrote before Flush")
	}
	if err := enc.Flush(); err != nil {
		t.Fatal(err)
	}

	got, err := codec.NewDecoder(&buf).Decode()
	if err != nil {
		t.Fatal(err)
	}
	want := Frame{ID: 42, Response: Response{Method: "LOGINLIST", Payload: []byte{0, 1, 2}}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got: %v; want %v", got, want)
	}
}

func TestJSONCodecErrors(t *testing.T) {
	dec := JSONCodec{}.NewDecoder(strings.NewReader(`{"id":"nope"}` + "\n" + `{"id":3}` + "\n" + `{oops`))

	_, err := dec.Decode()
	if err == nil || IsTerminal(err) {
		t.Errorf("type error should not be terminal: %v", err)
	}
	if f, err := dec.Decode(); err != nil || f.ID != 3 {
		t.Errorf("decoder did not recover: %v, %v", f, err)
	}
	if _, err := dec.Decode(); !IsTerminal(err) {
		t.Errorf("syntax error should be terminal: %v", err)
	}
}

type flushRecorder struct {
	bytes.Buffer
	flushes int
}

func (f *flushRecorder) Flush() error {
	f.flushes++
	return nil
}

func TestJSONCodecFlushesStream(t *testing.T) {
	w := &flushRecorder{}
	enc := JSONCodec{}.NewEncoder(w)
	if err := enc.Encode(1, Command{Method: "PING"}); err != nil {
		t.Fatal(err)
	}
	if err := enc.Flush(); err != nil {
		t.Fatal(err)
	}
	if w.flushes != 1 {
		t.Errorf("got %d stream flushes; want 1", w.flushes)
	}
	if err := FlushWriter(io.Discard); err != nil {
		t.Error(err)
	}
}

func TestIsTerminal(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{io.EOF, true},
		{io.ErrUnexpectedEOF, true},
		{io.ErrClosedPipe, true},
		{Terminal(io.ErrShortBuffer), true},
		{io.ErrShortBuffer, false},
		{errForced, false},
	}
	for _, test := range tests {
		if got := IsTerminal(test.err); got != test.want {
			t.Errorf("IsTerminal(%v): got %t; want %t", test.err, got, test.want)
		}
	}
	if Terminal(nil) != nil {
		t.Error("Terminal(nil) should be nil")
	}
}
