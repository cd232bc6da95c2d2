package loco

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/vipnode/locomux/session"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// NewCommand builds a command with doc marshalled as its BSON body. A nil doc
// produces an empty document.
func NewCommand(method string, doc interface{}) (session.Command, error) {
	if len(method) > MethodLen {
		return session.Command{}, ErrMethodTooLong
	}
	if doc == nil {
		doc = bson.D{}
	}
	body, err := bson.Marshal(doc)
	if err != nil {
		return session.Command{}, fmt.Errorf("loco: failed to encode %s body: %w", method, err)
	}
	return session.Command{Method: method, Payload: body}, nil
}

// Unmarshal decodes the BSON body of resp into out.
func Unmarshal(resp *session.Response, out interface{}) error {
	if err := checkLength(resp.Payload); err != nil {
		return fmt.Errorf("loco: failed to decode %s body: %w", resp.Method, err)
	}
	if err := bson.Unmarshal(resp.Payload, out); err != nil {
		return fmt.Errorf("loco: failed to decode %s body: %w", resp.Method, err)
	}
	return nil
}

// Status returns the "status" field of a response body. Servers report
// success as 0.
func Status(resp *session.Response) (int32, error) {
	if err := checkLength(resp.Payload); err != nil {
		return 0, fmt.Errorf("loco: %s body has no status: %w", resp.Method, err)
	}
	val, err := bson.Raw(resp.Payload).LookupErr("status")
	if err != nil {
		return 0, fmt.Errorf("loco: %s body has no status: %w", resp.Method, err)
	}
	switch val.Type {
	case bsontype.Int32:
		return val.Int32(), nil
	case bsontype.Int64:
		return int32(val.Int64()), nil
	case bsontype.Double:
		return int32(val.Double()), nil
	}
	return 0, fmt.Errorf("loco: %s status has type %s", resp.Method, val.Type)
}

// Document renders a BSON body as relaxed extended JSON, for display.
func Document(payload []byte) (string, error) {
	if len(payload) == 0 {
		return "{}", nil
	}
	if err := checkLength(payload); err != nil {
		return "", err
	}
	if err := bson.Raw(payload).Validate(); err != nil {
		return "", err
	}
	out, err := bson.MarshalExtJSON(bson.Raw(payload), false, false)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// ParseDocument turns extended JSON into a BSON document, for building
// commands from user input.
func ParseDocument(extJSON string) (bson.D, error) {
	var doc bson.D
	if extJSON == "" {
		return bson.D{}, nil
	}
	if err := bson.UnmarshalExtJSON([]byte(extJSON), false, &doc); err != nil {
		return nil, fmt.Errorf("loco: invalid document: %w", err)
	}
	return doc, nil
}

// checkLength rejects bodies whose length prefix cannot describe a BSON
// document of exactly this size.
func checkLength(payload []byte) error {
	if len(payload) < 5 {
		return fmt.Errorf("loco: body of %d bytes is too short for a document", len(payload))
	}
	declared := int32(binary.LittleEndian.Uint32(payload[:4]))
	if int(declared) != len(payload) {
		return fmt.Errorf("loco: document declares %d bytes but body has %d", declared, len(payload))
	}
	if payload[len(payload)-1] != 0 {
		return errors.New("loco: document is not null terminated")
	}
	return nil
}
