package journal

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"

	"github.com/dgraph-io/badger/v2"
)

var (
	versionKey  = []byte("loco:version")
	sequenceKey = []byte("loco:seq")
	entryPrefix = []byte("loco:entry:")
)

// entryKey sorts in sequence order.
func entryKey(seq uint64) []byte {
	key := make([]byte, len(entryPrefix)+8)
	copy(key, entryPrefix)
	binary.BigEndian.PutUint64(key[len(entryPrefix):], seq)
	return key
}

func getItem(txn *badger.Txn, key []byte, into interface{}) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return gob.NewDecoder(bytes.NewReader(val)).Decode(into)
	})
}

func decodeItem(item *badger.Item, into interface{}) error {
	return item.Value(func(val []byte) error {
		return gob.NewDecoder(bytes.NewReader(val)).Decode(into)
	})
}

func setItem(txn *badger.Txn, key []byte, val interface{}) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(val); err != nil {
		return err
	}
	return txn.Set(key, buf.Bytes())
}
