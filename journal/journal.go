// Package journal persists the frames a session could not match to a call,
// and the read errors it saw, in a badger database.
package journal

import (
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/vipnode/locomux/session"
)

// Entry is one journaled frame or read error.
type Entry struct {
	Seq     uint64
	Time    time.Time
	ID      int32
	Method  string
	Status  int16
	Payload []byte
	// Err is set for read errors, in which case the frame fields are empty.
	Err string
}

// NewEntry converts a handler invocation into an entry.
func NewEntry(frame session.Frame, err error) Entry {
	e := Entry{Time: time.Now()}
	if err != nil {
		e.Err = err.Error()
		return e
	}
	e.ID = frame.ID
	e.Method = frame.Method
	e.Status = frame.Status
	e.Payload = frame.Payload
	return e
}

func (e Entry) String() string {
	ts := e.Time.Format(time.RFC3339)
	if e.Err != "" {
		return fmt.Sprintf("#%d %s error: %s", e.Seq, ts, e.Err)
	}
	return fmt.Sprintf("#%d %s id=%d method=%s status=%d payload=%dB", e.Seq, ts, e.ID, e.Method, e.Status, len(e.Payload))
}

// Open returns a journal stored with the given badger options, migrating it
// to the current version first. The journal should be closed after use.
func Open(opts badger.Options) (*Journal, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	if err := migrateLatest(db, opts.Dir); err != nil {
		db.Close()
		return nil, err
	}
	seq, err := db.GetSequence(sequenceKey, 100)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Journal{db: db, seq: seq}, nil
}

// OpenDir opens the journal stored in dir.
func OpenDir(dir string) (*Journal, error) {
	return Open(badger.DefaultOptions(dir).WithLogger(nil))
}

// Journal is an append-only log of entries. It is safe for concurrent use.
type Journal struct {
	db  *badger.DB
	seq *badger.Sequence
}

// Append stores e under the next sequence number and returns it with Seq set.
func (j *Journal) Append(e Entry) (Entry, error) {
	n, err := j.seq.Next()
	if err != nil {
		return e, err
	}
	e.Seq = n
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	err = j.db.Update(func(txn *badger.Txn) error {
		return setItem(txn, entryKey(n), &e)
	})
	return e, err
}

// List returns the most recent limit entries, oldest first. A limit of zero
// or less returns everything.
func (j *Journal) List(limit int) ([]Entry, error) {
	var entries []Entry
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append(append([]byte{}, entryPrefix...), 0xff)
		for it.Seek(seek); it.ValidForPrefix(entryPrefix); it.Next() {
			if limit > 0 && len(entries) >= limit {
				break
			}
			var e Entry
			if err := decodeItem(it.Item(), &e); err != nil {
				return err
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for i, k := 0, len(entries)-1; i < k; i, k = i+1, k-1 {
		entries[i], entries[k] = entries[k], entries[i]
	}
	return entries, nil
}

// Close releases the unused sequence range and closes the database.
func (j *Journal) Close() error {
	if err := j.seq.Release(); err != nil {
		j.db.Close()
		return err
	}
	return j.db.Close()
}
