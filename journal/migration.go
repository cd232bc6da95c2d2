package journal

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"
)

const dbVersion = 1

var migrations = [dbVersion]migrationStep{
	// Version 0 -> 1
	func(txn *badger.Txn) error {
		if err := checkVersion(txn, 0); err != nil {
			return err
		}
		return setVersion(txn, 1)
	},
}

// migrationStep runs inside an update transaction and must leave the
// database at the next version.
type migrationStep func(txn *badger.Txn) error

// migrateLatest brings the journal at path up to dbVersion.
func migrateLatest(db *badger.DB, path string) error {
	return db.Update(func(txn *badger.Txn) error {
		oldVersion, err := getVersion(txn)
		if err != nil {
			return versionError(err, oldVersion, path)
		}
		if oldVersion > dbVersion {
			return versionError(errors.New("journal is newer than the supported version"), oldVersion, path)
		}

		for v := oldVersion; v < dbVersion; {
			if err := migrations[v](txn); err != nil {
				return versionError(err, v, path)
			}
			next, err := getVersion(txn)
			if err != nil {
				return versionError(err, v, path)
			}
			if next <= v {
				return versionError(errors.New("migration failed to increment version"), v, path)
			}
			v = next
		}
		return nil
	})
}

func checkVersion(txn *badger.Txn, assertVersion int) error {
	version, err := getVersion(txn)
	if err != nil {
		return err
	}
	if version != assertVersion {
		return errors.New("wrong version for migration")
	}
	return nil
}

func getVersion(txn *badger.Txn) (int, error) {
	var version int
	if err := getItem(txn, versionKey, &version); err != nil && err != badger.ErrKeyNotFound {
		return version, err
	}
	return version, nil
}

func setVersion(txn *badger.Txn, version int) error {
	return setItem(txn, versionKey, &version)
}

func versionError(cause error, version int, path string) VersionError {
	return VersionError{
		OldVersion: version,
		NewVersion: dbVersion,
		Path:       path,
		Cause:      cause,
	}
}

// VersionError is returned by Open when the journal on disk cannot be
// brought to the current version.
type VersionError struct {
	OldVersion int
	NewVersion int
	Path       string
	Cause      error
}

func (err VersionError) Error() string {
	return fmt.Sprintf("journal migration error: failed to migrate from version %d to %d at path %q: %s", err.OldVersion, err.NewVersion, err.Path, err.Cause)
}

func (err VersionError) Unwrap() error {
	return err.Cause
}
