package main

import (
	"fmt"
	"io"

	"github.com/vipnode/locomux/internal/pretty"
	"github.com/vipnode/locomux/journal"
)

// runJournal prints the last limit entries of the journal in dir.
func runJournal(dir string, limit int, out io.Writer) error {
	dir, err := findDataDir(dir)
	if err != nil {
		return err
	}
	j, err := journal.OpenDir(dir)
	if err != nil {
		return ErrExplain{err, fmt.Sprintf("Failed to open the journal in %q. Is a listener still running with it?", dir)}
	}
	defer j.Close()

	entries, err := j.List(limit)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Err != "" {
			fmt.Fprintln(out, e)
			continue
		}
		fmt.Fprintf(out, "%s %s\n", e, pretty.Payload{Body: e.Payload})
	}
	return nil
}
