package main

import (
	"context"
	"fmt"
	"io"

	"github.com/vipnode/locomux/internal/pretty"
	"github.com/vipnode/locomux/journal"
	"github.com/vipnode/locomux/loco"
	"github.com/vipnode/locomux/session"
)

type listenOptions struct {
	// Hello is sent once the session is open, if set.
	Hello string
	// Journal is a directory to persist frames in. "-" uses the data dir.
	Journal string
}

// runListen prints unsolicited frames to out until ctx ends or the
// connection does.
func runListen(ctx context.Context, cfg Config, metrics *session.Metrics, opts listenOptions, out io.Writer) error {
	var rec *journal.Recorder
	if opts.Journal != "" {
		dir := opts.Journal
		if dir == "-" {
			dir = cfg.JournalDir
		}
		dir, err := findDataDir(dir)
		if err != nil {
			return err
		}
		j, err := journal.OpenDir(dir)
		if err != nil {
			return ErrExplain{err, fmt.Sprintf("Failed to open the journal in %q.", dir)}
		}
		defer j.Close()
		rec = journal.NewRecorder(j, 0)
		defer func() {
			rec.Close()
			if n := rec.Dropped(); n > 0 {
				logger.Warningf("Journal fell behind, dropped %d entries.", n)
			}
		}()
		logger.Infof("Journaling frames to: %s", dir)
	}

	handler := func(frame session.Frame, err error) {
		if rec != nil {
			rec.Handle(frame, err)
		}
		if err != nil {
			logger.Warningf("Read error: %s", err)
			return
		}
		fmt.Fprintf(out, "%s %s\n", frame, pretty.Payload{Body: frame.Payload})
	}
	s, err := openSession(ctx, cfg, metrics, handler)
	if err != nil {
		return err
	}
	defer s.Close()

	if opts.Hello != "" {
		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if cfg.Timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		}
		client := loco.Client{Sender: s}
		err := client.Call(callCtx, nil, opts.Hello, nil)
		cancel()
		if err != nil {
			return err
		}
	}

	select {
	case <-ctx.Done():
		logger.Info("Shutting down...")
		return s.Close()
	case <-s.Done():
		return s.Wait()
	}
}
