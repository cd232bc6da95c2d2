package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/vipnode/locomux/internal/pretty"
	"github.com/vipnode/locomux/loco"
	"github.com/vipnode/locomux/session"
	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/sync/errgroup"
)

type sendOptions struct {
	Method string
	Params string
	Repeat int
}

// runSend issues the command Repeat times concurrently over one session and
// prints each reply body to out as extended JSON.
func runSend(ctx context.Context, cfg Config, metrics *session.Metrics, opts sendOptions, out io.Writer) error {
	params, err := loco.ParseDocument(opts.Params)
	if err != nil {
		return ErrExplain{err, "The command body must be a JSON object."}
	}

	handler := func(frame session.Frame, err error) {
		if err != nil {
			logger.Debugf("Read error: %s", err)
			return
		}
		logger.Infof("Unsolicited frame: %s %s", frame, pretty.Payload{Body: frame.Payload})
	}
	s, err := openSession(ctx, cfg, metrics, handler)
	if err != nil {
		return err
	}
	defer s.Close()

	client := loco.Client{Sender: s}
	repeat := opts.Repeat
	if repeat < 1 {
		repeat = 1
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < repeat; i++ {
		g.Go(func() error {
			callCtx := ctx
			if cfg.Timeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
				defer cancel()
			}
			var result bson.Raw
			if err := client.Call(callCtx, &result, opts.Method, params); err != nil {
				return err
			}
			doc, err := loco.Document(result)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			_, err = fmt.Fprintln(out, doc)
			return err
		})
	}
	return g.Wait()
}
