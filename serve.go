package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/vipnode/locomux/internal/fakeserver"
	"github.com/vipnode/locomux/ws"
	"github.com/vipnode/locomux/ws/gorilla"
	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/sync/errgroup"
)

type serveOptions struct {
	// WS serves websocket connections over HTTP instead of raw TCP.
	WS bool
	// PushInterval sends a push to every connection this often, if set.
	PushInterval time.Duration
}

// runServe answers LOCO commands on l with a fakeserver until ctx ends.
func runServe(ctx context.Context, l net.Listener, opts serveOptions) error {
	srv := fakeserver.New()
	g, ctx := errgroup.WithContext(ctx)

	if opts.WS {
		httpSrv := &http.Server{
			Handler: gorilla.Handler(&gorilla.Upgrader{}, func(stream ws.Stream) error {
				return srv.ServeConn(stream)
			}),
		}
		logger.Infof("Serving LOCO over websocket: ws://%s/", l.Addr())
		g.Go(func() error {
			if err := httpSrv.Serve(l); err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			return httpSrv.Close()
		})
	} else {
		logger.Infof("Serving LOCO over tcp: %s", l.Addr())
		g.Go(func() error {
			err := srv.Serve(l)
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		})
		g.Go(func() error {
			<-ctx.Done()
			return l.Close()
		})
	}

	if opts.PushInterval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(opts.PushInterval)
			defer ticker.Stop()
			var n int64
			for {
				select {
				case <-ctx.Done():
					return nil
				case t := <-ticker.C:
					n++
					doc := bson.D{{Key: "n", Value: n}, {Key: "time", Value: t.UTC()}}
					if err := srv.Push(fakeserver.MethodPush, doc); err != nil {
						logger.Warningf("Push failed: %s", err)
					}
				}
			}
		})
	}

	return g.Wait()
}
