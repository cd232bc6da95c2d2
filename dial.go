package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/vipnode/locomux/session"
	"github.com/vipnode/locomux/ws/gobwas"
	"github.com/vipnode/locomux/ws/gorilla"
)

// dial connects to addr with the named transport. The websocket transports
// accept a bare host:port and default to ws://.
func dial(ctx context.Context, transport string, addr string) (io.ReadWriteCloser, error) {
	if addr == "" {
		return nil, ErrExplain{fmt.Errorf("no address"), "Set --addr, or addr in the config file."}
	}
	switch transport {
	case "", "tcp":
		var d net.Dialer
		return d.DialContext(ctx, "tcp", addr)
	case "gobwas":
		return gobwas.Dial(ctx, wsURL(addr))
	case "gorilla":
		return gorilla.Dial(ctx, wsURL(addr))
	}
	return nil, ErrExplain{fmt.Errorf("unknown transport: %q", transport), "Supported transports are tcp, gobwas and gorilla."}
}

func wsURL(addr string) string {
	if strings.Contains(addr, "://") {
		return addr
	}
	return "ws://" + addr + "/"
}

// openSession dials and starts a LOCO session with the configured settings.
func openSession(ctx context.Context, cfg Config, metrics *session.Metrics, handler session.Handler) (*session.Session, error) {
	logger.Infof("Connecting to %s over %s", cfg.Addr, cfg.Transport)
	stream, err := dial(ctx, cfg.Transport, cfg.Addr)
	if err != nil {
		return nil, err
	}
	return cfg.sessionConfig(metrics).Open(stream, cfg.codec(), handler), nil
}
