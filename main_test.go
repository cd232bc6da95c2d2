package main

import (
	"bytes"
	"context"
	"errors"
	"io/ioutil"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vipnode/locomux/internal/fakeserver"
	"github.com/vipnode/locomux/loco"
	"golang.org/x/sync/errgroup"
)

// startServe runs the serve command on a free port until the test ends.
func startServe(t *testing.T, opts serveOptions) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	g := errgroup.Group{}
	g.Go(func() error {
		return runServe(ctx, l, opts)
	})
	t.Cleanup(func() {
		cancel()
		if err := g.Wait(); err != nil {
			t.Errorf("serve failed: %s", err)
		}
	})
	return l.Addr().String()
}

func testConfig(addr string, transport string) Config {
	cfg := DefaultConfig()
	cfg.Addr = addr
	cfg.Transport = transport
	cfg.Timeout = 2 * time.Second
	return cfg
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	err := ioutil.WriteFile(path, []byte(`
addr: 127.0.0.1:5223
transport: gobwas
timeout: 3s
session:
  queue_size: 16
journal_dir: /tmp/journal
`), 0600)
	if err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != "127.0.0.1:5223" || cfg.Transport != "gobwas" || cfg.Timeout != 3*time.Second {
		t.Errorf("got %+v", cfg)
	}
	if got, want := cfg.Session.QueueSize, 16; got != want {
		t.Errorf("got queue size %d; want %d", got, want)
	}
	// Unset fields keep their defaults.
	if got, want := cfg.MaxBodyBytes, loco.DefaultLimits().MaxBodyBytes; got != want {
		t.Errorf("got max body %d; want %d", got, want)
	}
	if got, want := cfg.sessionConfig(nil).ReadErrorBurst, DefaultConfig().Session.ReadErrorBurst; got != want {
		t.Errorf("got burst %d; want %d", got, want)
	}

	cfg.override("", "tcp", 0)
	if cfg.Addr != "127.0.0.1:5223" || cfg.Transport != "tcp" || cfg.Timeout != 3*time.Second {
		t.Errorf("override: got %+v", cfg)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := loadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected an error for a missing explicit config")
	}

	path := filepath.Join(dir, "bad.yaml")
	if err := ioutil.WriteFile(path, []byte("timeout: [1, 2"), 0600); err != nil {
		t.Fatal(err)
	}
	_, err := loadConfig(path)
	if _, ok := err.(ErrExplain); !ok {
		t.Errorf("got %v; want an ErrExplain", err)
	}
}

func TestSend(t *testing.T) {
	tcpAddr := startServe(t, serveOptions{})
	wsAddr := startServe(t, serveOptions{WS: true})

	cases := []struct {
		Transport string
		Addr      string
	}{
		{"tcp", tcpAddr},
		{"gobwas", wsAddr},
		{"gorilla", "ws://" + wsAddr + "/"},
	}
	for _, tc := range cases {
		var out bytes.Buffer
		cfg := testConfig(tc.Addr, tc.Transport)
		err := runSend(context.Background(), cfg, nil, sendOptions{
			Method: "GETCONF",
			Params: `{"v": "1"}`,
			Repeat: 3,
		}, &out)
		if err != nil {
			t.Errorf("%s: %s", tc.Transport, err)
			continue
		}
		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		if len(lines) != 3 {
			t.Errorf("%s: got %d replies; want 3: %q", tc.Transport, len(lines), out.String())
		}
		for _, line := range lines {
			if !strings.Contains(line, `"v":"1"`) {
				t.Errorf("%s: reply does not echo the body: %s", tc.Transport, line)
			}
		}
	}
}

func TestSendErrors(t *testing.T) {
	addr := startServe(t, serveOptions{})

	var out bytes.Buffer
	err := runSend(context.Background(), testConfig(addr, "tcp"), nil, sendOptions{Method: fakeserver.MethodFail}, &out)
	var statusErr loco.StatusError
	if !errors.As(err, &statusErr) || statusErr.Status != fakeserver.StatusFail {
		t.Errorf("got %v; want a StatusError with %d", err, fakeserver.StatusFail)
	}

	cfg := testConfig(addr, "tcp")
	cfg.Timeout = 50 * time.Millisecond
	err = runSend(context.Background(), cfg, nil, sendOptions{Method: fakeserver.MethodDrop}, &out)
	if !errors.Is(err, loco.ErrNoResponse) {
		t.Errorf("got %v; want ErrNoResponse", err)
	}

	err = runSend(context.Background(), testConfig(addr, "carrier-pigeon"), nil, sendOptions{Method: "PING"}, &out)
	if _, ok := err.(ErrExplain); !ok {
		t.Errorf("got %v; want an ErrExplain for an unknown transport", err)
	}

	err = runSend(context.Background(), testConfig(addr, "tcp"), nil, sendOptions{Method: "PING", Params: "nope"}, &out)
	if _, ok := err.(ErrExplain); !ok {
		t.Errorf("got %v; want an ErrExplain for a bad body", err)
	}

	if out.Len() != 0 {
		t.Errorf("unexpected output: %q", out.String())
	}
}

// lineWriter collects output lines and signals each one.
type lineWriter struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	lines chan struct{}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	n, err := w.buf.Write(p)
	for i := bytes.Count(p, []byte("\n")); i > 0; i-- {
		select {
		case w.lines <- struct{}{}:
		default:
		}
	}
	return n, err
}

func (w *lineWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func TestListenJournal(t *testing.T) {
	addr := startServe(t, serveOptions{})
	dir := t.TempDir()

	out := &lineWriter{lines: make(chan struct{}, 16)}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g := errgroup.Group{}
	g.Go(func() error {
		return runListen(ctx, testConfig(addr, "tcp"), nil, listenOptions{
			Hello:   fakeserver.MethodPushMe,
			Journal: dir,
		}, out)
	})

	select {
	case <-out.lines:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a push")
	}
	cancel()
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), fakeserver.MethodPush) {
		t.Errorf("got %q; want a %s frame", out.String(), fakeserver.MethodPush)
	}

	var dump bytes.Buffer
	if err := runJournal(dir, 0, &dump); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(dump.String(), "method="+fakeserver.MethodPush) {
		t.Errorf("journal does not have the push: %q", dump.String())
	}
}

func TestServePushInterval(t *testing.T) {
	addr := startServe(t, serveOptions{PushInterval: 10 * time.Millisecond})

	out := &lineWriter{lines: make(chan struct{}, 16)}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g := errgroup.Group{}
	g.Go(func() error {
		return runListen(ctx, testConfig(addr, "tcp"), nil, listenOptions{}, out)
	})

	for i := 0; i < 2; i++ {
		select {
		case <-out.lines:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for push #%d", i)
		}
	}
	cancel()
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}
