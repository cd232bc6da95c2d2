package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"time"

	"github.com/alexcesaro/log"
	"github.com/alexcesaro/log/golog"
	flags "github.com/jessevdk/go-flags"
	"github.com/vipnode/locomux/internal/fakeserver"
	"github.com/vipnode/locomux/journal"
	"github.com/vipnode/locomux/loco"
	"github.com/vipnode/locomux/session"
	"github.com/vipnode/locomux/ws/gorilla"
)

// Version of the binary, assigned during build.
var Version string = "dev"

// Options contains the flag options
type Options struct {
	Verbose []bool `short:"v" long:"verbose" description:"Show verbose logging."`
	Version bool   `long:"version" description:"Print version and exit."`
	Config  string `long:"config" description:"Path to a YAML config file. (default: $XDG_CONFIG_HOME/locomux/config.yaml)"`
	Metrics string `long:"metrics" description:"Address to serve Prometheus metrics on, such as 127.0.0.1:9100."`

	Send struct {
		Addr      string        `long:"addr" description:"Server address, host:port or ws:// URL."`
		Transport string        `long:"transport" description:"Transport to dial with. (tcp|gobwas|gorilla)"`
		Timeout   time.Duration `long:"timeout" description:"How long to wait for each reply."`
		Repeat    int           `long:"repeat" description:"Number of concurrent copies of the command to send." default:"1"`
		Args      struct {
			Method string `positional-arg-name:"method" description:"LOCO method name, at most 11 characters." required:"yes"`
			Params string `positional-arg-name:"params" description:"Command body as a JSON object."`
		} `positional-args:"yes"`
	} `command:"send" description:"Send a command and print the reply."`

	Listen struct {
		Addr      string `long:"addr" description:"Server address, host:port or ws:// URL."`
		Transport string `long:"transport" description:"Transport to dial with. (tcp|gobwas|gorilla)"`
		Hello     string `long:"hello" description:"Command to send after connecting, such as a check-in."`
		Journal   string `long:"journal" description:"Directory to persist frames in. Use - for the default data dir."`
	} `command:"listen" description:"Print frames the server pushes."`

	Serve struct {
		Bind         string        `long:"bind" description:"Address and port to listen on." default:"127.0.0.1:5223"`
		WS           bool          `long:"ws" description:"Serve over websocket instead of raw TCP."`
		PushInterval time.Duration `long:"push-interval" description:"Push a frame to every connection at this interval."`
	} `command:"serve" description:"Run a fake LOCO server that echoes commands."`

	Journal struct {
		Dir   string `long:"dir" description:"Journal directory. (default: $XDG_DATA_HOME/locomux)"`
		Limit int    `long:"limit" description:"Number of most recent entries to print, 0 for all." default:"20"`
	} `command:"journal" description:"Print journaled frames and read errors."`
}

const sendUsage = `Examples:
* Start a local server and send a command to it:
  $ locomux serve &
  $ locomux send --addr 127.0.0.1:5223 GETCONF '{"os": "linux"}'

* Send over websocket:
  $ locomux serve --ws --bind 127.0.0.1:8080 &
  $ locomux send --transport gorilla --addr 127.0.0.1:8080 PING
`

var logLevels = []log.Level{
	log.Warning,
	log.Info,
	log.Debug,
}

func subcommand(ctx context.Context, cmd string, options Options, out io.Writer) error {
	cfg, err := loadConfig(options.Config)
	if err != nil {
		return err
	}

	metricsAddr := options.Metrics
	if metricsAddr == "" {
		metricsAddr = cfg.Metrics
	}
	var metrics *session.Metrics
	if metricsAddr != "" && (cmd == "send" || cmd == "listen") {
		var stop func() error
		metrics, stop, err = serveMetrics(metricsAddr)
		if err != nil {
			return ErrExplain{err, "Failed to serve metrics. Is --metrics already in use?"}
		}
		defer stop()
	}

	switch cmd {
	case "send":
		cfg.override(options.Send.Addr, options.Send.Transport, options.Send.Timeout)
		return runSend(ctx, cfg, metrics, sendOptions{
			Method: options.Send.Args.Method,
			Params: options.Send.Args.Params,
			Repeat: options.Send.Repeat,
		}, out)

	case "listen":
		cfg.override(options.Listen.Addr, options.Listen.Transport, 0)
		return runListen(ctx, cfg, metrics, listenOptions{
			Hello:   options.Listen.Hello,
			Journal: options.Listen.Journal,
		}, out)

	case "serve":
		l, err := net.Listen("tcp", options.Serve.Bind)
		if err != nil {
			return ErrExplain{err, "Failed to listen. Use --bind to pick another address."}
		}
		return runServe(ctx, l, serveOptions{
			WS:           options.Serve.WS,
			PushInterval: options.Serve.PushInterval,
		})

	case "journal":
		dir := options.Journal.Dir
		if dir == "" {
			dir = cfg.JournalDir
		}
		return runJournal(dir, options.Journal.Limit, out)
	}

	return nil
}

func main() {
	options := Options{}
	parser := flags.NewParser(&options, flags.Default)
	parser.SubcommandsOptional = true
	p, err := parser.Parse()
	if err != nil {
		if p == nil {
			fmt.Println(err)
		}
		if flagErr, ok := err.(*flags.Error); ok && flagErr.Type == flags.ErrHelp && parser.Active != nil {
			// Print additional usage help when run with --help
			switch parser.Active.Name {
			case "send":
				exit(0, sendUsage)
			}
		}
		return
	}

	if options.Version {
		fmt.Println(Version)
		os.Exit(0)
	}

	if parser.Active == nil {
		parser.WriteHelp(os.Stderr)
		os.Exit(1)
	}

	// Figure out the log level
	numVerbose := len(options.Verbose)
	if numVerbose >= len(logLevels) {
		numVerbose = len(logLevels) - 1
	}

	logLevel := logLevels[numVerbose]
	logWriter := os.Stderr

	SetLogger(golog.New(logWriter, logLevel))
	if logLevel == log.Debug {
		// Enable logging from subpackages
		session.SetLogger(logWriter)
		journal.SetLogger(logWriter)
		gorilla.SetLogger(logWriter)
		fakeserver.SetLogger(logWriter)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		cancel()
	}()

	cmd := parser.Active.Name
	err = subcommand(ctx, cmd, options, os.Stdout)
	cancel()
	if err == nil {
		return
	}

	if err == io.EOF {
		exit(3, "Connection closed.\n")
	}

	var statusErr loco.StatusError
	switch typedErr := err.(type) {
	case net.Error:
		err = ErrExplain{err, `Disconnected from server unexpectedly. Could be a connectivity issue or the server is down. Try again?`}
	case ErrExplain:
		// All good.
	default:
		switch {
		case errors.As(err, &statusErr):
			err = ErrExplain{err, fmt.Sprintf(`The server rejected %s. Check the command body.`, statusErr.Method)}
		case errors.Is(err, loco.ErrNoResponse):
			err = ErrExplain{err, `The connection ended or timed out before the reply arrived. Try a longer --timeout?`}
		case errors.Is(err, loco.ErrMethodTooLong):
			err = ErrExplain{err, fmt.Sprintf(`Method names are at most %d characters.`, loco.MethodLen)}
		case errors.Is(err, session.ErrReadErrorLimit):
			err = ErrExplain{err, `The server sent too many malformed frames.`}
		default:
			err = ErrExplain{err, fmt.Sprintf(`Error type %T is missing an explanation. Please open an issue at https://github.com/vipnode/locomux`, typedErr)}
		}
	}

	exit(2, "%s failed: %s\n", cmd, err)
}

func exit(code int, format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(code)
}

// ErrExplain annotates an error with an explanation.
type ErrExplain struct {
	Cause       error
	Explanation string
}

func (err ErrExplain) Error() string {
	return fmt.Sprintf("%s\n -> %s", err.Cause, err.Explanation)
}
