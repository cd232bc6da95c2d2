package session

import (
	"context"
	"io"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// DefaultQueueSize is the number of submitted commands that may wait for the
// write loop before Send blocks.
const DefaultQueueSize = 128

// Config holds the session settings. The zero value is usable; QueueSize
// falls back to DefaultQueueSize.
type Config struct {
	// QueueSize bounds the submission queue.
	QueueSize int

	// ReadErrorRate is the sustained rate of non-terminal read errors the
	// read loop tolerates, with bursts of up to ReadErrorBurst. Zero
	// tolerates any number of them.
	ReadErrorRate  rate.Limit
	ReadErrorBurst int

	// DrainTimeout bounds how long Close waits for queued commands to be
	// written before it closes the stream anyway. Zero waits indefinitely.
	DrainTimeout time.Duration

	// Metrics is optional.
	Metrics *Metrics

	// firstID is the id given to the first command.
	firstID int32
}

// DefaultConfig returns the settings used by Open and OpenWithHandler.
func DefaultConfig() Config {
	return Config{
		QueueSize:      DefaultQueueSize,
		ReadErrorRate:  10,
		ReadErrorBurst: 20,
		DrainTimeout:   10 * time.Second,
	}
}

// Open starts a session over stream with no handler for unsolicited frames.
//
// The read loop ends by itself on a terminal read error, or once more than
// 20 non-terminal read errors arrive faster than 10 per second. Use
// Config.Open with a zero ReadErrorRate to keep reading through any number
// of them.
func Open(stream io.ReadWriter, codec Codec) *Session {
	return DefaultConfig().Open(stream, codec, nil)
}

// OpenWithHandler starts a session over stream. Frames matching no pending
// call and read errors are passed to handler. The read loop ends by itself
// under the same conditions as Open.
func OpenWithHandler(stream io.ReadWriter, codec Codec, handler Handler) *Session {
	return DefaultConfig().Open(stream, codec, handler)
}

// Open starts a session over stream using this configuration. A nil handler
// discards unsolicited frames.
func (cfg Config) Open(stream io.ReadWriter, codec Codec, handler Handler) *Session {
	if handler == nil {
		handler = nopHandler
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}
	s := &Session{
		queue:   make(chan pendingRequest, size),
		table:   newTable(),
		stream:  stream,
		metrics: cfg.Metrics,
		firstID: cfg.firstID,
		drain:   cfg.DrainTimeout,

		stopping:  make(chan struct{}),
		writeDone: make(chan struct{}),
		done:      make(chan struct{}),
	}
	if cfg.ReadErrorRate > 0 {
		s.readLimit = rate.NewLimiter(cfg.ReadErrorRate, cfg.ReadErrorBurst)
	}

	enc := codec.NewEncoder(stream)
	dec := codec.NewDecoder(stream)

	s.group.Go(func() error {
		defer close(s.writeDone)
		s.writeLoop(enc)
		return nil
	})
	s.group.Go(func() error {
		err := s.readLoop(dec, handler)
		// Nothing can be answered any more. Closing the stream unblocks a
		// write stuck on a peer that stopped reading, so the write loop can
		// drain and stop taking new commands.
		s.closeStream()
		s.stopAccepting(false)
		return err
	})
	go func() {
		s.err = s.group.Wait()
		close(s.done)
	}()
	return s
}

// Session is a correlation multiplexer over one stream. It is safe for
// concurrent use.
type Session struct {
	// mu guards closed and keeps queue from being closed while a Send is
	// blocked on it. userClosed records that Close was called. stopping is
	// closed first, to release Sends waiting for queue space.
	mu         sync.RWMutex
	closed     bool
	userClosed bool
	queue      chan pendingRequest
	stopping   chan struct{}
	stopOnce   sync.Once

	table     *table
	stream    io.ReadWriter
	metrics   *Metrics
	readLimit *rate.Limiter
	firstID   int32
	drain     time.Duration

	group     errgroup.Group
	writeDone chan struct{}
	done      chan struct{}
	err       error

	closeOnce  sync.Once
	streamOnce sync.Once
	streamErr  error
}

// Send submits cmd and returns the call that resolves with its reply. Send
// blocks while the submission queue is full. If ctx ends first, or the
// session is closed, the returned call is already resolved without a
// response.
func (s *Session) Send(ctx context.Context, cmd Command) *Call {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return resolvedCall()
	}

	req := pendingRequest{cmd: cmd, slot: newSlot()}
	select {
	case s.queue <- req:
		return &Call{slot: req.slot}
	case <-ctx.Done():
		return resolvedCall()
	case <-s.stopping:
		return resolvedCall()
	}
}

// Pending returns the number of calls written and awaiting a reply.
func (s *Session) Pending() int {
	return s.table.len()
}

// Close stops accepting commands, waits for the write loop to write what is
// already queued, then closes the stream if it is an io.Closer. Closing the
// stream ends the read loop, which resolves calls still waiting for a reply
// without one.
//
// If the queue is not written within Config.DrainTimeout, because the peer
// stopped reading, the stream is closed early and the remaining writes fail.
// A stream that is not an io.Closer cannot be interrupted that way: Close
// then waits for its writes to return, and the read loop keeps running until
// the stream ends by itself.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.stopAccepting(true)

		var timeout <-chan time.Time
		if s.drain > 0 {
			t := time.NewTimer(s.drain)
			defer t.Stop()
			timeout = t.C
		}
		select {
		case <-s.writeDone:
		case <-timeout:
			logger.Printf("queue not drained after %s, closing stream", s.drain)
			s.closeStream()
			<-s.writeDone
		}
		s.closeStream()
	})
	return s.streamErr
}

// closeStream closes the stream once, if it is an io.Closer.
func (s *Session) closeStream() {
	s.streamOnce.Do(func() {
		if c, ok := s.stream.(io.Closer); ok {
			s.streamErr = c.Close()
		}
	})
}

func (s *Session) stopAccepting(user bool) {
	s.stopOnce.Do(func() { close(s.stopping) })
	s.mu.Lock()
	defer s.mu.Unlock()
	if user {
		s.userClosed = true
	}
	if s.closed {
		return
	}
	s.closed = true
	close(s.queue)
}

// Done is closed when both loops have stopped.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until both loops have stopped. It returns nil if the session
// ended through Close. Otherwise it returns the error that stopped the read
// loop: the terminal read error, or ErrReadErrorLimit when non-terminal
// errors exceeded the configured rate.
func (s *Session) Wait() error {
	<-s.done
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.userClosed {
		return nil
	}
	return s.err
}

func nextID(id int32) int32 {
	if id == math.MaxInt32 {
		return 0
	}
	return id + 1
}

// writeLoop is the only writer of the stream. It ends when the queue is
// closed and drained.
func (s *Session) writeLoop(enc Encoder) {
	id := s.firstID
	for req := range s.queue {
		err := s.table.insert(id, req.slot)
		for err != nil && err != errTableClosed {
			// Wrapped around onto a call that is still waiting.
			id = nextID(id)
			err = s.table.insert(id, req.slot)
		}
		if err != nil {
			// The read loop has stopped; a reply could never be matched.
			req.slot.drop()
			continue
		}

		s.metrics.sent()
		if err := s.write(enc, id, req.cmd); err != nil {
			logger.Printf("write of %s as id %d failed: %s", req.cmd.Method, id, err)
			s.metrics.writeFailed()
			if slot := s.table.remove(id); slot != nil {
				slot.drop()
				s.metrics.abandoned(1)
			}
			continue
		}
		id = nextID(id)
	}
}

func (s *Session) write(enc Encoder, id int32, cmd Command) error {
	if err := enc.Encode(id, cmd); err != nil {
		return err
	}
	return enc.Flush()
}

// readLoop is the only reader of the stream. It stops on a terminal read
// error, or when non-terminal errors exceed the configured rate. Either way
// every call still pending is resolved without a response.
func (s *Session) readLoop(dec Decoder, handler Handler) error {
	defer func() {
		abandoned := s.table.close()
		for _, slot := range abandoned {
			slot.drop()
		}
		s.metrics.abandoned(len(abandoned))
	}()

	for {
		frame, err := dec.Decode()
		if err != nil {
			s.metrics.readError()
			handler(Frame{}, err)
			if IsTerminal(err) {
				logger.Printf("read loop stopped: %s", err)
				return err
			}
			if s.readLimit != nil && !s.readLimit.Allow() {
				logger.Printf("read loop stopped after repeated errors, last: %s", err)
				return ErrReadErrorLimit
			}
			continue
		}

		if slot := s.table.remove(frame.ID); slot != nil {
			s.metrics.matched(slot.timestamp)
			slot.deliver(frame.Response)
			continue
		}
		s.metrics.unsolicited()
		handler(frame, nil)
	}
}
