package journal

import (
	"sync"

	"github.com/eapache/queue"
	"github.com/vipnode/locomux/session"
)

// DefaultBacklog is the number of entries a Recorder buffers before it
// starts dropping them.
const DefaultBacklog = 1024

// NewRecorder starts a goroutine that appends handed-off entries to j.
// Close must be called to stop it.
func NewRecorder(j *Journal, backlog int) *Recorder {
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	r := &Recorder{
		journal: j,
		buf:     queue.New(),
		backlog: backlog,
		done:    make(chan struct{}),
	}
	r.cond = sync.NewCond(&r.mu)
	go r.run()
	return r
}

// Recorder journals handler invocations without blocking the session's
// read loop.
type Recorder struct {
	journal *Journal

	mu      sync.Mutex
	cond    *sync.Cond
	buf     *queue.Queue
	backlog int
	dropped int
	closed  bool

	done chan struct{}
}

// Handle is a session.Handler. It never blocks on storage; entries beyond
// the backlog are counted and discarded.
func (r *Recorder) Handle(frame session.Frame, err error) {
	e := NewEntry(frame, err)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.buf.Length() >= r.backlog {
		r.dropped++
		return
	}
	r.buf.Add(e)
	r.cond.Signal()
}

// Dropped returns how many entries were discarded.
func (r *Recorder) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Close stops accepting entries and returns once the buffered ones are
// written. It does not close the journal.
func (r *Recorder) Close() error {
	r.mu.Lock()
	r.closed = true
	r.cond.Broadcast()
	r.mu.Unlock()
	<-r.done
	return nil
}

func (r *Recorder) run() {
	defer close(r.done)
	for {
		r.mu.Lock()
		for r.buf.Length() == 0 && !r.closed {
			r.cond.Wait()
		}
		if r.buf.Length() == 0 {
			r.mu.Unlock()
			return
		}
		e := r.buf.Remove().(Entry)
		r.mu.Unlock()

		if _, err := r.journal.Append(e); err != nil {
			logger.Printf("failed to journal %s: %s", e, err)
		}
	}
}
