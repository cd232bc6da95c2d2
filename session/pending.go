package session

import (
	"sort"
	"sync"
	"time"
)

// slot is a single-use completion: it is either delivered a response once,
// or dropped. Both close done, so waiters never block past resolution.
type slot struct {
	once      sync.Once
	done      chan struct{}
	resp      *Response
	timestamp time.Time
}

func newSlot() *slot {
	return &slot{done: make(chan struct{})}
}

// deliver resolves the slot with resp. It reports false if the slot was
// already resolved.
func (s *slot) deliver(resp Response) bool {
	delivered := false
	s.once.Do(func() {
		s.resp = &resp
		delivered = true
		close(s.done)
	})
	return delivered
}

// drop resolves the slot without a response.
func (s *slot) drop() {
	s.once.Do(func() {
		close(s.done)
	})
}

// table maps correlation ids to outstanding slots. The lock is only ever held
// for a single map operation.
type table struct {
	mu      sync.Mutex
	pending map[int32]*slot
	closed  bool
}

func newTable() *table {
	return &table{pending: map[int32]*slot{}}
}

func (t *table) insert(id int32, s *slot) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errTableClosed
	}
	if _, ok := t.pending[id]; ok {
		return ErrIDInUse{id}
	}
	s.timestamp = time.Now()
	t.pending[id] = s
	return nil
}

func (t *table) remove(id int32) *slot {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.pending[id]
	if !ok {
		return nil
	}
	delete(t.pending, id)
	return s
}

func (t *table) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// close empties the table and refuses further inserts. The returned slots are
// the ones that were outstanding, oldest first; the caller drops them.
func (t *table) close() []*slot {
	t.mu.Lock()
	pending := t.pending
	t.pending = map[int32]*slot{}
	t.closed = true
	t.mu.Unlock()

	return pendingOldest(pending)
}

type pendingQueue []*slot

func (p pendingQueue) Len() int {
	return len(p)
}

func (p pendingQueue) Less(i, j int) bool {
	return p[i].timestamp.Before(p[j].timestamp)
}

func (p pendingQueue) Swap(i, j int) {
	p[i], p[j] = p[j], p[i]
}

func pendingOldest(pending map[int32]*slot) pendingQueue {
	queue := make(pendingQueue, 0, len(pending))
	for _, s := range pending {
		queue = append(queue, s)
	}
	sort.Sort(queue)
	return queue
}
