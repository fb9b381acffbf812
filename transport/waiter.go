package transport

import (
	"sync"
	"time"

	"github.com/brodyxchen/framerpc/constant"
	"github.com/brodyxchen/framerpc/errors"
	"github.com/brodyxchen/framerpc/statistics"
)

// waiter is one slot of the fixed-size rendezvous table pairing an
// outstanding request with its response. done is replaced on every
// allocation so a late signal can never reach a later occupant of the
// slot; gen is bumped on every allocation and rechecked before a
// response is delivered.
type waiter struct {
	inUse     bool
	delivered bool
	seq       uint8
	gen       uint16
	done      chan struct{}

	respBuf []byte
	respN   int
	result  error
}

type waiterTable struct {
	mu      sync.Mutex
	nextSeq uint8
	slots   [constant.WaiterTableSize]waiter
}

func newWaiterTable() *waiterTable {
	return &waiterTable{nextSeq: 1}
}

// alloc claims a free slot under a fresh seq, skipping seq 0 (reserved
// for streams) and any seq still held by a live waiter. When the table
// is full it sleeps 1ms and tries again, 255 attempts in all. respBuf
// is owned by the caller for the waiter's lifetime.
func (t *waiterTable) alloc(respBuf []byte) (*waiter, error) {
	for attempt := 0; attempt < 255; attempt++ {
		t.mu.Lock()

		seq := t.nextSeq
		t.nextSeq++
		if t.nextSeq == 0 {
			t.nextSeq = 1
		}

		live := false
		for i := range t.slots {
			if t.slots[i].inUse && t.slots[i].seq == seq {
				live = true
				break
			}
		}
		if live {
			t.mu.Unlock()
			continue
		}

		for i := range t.slots {
			w := &t.slots[i]
			if w.inUse {
				continue
			}
			w.inUse = true
			w.delivered = false
			w.seq = seq
			w.gen++
			w.done = make(chan struct{}, 1)
			w.respBuf = respBuf
			w.respN = 0
			w.result = nil

			t.mu.Unlock()
			statistics.ActiveWaiters.Inc()
			return w, nil
		}

		t.mu.Unlock()
		time.Sleep(time.Millisecond)
	}

	return nil, errors.ErrNoWaiter
}

// find returns the in-use waiter carrying seq plus its generation at
// lookup time. The generation must be handed back to complete.
func (t *waiterTable) find(seq uint8) (*waiter, uint16, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.slots {
		w := &t.slots[i]
		if w.inUse && w.seq == seq {
			return w, w.gen, true
		}
	}
	return nil, 0, false
}

// complete copies the response into the waiter and wakes the caller.
// The generation check drops deliveries that lost a race against the
// caller timing out and the slot being reallocated. The signal goes
// out with the mutex released; done is buffered so the send cannot
// block, and delivered keeps it to at most one per allocation.
func (t *waiterTable) complete(w *waiter, gen uint16, args []byte, result error) bool {
	t.mu.Lock()

	if !w.inUse || w.gen != gen || w.delivered {
		t.mu.Unlock()
		return false
	}
	w.delivered = true

	if len(args) > len(w.respBuf) {
		w.respN = 0
		w.result = errors.ErrOverflow
	} else {
		copy(w.respBuf, args)
		w.respN = len(args)
		w.result = result
	}

	done := w.done
	t.mu.Unlock()

	done <- struct{}{}
	return true
}

func (t *waiterTable) free(w *waiter) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !w.inUse {
		return
	}
	w.inUse = false
	w.respBuf = nil
	statistics.ActiveWaiters.Dec()
}
