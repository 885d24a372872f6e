package ingest

import "sync"

// Barrier is a reusable, generation-counted N-party rendezvous point.
// The receive scheduler (§4.4) needs two barrier waits per pass —
// one after every thread has called receive() on its streams, one
// after thread 0 finishes housekeeping — so per the design notes this
// is a single barrier type good for any number of waits per cycle,
// rather than two one-shot barriers that would need to be recreated
// every pass.
type Barrier struct {
	mu      sync.Mutex
	cond    *sync.Cond
	parties int
	waiting int
	gen     uint64
}

// NewBarrier creates a barrier for the given number of parties. A
// barrier of one party is a no-op: Wait returns immediately, matching
// the scheduler's "skip if num_threads_recv == 1" rule.
func NewBarrier(parties int) *Barrier {
	b := &Barrier{parties: parties}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Wait blocks until `parties` goroutines have called Wait for the
// current generation, then releases all of them together and advances
// to the next generation so the barrier can be reused on the next
// pass.
func (b *Barrier) Wait() {
	if b.parties <= 1 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	gen := b.gen
	b.waiting++
	if b.waiting == b.parties {
		b.waiting = 0
		b.gen++
		b.cond.Broadcast()
		return
	}

	for gen == b.gen {
		b.cond.Wait()
	}
}
