package ingest

import "sync"

// job is a unit of work queued on the write pool: flushing one
// quiescent buffer to disk (or to the measurement-set sink).
type job func()

// ThreadPool is a single-consumer background task queue, matching the
// original threadpool_create(1)/threadpool_enqueue: the receive
// scheduler's housekeeping step enqueues one flush job per quiescent
// buffer, and a single background goroutine drains the queue so that
// at most one buffer is being flushed (and its num_threads_write
// writers fanned out) at a time, bounding the writer thread count
// regardless of how many buffers go quiescent in the same pass.
type ThreadPool struct {
	jobs chan job
	wg   sync.WaitGroup
	once sync.Once
}

// NewThreadPool starts the background consumer goroutine.
func NewThreadPool() *ThreadPool {
	p := &ThreadPool{
		jobs: make(chan job, 64),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

func (p *ThreadPool) run() {
	defer p.wg.Done()
	for j := range p.jobs {
		j()
	}
}

// Enqueue schedules a job for the background consumer. Enqueue blocks
// only once the 64-job channel buffer is full. The housekeeping pass
// calls it with the receiver mutex held (see Receiver.enqueueFlush).
func (p *ThreadPool) Enqueue(j job) {
	p.jobs <- j
}

// Close stops accepting new jobs and waits for the consumer to drain
// whatever is already queued and running, mirroring the drained
// shutdown the spec requires: the write pool is quiesced before
// Receiver destruction.
func (p *ThreadPool) Close() {
	p.once.Do(func() {
		close(p.jobs)
	})
	p.wg.Wait()
}
