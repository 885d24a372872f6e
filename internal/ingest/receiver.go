package ingest

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ska-sa/vis-ingest/common/go/xiter"
	"github.com/ska-sa/vis-ingest/internal/logging"
)

// quiescenceWindow is how long a buffer must go without a deposit
// before housekeeping locks it for write (§4.4 step 3).
const quiescenceWindow = time.Second

// reportByteThreshold and reportInterval gate the periodic throughput
// log: report at least once per GB received or once per second,
// whichever comes first (§4.4 step 3).
const reportByteThreshold = 1_000_000_000

var reportInterval = time.Second

// Config collects everything the Receiver needs to start: stream
// topology, buffer pool sizing, thread counts, and the writer's
// output configuration. See internal/ingest/config.go for the
// CLI-facing defaults.
type Config struct {
	NumStreams       int
	PortStart        int
	NumThreadsRecv   int
	NumThreadsWrite  int
	NumTimesInBuffer int
	MaxNumBuffers    int

	// NumChannelsPerFile is the channel stride a single output file
	// spans (§6's -c/--channels): a flush writes ceil(NumStreams /
	// NumChannelsPerFile) files, each covering a c_start..c_end block,
	// not one file per channel and not the total channel count (that
	// is always NumStreams, one stream per channel).
	NumChannelsPerFile int

	// OutputRoot is the full <output_location>/<name>_HHMMSS file
	// prefix the raw-file writer appends its _t..._c....dat suffix to,
	// not a bare directory (see cmd/vis-ingest's deriveOutputPrefix).
	OutputRoot string
	RA, Dec    float64
	Antennas   []Antenna
}

// Receiver is the central coordinator: the stream array, the buffer
// pool, the write thread pool, the receive-thread barrier, timing, and
// process-wide observation state (§3 "Receiver").
type Receiver struct {
	cfg Config

	streams []*Stream
	writer  Writer

	mu      sync.Mutex
	buffers []*Buffer // slot table with capacity cfg.MaxNumBuffers, appended to as buffers are created

	barrier *Barrier
	pool    *ThreadPool
	tmr     *Timer

	numBaselinesVal atomic.Uint32
	timestampCount  atomic.Uint32

	completedStreams atomic.Int32

	// recvAccum/dumpAccum/memcpyAccum accumulate drained stream
	// counters across passes between periodic reports; only thread 0
	// touches them, since only thread 0 runs housekeep.
	recvAccum   uint64
	dumpAccum   uint64
	memcpyAccum time.Duration

	writeCounter int

	log *zap.SugaredLogger
}

// NewReceiver binds every stream's UDP socket and prepares an empty
// buffer pool. Binding happens eagerly so a misconfigured port range
// fails fast at startup rather than silently dropping traffic later.
func NewReceiver(cfg Config, writer Writer, log *zap.SugaredLogger) (*Receiver, error) {
	r := &Receiver{
		cfg:     cfg,
		buffers: make([]*Buffer, 0, cfg.MaxNumBuffers),
		barrier: NewBarrier(cfg.NumThreadsRecv),
		pool:    NewThreadPool(),
		tmr:     NewTimer(),
		writer:  writer,
		log:     log,
	}

	for i := 0; i < cfg.NumStreams; i++ {
		port := cfg.PortStart + i
		s, err := bindStreamWithRetry(port, i, log)
		if err != nil {
			r.closeStreams()
			return nil, fmt.Errorf("failed to create stream for port %d: %w", port, err)
		}
		r.streams = append(r.streams, s)
	}

	return r, nil
}

func (r *Receiver) closeStreams() {
	for _, s := range r.streams {
		_ = s.Close()
	}
}

// setTimestampCount and setNumBaselines implement the buffers
// interface stream.go decodes against: advisory, last-writer-wins
// updates with relaxed ordering (§5 "Shared mutable observation
// state").
func (r *Receiver) setTimestampCount(v uint32) { r.timestampCount.Store(v) }
func (r *Receiver) setNumBaselines(v uint32)   { r.numBaselinesVal.Store(v) }
func (r *Receiver) numBaselines() uint32       { return r.numBaselinesVal.Load() }

// acquireBuffer implements the §4.3 arbitration procedure under the
// receiver mutex: claim an existing buffer that owns this heap,
// recycle the oldest empty buffer, grow the pool, or drop the packet
// as stale.
func (r *Receiver) acquireBuffer(heapID, length int, now time.Time) *Buffer {
	r.mu.Lock()
	defer r.mu.Unlock()

	numTimes := r.cfg.NumTimesInBuffer

	var oldest *Buffer
	minHeapStart := int(^uint(0) >> 1) // max int

	for _, buf := range r.buffers {
		if buf.owns(heapID) && !buf.lockedForWrite {
			buf.deposit(length, now)
			return buf
		}
		if buf.heapIDStart < minHeapStart {
			minHeapStart = buf.heapIDStart
			oldest = buf
		}
	}

	var target *Buffer
	if oldest != nil {
		if heapID < minHeapStart {
			// Belongs to an already-flushed window: drop (§4.3 step 3).
			return nil
		}
		if oldest.byteCounter == 0 && !oldest.lockedForWrite {
			target = oldest
			r.log.Infow("reassigned buffer", "buffer_id", target.ID())
		}
	}

	if target == nil && len(r.buffers) < r.cfg.MaxNumBuffers {
		target = newBuffer(len(r.buffers), numTimes, r.cfg.NumStreams, int(r.numBaselinesVal.Load()))
		r.buffers = append(r.buffers, target)
		r.log.Infow("created buffer", "buffer_id", target.ID())
	}

	if target == nil {
		return nil
	}

	target.assignWindow(heapID, numTimes)
	target.deposit(length, now)
	return target
}

// Run starts num_threads_recv receive goroutines and blocks until
// every stream has reported end-of-stream, per §4.4 and the lifecycle
// described in §3. The write pool is drained before Run returns.
func (r *Receiver) Run(ctx context.Context) error {
	r.tmr.Start()

	g, ctx := errgroup.WithContext(ctx)
	for t := 0; t < r.cfg.NumThreadsRecv; t++ {
		threadID := t
		g.Go(func() error {
			return r.receiveLoop(ctx, threadID)
		})
	}

	err := g.Wait()
	r.pool.Close()
	r.closeStreams()
	return err
}

// receiveLoop is one receive thread's pass/barrier/housekeeping cycle
// (§4.4). Thread 0 performs housekeeping; all threads wait at both
// barrier points unless there's only one receive thread.
func (r *Receiver) receiveLoop(ctx context.Context, threadID int) error {
	numThreads := r.cfg.NumThreadsRecv
	numStreams := len(r.streams)
	log := logging.WithThread(r.log, threadID)
	log.Debugw("starting receiver thread", "num_streams", numStreams)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if int(r.completedStreams.Load()) == numStreams {
			return nil
		}

		for i := threadID; i < numStreams; i += numThreads {
			s := r.streams[i]
			if !s.Done() {
				s.receive(r)
			}
		}

		r.barrier.Wait()

		if threadID == 0 {
			r.housekeep(log)
		}

		r.barrier.Wait()
	}
}

// housekeep implements §4.4 step 3: lock and enqueue quiescent
// buffers, aggregate and periodically report throughput, and refresh
// the completed-stream count.
func (r *Receiver) housekeep(log *zap.SugaredLogger) {
	now := time.Now()

	r.mu.Lock()
	for slot, buf := range xiter.Enumerate(slices.Values(r.buffers)) {
		if buf.byteCounter > 0 && !buf.lockedForWrite && now.Sub(buf.lastUpdated) >= quiescenceWindow {
			buf.lockedForWrite = true
			log.Infow("locked buffer for writing", "buffer_id", buf.ID(), "slot", slot)
			r.enqueueFlush(buf)
		}
	}
	r.mu.Unlock()

	completed := 0
	for _, s := range r.streams {
		if s.Done() {
			completed++
		}
		recv, dump, memcpy := s.drainCounters()
		r.recvAccum += recv
		r.dumpAccum += dump
		r.memcpyAccum += memcpy
	}
	r.completedStreams.Store(int32(completed))

	elapsed := r.tmr.Elapsed()
	if r.recvAccum > reportByteThreshold || elapsed >= reportInterval {
		avgMemcpy := time.Duration(0)
		if len(r.streams) > 0 {
			avgMemcpy = r.memcpyAccum / time.Duration(len(r.streams))
		}
		mbps := 0.0
		if elapsed > 0 {
			mbps = (float64(r.recvAccum) / 1e6) / elapsed.Seconds()
		}
		log.Infow("throughput",
			"received_mb", float64(r.recvAccum)/1e6,
			"elapsed_sec", elapsed.Seconds(),
			"mb_per_sec", mbps,
			"memcpy_fraction", avgMemcpy.Seconds()/max(elapsed.Seconds(), 1e-9),
		)
		if r.dumpAccum > 0 {
			log.Warnw("dumped bytes", "dumped", r.dumpAccum)
		}
		r.tmr.Start()
		r.recvAccum, r.dumpAccum, r.memcpyAccum = 0, 0, 0
	}
}

// enqueueFlush schedules buf for a flush on the write pool. Called
// with the receiver mutex held, matching the original's locked
// buffer hand-off to threadpool_enqueue.
func (r *Receiver) enqueueFlush(buf *Buffer) {
	r.pool.Enqueue(func() {
		r.flush(buf)
	})
}

// flush writes a locked buffer out (raw files or measurement set),
// computing UVW first if antenna coordinates are available, then
// clears the buffer so it re-enters the pool (§4.5).
func (r *Receiver) flush(buf *Buffer) {
	if buf.CompletionFraction() < 1 {
		r.log.Warnw("incomplete buffer at flush",
			"buffer_id", buf.ID(),
			"completion_pct", buf.CompletionFraction()*100,
		)
	}

	if len(r.cfg.Antennas) > 0 {
		ComputeUVW(buf, r.cfg.Antennas, r.cfg.RA, r.cfg.Dec, r.timestampCount.Load())
	}

	if r.writer != nil {
		start := time.Now()
		if err := r.writer.WriteBuffer(r, buf, r.writeCounter); err != nil {
			r.log.Errorw("failed to write buffer", "buffer_id", buf.ID(), "error", err)
		}
		r.log.Infow("wrote buffer",
			"buffer_id", buf.ID(),
			"duration_sec", time.Since(start).Seconds(),
		)
	}

	r.mu.Lock()
	r.writeCounter++
	buf.clear()
	r.mu.Unlock()
}

// OutputRoot, NumChannelsPerFile, NumThreadsWrite expose the writer
// configuration the Writer implementations need without depending on
// the whole Receiver struct.
func (r *Receiver) OutputRoot() string      { return r.cfg.OutputRoot }
func (r *Receiver) NumChannelsPerFile() int { return r.cfg.NumChannelsPerFile }
func (r *Receiver) NumThreadsWrite() int    { return r.cfg.NumThreadsWrite }

// bindStreamWithRetry retries socket creation through a bounded
// backoff before giving up, redesigning §7's "implementer may choose
// to abort bind failure for safety" into a short resilient retry
// rather than an immediate abort — transient EADDRINUSE on restart is
// common when a previous process is still tearing down its socket.
func bindStreamWithRetry(port, streamID int, log *zap.SugaredLogger) (*Stream, error) {
	var lastErr error
	op := func() (*Stream, error) {
		s, err := newStream(port, streamID, log)
		if err != nil {
			lastErr = err
			return nil, err
		}
		return s, nil
	}

	s, err := retryBind(op)
	if err != nil {
		logging.Critical(log, "cannot bind stream socket", "port", port, "error", lastErr)
		return nil, err
	}
	return s, nil
}
