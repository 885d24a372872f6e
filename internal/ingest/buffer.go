package ingest

import (
	"time"

	"github.com/c2h5oh/datasize"
)

// Buffer owns one dense visibility tensor indexed
// [time][channel][baseline], plus the bookkeeping the receiver uses to
// decide when the buffer is quiescent and safe to flush. Slots in the
// receiver's buffer pool are pre-sized (see receiver.go) rather than a
// growable pointer array, per the design notes: a slot index is a
// stable handle for the buffer's whole lifetime, and claiming a slot
// never needs to run under the receiver mutex while other slots are
// being resized.
type Buffer struct {
	id int

	numTimes       int
	numChannels    int
	numBaselines   int
	heapIDStart    int
	heapIDEnd      int
	assigned       bool
	byteCounter    uint64
	bufferSize     uint64
	lastUpdated    time.Time
	lockedForWrite bool

	visData []DataType

	uu, vv, ww []float64
}

// newBuffer allocates a buffer sized for numTimes*numChannels*numBaselines
// DataType records. heapIDStart/heapIDEnd are left zero; the caller
// (acquireBuffer) assigns the window on first use.
func newBuffer(id, numTimes, numChannels, numBaselines int) *Buffer {
	n := numTimes * numChannels * numBaselines
	return &Buffer{
		id:           id,
		numTimes:     numTimes,
		numChannels:  numChannels,
		numBaselines: numBaselines,
		bufferSize:   uint64(n) * uint64(BlockSize),
		visData:      make([]DataType, n),
		uu:           make([]float64, numBaselines),
		vv:           make([]float64, numBaselines),
		ww:           make([]float64, numBaselines),
	}
}

// ID returns the creation-order, lifetime-stable identifier (I4).
func (b *Buffer) ID() int { return b.id }

// HeapIDStart and HeapIDEnd return the inclusive heap-counter window
// this buffer currently owns.
func (b *Buffer) HeapIDStart() int { return b.heapIDStart }
func (b *Buffer) HeapIDEnd() int   { return b.heapIDEnd }

// ByteCounter returns the cumulative deposited byte count (I2: always
// <= BufferSize()).
func (b *Buffer) ByteCounter() uint64 { return b.byteCounter }

// BufferSize returns the total expected byte count for a fully
// populated buffer.
func (b *Buffer) BufferSize() datasize.ByteSize { return datasize.ByteSize(b.bufferSize) }

// LastUpdated returns the wall-clock time of the most recent deposit.
func (b *Buffer) LastUpdated() time.Time { return b.lastUpdated }

// LockedForWrite reports whether a writer currently owns this buffer
// exclusively (I3).
func (b *Buffer) LockedForWrite() bool { return b.lockedForWrite }

// CompletionFraction returns byteCounter/bufferSize, used for the
// incomplete-buffer WARN log at flush time.
func (b *Buffer) CompletionFraction() float64 {
	if b.bufferSize == 0 {
		return 1
	}
	return float64(b.byteCounter) / float64(b.bufferSize)
}

// owns reports whether the given heap id falls in this buffer's
// current window. A freshly-recycled buffer (heapIDEnd == 0 and never
// assigned) owns nothing.
func (b *Buffer) owns(heapID int) bool {
	return b.heapIDStart <= heapID && heapID <= b.heapIDEnd && b.assigned
}

// assignWindow sets this buffer's heap window aligned to numTimes, per
// I5: heapIDStart is always a multiple of numTimes.
func (b *Buffer) assignWindow(heapID, numTimes int) {
	b.heapIDStart = numTimes * (heapID / numTimes)
	b.heapIDEnd = b.heapIDStart + numTimes - 1
	b.assigned = true
}

// deposit records length bytes arriving at time now. It does not
// perform the memcpy itself; callers copy into VisData() under the
// protocol invariant that concurrent deposits never target the same
// destination slice (§5).
func (b *Buffer) deposit(length int, now time.Time) {
	b.byteCounter += uint64(length)
	b.lastUpdated = now
}

// VisData returns the buffer's backing tensor for in-place writes. The
// returned slice must only be written at disjoint (time, channel)
// slices, per the SPEAD decoder's placement arithmetic.
func (b *Buffer) VisData() []DataType { return b.visData }

// UVW returns the per-baseline geometry scratch arrays (length
// numBaselines, one entry per baseline), overwritten by ComputeUVW at
// flush time.
func (b *Buffer) UVW() (uu, vv, ww []float64) { return b.uu, b.vv, b.ww }

// clear resets a buffer for reuse: I4 says byteCounter is reset to
// zero, the tensor is zeroed, and the heap window becomes free to be
// reassigned.
func (b *Buffer) clear() {
	b.byteCounter = 0
	b.lockedForWrite = false
	b.assigned = false
	b.heapIDStart = 0
	b.heapIDEnd = 0
	clear(b.visData)
}
