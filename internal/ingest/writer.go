package ingest

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// WriterTarget is the subset of Receiver the writer needs: output
// configuration plus buffer dimensions, without pulling in the whole
// receive-side scheduling state. OutputRoot returns the full
// <output_location>/<name>_HHMMSS prefix (see cmd/vis-ingest's
// deriveOutputPrefix), not a bare directory.
type WriterTarget interface {
	OutputRoot() string
	NumChannelsPerFile() int
	NumThreadsWrite() int
}

// Writer flushes one locked buffer, complete or not, to durable
// storage. RawFileWriter and NoopWriter below are the implementations
// in this module;
// §6/§9 describe the measurement-set path as an opaque external
// collaborator that a deployment wires in separately.
type Writer interface {
	WriteBuffer(target WriterTarget, buf *Buffer, dumpIndex int) error
}

// RawFileWriter writes each flush as one POSIX file per channel block
// under OutputRoot, sharded across NumThreadsWrite workers, per §4.5
// and the filename template in §6. dumpIndex is unused by this writer
// (the filename is derived from the buffer's own heap window and
// channel range instead) but kept in the Writer signature for the
// measurement-set path's write_counter.
type RawFileWriter struct{}

// WriteBuffer fans the buffer's channel blocks out across
// num_threads_write workers: worker i covers blocks starting at
// i*num_channels_per_file, stepping by num_threads*num_channels_per_file,
// mirroring thread_write_parallel. A failure writing one block's file
// does not stop the others; every failure is collected and returned
// together.
func (RawFileWriter) WriteBuffer(target WriterTarget, buf *Buffer, dumpIndex int) error {
	blockSize := target.NumChannelsPerFile()
	if blockSize <= 0 {
		blockSize = 1
	}
	numWorkers := target.NumThreadsWrite()
	if numWorkers <= 0 {
		numWorkers = 1
	}
	numChannels := buf.numChannels
	stride := numWorkers * blockSize

	var g errgroup.Group
	for w := 0; w < numWorkers; w++ {
		workerID := w
		g.Go(func() error {
			var errs *multierror.Error
			for c := workerID * blockSize; c < numChannels; c += stride {
				cEnd := c + blockSize - 1
				if cEnd >= numChannels {
					cEnd = numChannels - 1
				}
				if err := writeChannelBlockFile(target.OutputRoot(), buf, c, cEnd); err != nil {
					errs = multierror.Append(errs, err)
				}
			}
			return errs.ErrorOrNil()
		})
	}
	return g.Wait()
}

// writeChannelBlockFile writes the contiguous [cStart, cEnd] channel
// block of buf's tensor, time-by-time, to a file named per §6:
// <prefix>_t<heap_start:04d>-<heap_end:04d>_c<c_start:04d>-<c_end:04d>.dat.
// prefix already carries the output root, run name and HHMMSS stamp
// (see cmd/vis-ingest's deriveOutputPrefix). A failed open is an ERROR,
// and the caller's channel loop moves on (§7 "file-open failure").
func writeChannelBlockFile(prefix string, buf *Buffer, cStart, cEnd int) error {
	path := fmt.Sprintf("%s_t%04d-%04d_c%04d-%04d.dat",
		prefix, buf.HeapIDStart(), buf.HeapIDEnd(), cStart, cEnd)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	vis := buf.VisData()
	numChannels := buf.numChannels
	numBaselines := buf.numBaselines
	numChannelsBlock := cEnd - cStart + 1

	for t := 0; t < buf.numTimes; t++ {
		start := (t*numChannels + cStart) * numBaselines
		end := start + numChannelsBlock*numBaselines
		if end > len(vis) {
			break
		}
		if _, err := f.Write(asBytes(vis[start:end])); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	return nil
}

// NoopWriter discards every flush, for the §6 "--output absent means
// no writes" case: the receiver and buffer pool still run exactly as
// configured, but nothing touches disk.
type NoopWriter struct{}

func (NoopWriter) WriteBuffer(WriterTarget, *Buffer, int) error { return nil }

// MeasurementSink is the interface a measurement-set writer would
// implement to receive a flushed buffer along with its computed UVW
// coordinates; left unimplemented here since the format itself is out
// of scope (§9 "the measurement set format/library is an external
// collaborator, treated as opaque").
type MeasurementSink interface {
	PutBuffer(buf *Buffer, ra, dec float64) error
}
