//go:build linux

package ingest

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"

	"github.com/ska-sa/vis-ingest/common/go/numa"
)

// PinToLowerHalf restricts CPU affinity to the first half of available
// cores, leaving the rest for the kernel's network stack and the write
// pool's disk I/O — the original's main() pinned the receive threads
// the same way, reserving the upper cores. SchedSetaffinity with pid 0
// sets the mask of the calling OS thread only: threads created from it
// afterwards inherit the mask, other existing runtime threads keep
// theirs.
func PinToLowerHalf() error {
	numCores := runtime.NumCPU()
	half := numCores / 2
	if half == 0 {
		return nil
	}

	mask := numa.NewWithTrailingOnes(half)

	var set unix.CPUSet
	for cpu := range mask.Iter() {
		set.Set(int(cpu))
	}

	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("failed to set cpu affinity: %w", err)
	}
	return nil
}
