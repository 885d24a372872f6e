package ingest

import (
	"fmt"
	"runtime"
)

// DefaultConfig returns the CLI's baseline configuration, matching the
// original's compiled-in defaults (§6).
func DefaultConfig() Config {
	return Config{
		NumStreams:         4,
		PortStart:          9000,
		NumThreadsRecv:     2,
		NumThreadsWrite:    2,
		NumTimesInBuffer:   8,
		MaxNumBuffers:      4,
		NumChannelsPerFile: 4,
		OutputRoot:         "",
		RA:                 0,
		Dec:                0,
	}
}

// Normalize validates field combinations and caps NumThreadsRecv at
// num_cores-2, a supplemented guard rail the original's main() applied
// so the receive threads never starve the kernel's own softirq
// processing of the same cores.
func (c *Config) Normalize() error {
	if c.NumStreams <= 0 {
		return fmt.Errorf("num streams must be positive, got %d", c.NumStreams)
	}
	if c.NumThreadsRecv <= 0 {
		return fmt.Errorf("num receive threads must be positive, got %d", c.NumThreadsRecv)
	}
	if c.NumThreadsWrite <= 0 {
		return fmt.Errorf("num write threads must be positive, got %d", c.NumThreadsWrite)
	}
	if c.NumTimesInBuffer <= 0 {
		return fmt.Errorf("num times in buffer must be positive, got %d", c.NumTimesInBuffer)
	}
	if c.MaxNumBuffers <= 0 {
		return fmt.Errorf("max num buffers must be positive, got %d", c.MaxNumBuffers)
	}
	if c.NumChannelsPerFile <= 0 {
		return fmt.Errorf("num channels per file must be positive, got %d", c.NumChannelsPerFile)
	}
	if c.NumChannelsPerFile > c.NumStreams {
		return fmt.Errorf("num channels per file (%d) cannot exceed num streams (%d): one stream per channel", c.NumChannelsPerFile, c.NumStreams)
	}

	if cap := runtime.NumCPU() - 2; cap > 0 && c.NumThreadsRecv > cap {
		c.NumThreadsRecv = cap
	}
	if c.NumThreadsRecv > c.NumStreams {
		c.NumThreadsRecv = c.NumStreams
	}

	return nil
}
