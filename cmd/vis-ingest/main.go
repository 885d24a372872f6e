package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ska-sa/vis-ingest/common/go/xcmd"
	"github.com/ska-sa/vis-ingest/internal/ingest"
	"github.com/ska-sa/vis-ingest/internal/logging"
)

var cmdArgs struct {
	NumStreams         int
	NumThreadsRecv     int
	NumThreadsWrite    int
	MaxNumBuffers      int
	NumTimesInBuffer   int
	NumChannelsPerFile int
	Port               int
	OutputRoot         string
	ExpireSeconds      int
	RA                 float64
	Dec                float64
	AntennaFile        string
	LogLevel           string
}

var rootCmd = &cobra.Command{
	Use:   "vis-ingest",
	Short: "Receive SPEAD visibility streams and write them to disk",
	Run: func(cmd *cobra.Command, args []string) {
		if err := run(); err != nil {
			if errors.Is(err, xcmd.Interrupted{}) {
				return
			}
			fmt.Printf("ERROR: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	defaults := ingest.DefaultConfig()

	flags := rootCmd.Flags()
	flags.IntVarP(&cmdArgs.NumStreams, "streams", "s", defaults.NumStreams, "Number of SPEAD streams (one per frequency channel)")
	flags.IntVarP(&cmdArgs.NumThreadsRecv, "recv", "r", defaults.NumThreadsRecv, "Number of receive threads")
	flags.IntVarP(&cmdArgs.NumThreadsWrite, "write", "w", defaults.NumThreadsWrite, "Number of write threads per flush")
	flags.IntVarP(&cmdArgs.MaxNumBuffers, "buffers", "b", defaults.MaxNumBuffers, "Maximum number of live visibility buffers")
	flags.IntVarP(&cmdArgs.NumTimesInBuffer, "buffertimes", "t", defaults.NumTimesInBuffer, "Number of time samples held per buffer")
	flags.IntVarP(&cmdArgs.NumChannelsPerFile, "channels", "c", defaults.NumChannelsPerFile, "Number of channels spanned by each output file")
	flags.IntVarP(&cmdArgs.Port, "port", "p", defaults.PortStart, "Base UDP port; stream N listens on port+N")
	flags.StringVarP(&cmdArgs.OutputRoot, "output", "o", defaults.OutputRoot, "Output root directory (omit to disable writing)")
	flags.IntVarP(&cmdArgs.ExpireSeconds, "expire", "e", 0, "Reserved timeout in seconds; accepted but currently unused")
	flags.Float64VarP(&cmdArgs.RA, "ascension", "a", defaults.RA, "Pointing right ascension, radians")
	flags.Float64VarP(&cmdArgs.Dec, "declination", "d", defaults.Dec, "Pointing declination, radians")
	flags.StringVarP(&cmdArgs.AntennaFile, "antenna", "x", "", "Antenna coordinate file (enables UVW computation)")
	flags.StringVar(&cmdArgs.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	logCfg := logging.DefaultConfig()
	if lvl, err := logging.LevelFromString(cmdArgs.LogLevel); err == nil {
		logCfg.Level = lvl
	}

	log, _, err := logging.Init(logCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer log.Sync()

	if err := ingest.PinToLowerHalf(); err != nil {
		log.Warnw("failed to pin cpu affinity", "error", err)
	}

	cfg := ingest.Config{
		NumStreams:         cmdArgs.NumStreams,
		PortStart:          cmdArgs.Port,
		NumThreadsRecv:     cmdArgs.NumThreadsRecv,
		NumThreadsWrite:    cmdArgs.NumThreadsWrite,
		NumTimesInBuffer:   cmdArgs.NumTimesInBuffer,
		MaxNumBuffers:      cmdArgs.MaxNumBuffers,
		NumChannelsPerFile: cmdArgs.NumChannelsPerFile,
		RA:                 cmdArgs.RA,
		Dec:                cmdArgs.Dec,
	}
	if err := cfg.Normalize(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if cmdArgs.AntennaFile != "" {
		antennas, err := ingest.LoadAntennas(cmdArgs.AntennaFile)
		if err != nil {
			return fmt.Errorf("failed to load antenna file: %w", err)
		}
		cfg.Antennas = antennas
		log.Infow("loaded antenna coordinates", "count", len(antennas))
	}

	var writer ingest.Writer = ingest.NoopWriter{}
	if cmdArgs.OutputRoot == "" {
		log.Infow("no output root given, discarding flushed buffers")
	} else {
		prefix, err := deriveOutputPrefix(cmdArgs.OutputRoot, time.Now())
		if err != nil {
			return fmt.Errorf("failed to prepare output root: %w", err)
		}
		cfg.OutputRoot = prefix
		writer = ingest.RawFileWriter{}
		log.Infow("writing output", "prefix", prefix)
	}

	recv, err := ingest.NewReceiver(cfg, writer, log)
	if err != nil {
		return fmt.Errorf("failed to start receiver: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// Every stream has ended: stop waiting for a signal as well.
		defer cancel()
		return recv.Run(ctx)
	})

	g.Go(func() error {
		err := xcmd.WaitInterrupted(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		log.Infow("caught signal, shutting down", "error", err)
		return err
	})

	return g.Wait()
}

// outputRunName is the fixed "name" component of the output file
// prefix, matching the original's default output_name ("ingest").
const outputRunName = "ingest"

// deriveOutputPrefix builds the run-specific file prefix
// <location>/<name>_HHMMSS, creating location if necessary, mirroring
// the original's construct_output_root(): every raw file this run
// writes is named <prefix>_t<heap_start>-<heap_end>_c<c_start>-<c_end>.dat,
// so consecutive runs against the same --output never clobber each
// other's files.
func deriveOutputPrefix(location string, now time.Time) (string, error) {
	if err := os.MkdirAll(location, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", location, err)
	}
	return filepath.Join(location, fmt.Sprintf("%s_%s", outputRunName, now.Format("150405"))), nil
}
