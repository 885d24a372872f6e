package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_DefaultConfigNormalizes(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Normalize())
}

func Test_NormalizeRejectsChannelsPerFileExceedingStreams(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NumChannelsPerFile = cfg.NumStreams + 1
	assert.Error(t, cfg.Normalize())
}

func Test_NormalizeRejectsNonPositiveChannelsPerFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NumChannelsPerFile = 0
	assert.Error(t, cfg.Normalize())
}

func Test_NormalizeAllowsChannelsPerFileSmallerThanStreams(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NumStreams = 8
	cfg.NumChannelsPerFile = 2
	require.NoError(t, cfg.Normalize())
}

func Test_NormalizeRejectsNonPositiveFields(t *testing.T) {
	base := DefaultConfig()

	cfg := base
	cfg.NumStreams = 0
	assert.Error(t, cfg.Normalize())

	cfg = base
	cfg.NumThreadsRecv = -1
	assert.Error(t, cfg.Normalize())

	cfg = base
	cfg.NumTimesInBuffer = 0
	assert.Error(t, cfg.Normalize())
}

func Test_NormalizeCapsRecvThreadsToNumStreams(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NumThreadsRecv = cfg.NumStreams + 10
	require.NoError(t, cfg.Normalize())
	assert.LessOrEqual(t, cfg.NumThreadsRecv, cfg.NumStreams)
}
