package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriterTarget struct {
	root            string
	channelsPerFile int
	numWorkers      int
}

func (f fakeWriterTarget) OutputRoot() string      { return f.root }
func (f fakeWriterTarget) NumChannelsPerFile() int { return f.channelsPerFile }
func (f fakeWriterTarget) NumThreadsWrite() int    { return f.numWorkers }

func Test_RawFileWriterWritesOneFilePerChannelBlock(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "ingest_010203")
	// 4 total channels, 2 channels per file -> 2 files covering c0-1, c2-3.
	target := fakeWriterTarget{root: prefix, channelsPerFile: 2, numWorkers: 2}

	buf := newBuffer(0, 2, 4, 1)
	buf.assignWindow(0, 2)
	for i := range buf.visData {
		buf.visData[i] = DataType{Vis: [4]Complex{{Re: float32(i), Im: float32(i)}}}
	}

	w := RawFileWriter{}
	require.NoError(t, w.WriteBuffer(target, buf, 7))

	wantBlocks := [][2]int{{0, 1}, {2, 3}}
	for _, block := range wantBlocks {
		name := fmt.Sprintf("%s_t%04d-%04d_c%04d-%04d.dat", prefix, buf.HeapIDStart(), buf.HeapIDEnd(), block[0], block[1])
		info, err := os.Stat(name)
		require.NoError(t, err, "missing output file for channel block %v", block)
		assert.Equal(t, int64(2*2*1*BlockSize), info.Size())
	}
}

func Test_RawFileWriterContinuesAfterOneChannelBlockFails(t *testing.T) {
	dir := t.TempDir()
	// An output prefix whose directory doesn't exist makes every create
	// fail; WriteBuffer should aggregate the failures rather than panic.
	badPrefix := filepath.Join(dir, "does-not-exist", "nested", "ingest_010203")
	target := fakeWriterTarget{root: badPrefix, channelsPerFile: 1, numWorkers: 1}

	buf := newBuffer(0, 1, 2, 1)
	buf.assignWindow(0, 1)
	w := RawFileWriter{}

	err := w.WriteBuffer(target, buf, 0)
	assert.Error(t, err)

	// Both channel blocks were attempted after the first one failed.
	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 2)
}
