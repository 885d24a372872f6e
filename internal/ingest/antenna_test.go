package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_LoadAntennasParsesFieldsAndSkipsComments(t *testing.T) {
	content := "# comment\n" +
		"\n" +
		"100.0 200.0 0.0 13.5 ant1\n" +
		"-50.25 10.0 5.0 13.5 ant2\n"

	dir := t.TempDir()
	path := filepath.Join(dir, "antennas.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	antennas, err := LoadAntennas(path)
	require.NoError(t, err)
	require.Len(t, antennas, 2)

	assert.Equal(t, Antenna{X: 100.0, Y: 200.0, Z: 0.0, Diameter: 13.5, Name: "ant1"}, antennas[0])
	assert.Equal(t, Antenna{X: -50.25, Y: 10.0, Z: 5.0, Diameter: 13.5, Name: "ant2"}, antennas[1])
}

func Test_LoadAntennasRejectsShortLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "antennas.txt")
	require.NoError(t, os.WriteFile(path, []byte("1.0 2.0 3.0\n"), 0o644))

	_, err := LoadAntennas(path)
	assert.Error(t, err)
}

func Test_LoadAntennasMissingFile(t *testing.T) {
	_, err := LoadAntennas("/nonexistent/path/antennas.txt")
	assert.Error(t, err)
}
