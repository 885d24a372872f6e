package ingest

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// LoadAntennas reads an antenna coordinate file: whitespace-separated
// columns x, y, z, diameter, name, one antenna per line, with '#'
// comment lines and blank lines ignored (§6).
func LoadAntennas(path string) ([]Antenna, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open antenna file %s: %w", path, err)
	}
	defer f.Close()

	var antennas []Antenna
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 5 {
			return nil, fmt.Errorf("antenna file %s line %d: expected 5 fields, got %d", path, lineNo, len(fields))
		}

		x, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("antenna file %s line %d: bad x: %w", path, lineNo, err)
		}
		y, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("antenna file %s line %d: bad y: %w", path, lineNo, err)
		}
		z, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("antenna file %s line %d: bad z: %w", path, lineNo, err)
		}
		diam, err := strconv.ParseFloat(fields[3], 64)
		if err != nil {
			return nil, fmt.Errorf("antenna file %s line %d: bad diameter: %w", path, lineNo, err)
		}

		antennas = append(antennas, Antenna{
			X: x, Y: y, Z: z,
			Diameter: diam,
			Name:     fields[4],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read antenna file %s: %w", path, err)
	}

	return antennas, nil
}
