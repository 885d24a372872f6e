package ingest

import "math"

// Antenna is one entry from the antenna coordinate file: a local
// East-North-Up-style position (x, y, z) relative to the array
// reference, plus a dish diameter and human-readable name (§6).
type Antenna struct {
	X, Y, Z  float64
	Diameter float64
	Name     string
}

// ComputeUVW fills a buffer's per-baseline uvw arrays, following
// §4.6's closed-form projection: hour_angle = timestamp_count - ra,
// u = sh*dx + ch*dy, v = -sd*ch*dx + sd*sh*dy + cd*dz, w = cd*ch*dx +
// cd*sh*dy + sd*dz. timestamp_count and ra are subtracted as-is, with
// no unit conversion between them, so the hour angle is in radians
// only if timestamp_count already is. One hour angle is computed per flush, not per
// timestamp within the buffer, matching the single-value convention
// in §4.6 and the original calculate_uvw. Baseline pairs are
// enumerated in strict i < j order over antennas, matching the
// ordering documented for the baseline axis of the visibility tensor
// (the i==j self-baseline the original source also produced is not
// reproduced here).
func ComputeUVW(buf *Buffer, antennas []Antenna, ra, dec float64, timestampCount uint32) {
	uu, vv, ww := buf.UVW()
	numBaselines := buf.numBaselines
	if numBaselines == 0 || len(uu) == 0 {
		return
	}

	hourAngle := float64(timestampCount) - ra
	sinHA, cosHA := math.Sin(hourAngle), math.Cos(hourAngle)
	sinDec, cosDec := math.Sin(dec), math.Cos(dec)

	baseline := 0
	for i := 0; i < len(antennas) && baseline < numBaselines; i++ {
		for j := i + 1; j < len(antennas) && baseline < numBaselines; j++ {
			dx := antennas[j].X - antennas[i].X
			dy := antennas[j].Y - antennas[i].Y
			dz := antennas[j].Z - antennas[i].Z

			uu[baseline] = sinHA*dx + cosHA*dy
			vv[baseline] = -sinDec*cosHA*dx + sinDec*sinHA*dy + cosDec*dz
			ww[baseline] = cosDec*cosHA*dx + cosDec*sinHA*dy + sinDec*dz

			baseline++
		}
	}
}
