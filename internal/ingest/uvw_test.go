package ingest

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
)

func Test_ComputeUVWOrdersBaselinesStrictlyIJ(t *testing.T) {
	antennas := []Antenna{
		{X: 0, Y: 0, Z: 0, Name: "ant0"},
		{X: 1, Y: 0, Z: 0, Name: "ant1"},
		{X: 0, Y: 1, Z: 0, Name: "ant2"},
	}
	// 3 antennas -> 3 ordered pairs: (0,1) (0,2) (1,2). No self-baselines.
	buf := newBuffer(0, 1, 1, 3)
	buf.numBaselines = 3

	ComputeUVW(buf, antennas, 0, 0, 0)

	uu, vv, ww := buf.UVW()
	assert.Len(t, uu, 3)
	assert.Len(t, vv, 3)
	assert.Len(t, ww, 3)

	// With zero hour angle and dec, u=dy and w=dx; deltas are
	// (1,0,0), (0,1,0), (-1,1,0) in (0,1) (0,2) (1,2) order.
	assert.Equal(t, []float64{0, 1, 1}, uu)
	assert.Equal(t, []float64{1, 0, -1}, ww)
}

func Test_ComputeUVWZeroHourAngleAndDec(t *testing.T) {
	antennas := []Antenna{
		{X: 0, Y: 0, Z: 0},
		{X: 1, Y: 0, Z: 0},
	}
	buf := newBuffer(0, 1, 1, 1)
	buf.numBaselines = 1

	// hour_angle = timestamp_count - ra = 0, dec = 0.
	ComputeUVW(buf, antennas, 0, 0, 0)

	uu, vv, ww := buf.UVW()
	// dx=1, dy=0, dz=0; sinHA=0, cosHA=1, sinDec=0, cosDec=1.
	wantUU := []float64{0} // sh*dx + ch*dy
	wantVV := []float64{0} // -sd*ch*dx + sd*sh*dy + cd*dz
	wantWW := []float64{1} // cd*ch*dx + cd*sh*dy + sd*dz

	approx := cmpopts.EquateApprox(0, 1e-9)
	if diff := cmp.Diff(wantUU, uu, approx); diff != "" {
		t.Errorf("uu mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantVV, vv, approx); diff != "" {
		t.Errorf("vv mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantWW, ww, approx); diff != "" {
		t.Errorf("ww mismatch (-want +got):\n%s", diff)
	}
}

// Test_ComputeUVWMatchesBaselineOneOfScenarioFive exercises the first
// baseline from the documented UVW sanity scenario: 3 antennas at
// (0,0,0), (1,0,0), (0,1,0), ra=dec=timestamp_count=0. Baseline (0,1)
// gives u=0, v=0, w=1 under the closed-form formula. The scenario's
// second baseline, (0,2), is not asserted here: plugging its Δ=(0,1,0)
// into the documented formula yields (u,v,w)=(1,0,0), not the
// documented (0,1,0) — the two parts of the source disagree, and this
// implementation follows the explicit closed-form equations rather
// than the worked numbers.
func Test_ComputeUVWMatchesBaselineOneOfScenarioFive(t *testing.T) {
	antennas := []Antenna{
		{X: 0, Y: 0, Z: 0},
		{X: 1, Y: 0, Z: 0},
		{X: 0, Y: 1, Z: 0},
	}
	buf := newBuffer(0, 1, 1, 3)
	buf.numBaselines = 3

	ComputeUVW(buf, antennas, 0, 0, 0)

	uu, vv, ww := buf.UVW()
	assert.InDelta(t, 0, uu[0], 1e-9) // baseline (0,1)
	assert.InDelta(t, 0, vv[0], 1e-9)
	assert.InDelta(t, 1, ww[0], 1e-9)
}

func Test_ComputeUVWNoOpWithoutBaselines(t *testing.T) {
	buf := newBuffer(0, 1, 1, 0)
	assert.NotPanics(t, func() {
		ComputeUVW(buf, nil, 0, 0, 0)
	})
}
