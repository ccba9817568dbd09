package hvlumi

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplesAt(chamber string, el Electrode, m Metric, points ...[2]float64) []Sample {
	out := make([]Sample, len(points))
	for i, p := range points {
		out[i] = Sample{Chamber: chamber, Electrode: el, Metric: m, Value: p[0], Timestamp: int64(p[1])}
	}
	return out
}

func TestStepSeriesAt(t *testing.T) {
	t.Parallel()

	// archive order is not time order
	s := NewStepSeries(samplesAt("X", DRIFT, Mon,
		[2]float64{30, 3000},
		[2]float64{10, 1000},
		[2]float64{20, 2000},
	))

	assert.Equal(t, 10.0, s.At(0), "before first sample")
	assert.Equal(t, 10.0, s.At(1000))
	assert.Equal(t, 10.0, s.At(1999))
	assert.Equal(t, 20.0, s.At(2000))
	assert.Equal(t, 30.0, s.At(3000))
	assert.Equal(t, 30.0, s.At(1_000_000), "after last sample")
}

func TestStepSeriesLastWriteWins(t *testing.T) {
	t.Parallel()

	s := NewStepSeries(samplesAt("X", G1TOP, Set,
		[2]float64{1, 500},
		[2]float64{2, 1000},
		[2]float64{3, 1000},
	))
	assert.Equal(t, 3.0, s.At(1000))
	assert.Equal(t, 3.0, s.At(1500))

	dst := make([]float64, 2)
	s.ResampleInto(dst, []int64{999, 1000})
	assert.Equal(t, []float64{1, 3}, dst)
}

func TestStepSeriesIdempotentAtSampleTimes(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(11))
	seen := map[int64]bool{}
	var smp []Sample
	for len(smp) < 500 {
		ts := rng.Int63n(10_000_000)
		if seen[ts] {
			continue
		}
		seen[ts] = true
		smp = append(smp, Sample{Value: rng.Float64() * 700, Timestamp: ts})
	}

	s := NewStepSeries(smp)
	for _, x := range smp {
		require.Equal(t, x.Value, s.At(x.Timestamp))
	}
}

func TestResampleIntoMatchesAt(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(3))
	var smp []Sample
	for i := 0; i < 300; i++ {
		smp = append(smp, Sample{Value: float64(rng.Intn(1000)), Timestamp: rng.Int63n(2_000_000)})
	}
	s := NewStepSeries(smp)

	grid, err := NewTimeGrid(0, 2100, 20000)
	require.NoError(t, err)
	dst := make([]float64, len(grid))
	s.ResampleInto(dst, grid)

	for i, ts := range grid {
		require.Equal(t, s.At(ts), dst[i], "grid point %d", ts)
	}
}

func fullChamber(id string, mon, set float64, ts ...int64) []Sample {
	var out []Sample
	for _, el := range AllElectrodes {
		for _, t := range ts {
			out = append(out,
				Sample{Chamber: id, Electrode: el, Metric: Mon, Value: mon, Timestamp: t},
				Sample{Chamber: id, Electrode: el, Metric: Set, Value: set, Timestamp: t},
			)
		}
	}
	return out
}

func TestResamplerSumsElectrodes(t *testing.T) {
	t.Parallel()

	grid := []int64{0, 20000, 40000}
	cur, err := NewResampler(grid).Resample("GE11-M-03L2", fullChamber("GE11-M-03L2", 470, 470, 0))
	require.NoError(t, err)

	want := []float64{700, 700, 700} // 7 * 470 V / 4.7
	approx := cmpopts.EquateApprox(0, 1e-9)
	if diff := cmp.Diff(want, cur.Mon, approx); diff != "" {
		t.Errorf("Mon currents mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, cur.Set, approx); diff != "" {
		t.Errorf("Set currents mismatch (-want +got):\n%s", diff)
	}
}

func TestResamplerMissingElectrode(t *testing.T) {
	t.Parallel()

	var smp []Sample
	for _, s := range fullChamber("GE21-P-16L1A", 600, 600, 0, 30000) {
		if s.Electrode == G2BOT && s.Metric == Set {
			continue
		}
		smp = append(smp, s)
	}

	_, err := NewResampler([]int64{0, 20000}).Resample("GE21-P-16L1A", smp)
	var missing *MissingElectrodeError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "GE21-P-16L1A", missing.Chamber)
	assert.Equal(t, G2BOT, missing.Electrode)
	assert.Equal(t, Set, missing.Metric)
}

func TestResamplerSubsetOfElectrodes(t *testing.T) {
	t.Parallel()

	smp := samplesAt("C", DRIFT, Mon, [2]float64{47, 0})
	smp = append(smp, samplesAt("C", DRIFT, Set, [2]float64{47, 0}, [2]float64{94, 20000})...)
	smp = append(smp, samplesAt("C", G3BOT, Mon, [2]float64{47, 0})...)
	smp = append(smp, samplesAt("C", G3BOT, Set, [2]float64{47, 0})...)
	r := &Resampler{Grid: []int64{0, 20000}, Electrodes: []Electrode{DRIFT, G3BOT}}
	cur, err := r.Resample("C", smp)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{20, 20}, cur.Mon, 1e-9)
	assert.InDeltaSlice(t, []float64{20, 30}, cur.Set, 1e-9)
}

func TestParseElectrodeAndMetric(t *testing.T) {
	t.Parallel()

	el, err := ParseElectrode("g2top")
	require.NoError(t, err)
	assert.Equal(t, G2TOP, el)
	assert.Equal(t, "G2TOP", el.String())

	_, err = ParseElectrode("G4TOP")
	assert.Error(t, err)

	m, err := ParseMetric("v0Set")
	require.NoError(t, err)
	assert.Equal(t, Set, m)
	m, err = ParseMetric("vMon")
	require.NoError(t, err)
	assert.Equal(t, Mon, m)
	_, err = ParseMetric("iMon")
	assert.Error(t, err)
}
