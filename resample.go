package hvlumi

import (
	"sort"

	"gonum.org/v1/gonum/floats"
)

// StepSeries is a zero-order-hold view over one electrode's samples of one metric.
type StepSeries struct {
	ts     []int64
	values []float64
}

// NewStepSeries sorts the samples by timestamp. The sort is stable so that of several
// samples sharing a timestamp the last one in archive order is the one returned by At.
func NewStepSeries(samples []Sample) *StepSeries {
	sorted := make([]Sample, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	s := &StepSeries{
		ts:     make([]int64, len(sorted)),
		values: make([]float64, len(sorted)),
	}
	for i, smp := range sorted {
		s.ts[i] = smp.Timestamp
		s.values[i] = smp.Value
	}
	return s
}

// Len returns the number of samples.
func (s *StepSeries) Len() int {
	return len(s.ts)
}

// At returns the value of the latest sample taken at or before t. Queries before the first
// sample return the first value. At panics on an empty series.
func (s *StepSeries) At(t int64) float64 {
	// first index with ts > t
	i := sort.Search(len(s.ts), func(k int) bool { return s.ts[k] > t })
	if i == 0 {
		return s.values[0]
	}
	return s.values[i-1]
}

// ResampleInto writes the held value at every grid point into dst, which must be
// len(grid) long. grid must be sorted ascending.
func (s *StepSeries) ResampleInto(dst []float64, grid []int64) {
	if len(dst) != len(grid) {
		panic("hvlumi: resample length mismatch")
	}
	j := 0
	for i, t := range grid {
		for j < len(s.ts) && s.ts[j] <= t {
			j++
		}
		if j == 0 {
			dst[i] = s.values[0]
		} else {
			dst[i] = s.values[j-1]
		}
	}
}

// Resampler turns the samples of a chamber into equivalent currents on a grid.
type Resampler struct {
	Grid       []int64
	Electrodes []Electrode
}

// NewResampler creates a resampler over all seven electrodes.
func NewResampler(grid []int64) *Resampler {
	return &Resampler{Grid: grid, Electrodes: AllElectrodes}
}

type streamKey struct {
	electrode Electrode
	metric    Metric
}

// Resample returns the equivalent monitored and set currents of chamber on the grid.
// Every expected electrode needs at least one Mon and one Set sample, otherwise a
// *MissingElectrodeError is returned and nothing is approximated.
func (r *Resampler) Resample(chamber string, samples []Sample) (Currents, error) {
	streams := make(map[streamKey][]Sample, 2*len(r.Electrodes))
	for _, smp := range samples {
		k := streamKey{smp.Electrode, smp.Metric}
		streams[k] = append(streams[k], smp)
	}

	for _, el := range r.Electrodes {
		for _, m := range []Metric{Mon, Set} {
			if len(streams[streamKey{el, m}]) == 0 {
				return Currents{}, &MissingElectrodeError{Chamber: chamber, Electrode: el, Metric: m}
			}
		}
	}

	out := Currents{
		Mon: make([]float64, len(r.Grid)),
		Set: make([]float64, len(r.Grid)),
	}
	buf := make([]float64, len(r.Grid))
	for _, el := range r.Electrodes {
		NewStepSeries(streams[streamKey{el, Mon}]).ResampleInto(buf, r.Grid)
		floats.Add(out.Mon, buf)
		NewStepSeries(streams[streamKey{el, Set}]).ResampleInto(buf, r.Grid)
		floats.Add(out.Set, buf)
	}
	floats.Scale(1/DividerResistance, out.Mon)
	floats.Scale(1/DividerResistance, out.Set)
	return out, nil
}
