package hvlumi

import (
	"fmt"
	"math"
	"sort"
)

// LumisectionIndexer maps a millisecond timestamp onto a lumisection index.
type LumisectionIndexer interface {
	Index(ts int64) int
}

// NominalLumisections assumes every lumisection of the run lasts the same time.
// This approximates the true boundaries held by OMS.
type NominalLumisections struct {
	RunStart              int64 // s
	SecondsPerLumisection float64
}

// NewNominalLumisections uses DefaultSecondsPerLumisection when secondsPerLS is not positive.
func NewNominalLumisections(runStart int64, secondsPerLS float64) NominalLumisections {
	if secondsPerLS <= 0 {
		secondsPerLS = DefaultSecondsPerLumisection
	}
	return NominalLumisections{RunStart: runStart, SecondsPerLumisection: secondsPerLS}
}

// Index returns floor((ts/1000 - RunStart)/SecondsPerLumisection), clamped at zero.
func (n NominalLumisections) Index(ts int64) int {
	elapsed := float64(ts-n.RunStart*1000) / 1000
	ls := int(math.Floor(elapsed / n.SecondsPerLumisection))
	if ls < 0 {
		return 0
	}
	return ls
}

// StampLumisections sets the recorded lumisection of every sample in place.
func StampLumisections(samples []Sample, idx LumisectionIndexer) {
	for i := range samples {
		samples[i].Lumisection = idx.Index(samples[i].Timestamp)
	}
}

// MapLumisections returns the sorted, unique lumisections covered by the intervals. For each
// interval the samples with Start <= ts <= End are collected and the whole range between
// their lowest and highest recorded lumisection is marked. Intervals without samples are
// skipped.
func MapLumisections(intervals []BadInterval, samples []Sample) []int {
	if len(intervals) == 0 {
		return []int{}
	}

	byTime := make([]Sample, len(samples))
	copy(byTime, samples)
	sort.Slice(byTime, func(i, j int) bool {
		return byTime[i].Timestamp < byTime[j].Timestamp
	})

	marked := make(map[int]struct{})
	for _, iv := range intervals {
		lo, hi, err := lumisectionRange(iv, byTime)
		if err != nil {
			Logf("⚠️  %v", err)
			continue
		}
		for ls := lo; ls <= hi; ls++ {
			marked[ls] = struct{}{}
		}
	}

	out := make([]int, 0, len(marked))
	for ls := range marked {
		out = append(out, ls)
	}
	sort.Ints(out)
	return out
}

func lumisectionRange(iv BadInterval, byTime []Sample) (int, int, error) {
	first := sort.Search(len(byTime), func(k int) bool { return byTime[k].Timestamp >= iv.Start })
	lo, hi := math.MaxInt, math.MinInt
	for k := first; k < len(byTime) && byTime[k].Timestamp <= iv.End; k++ {
		ls := byTime[k].Lumisection
		if ls < lo {
			lo = ls
		}
		if ls > hi {
			hi = ls
		}
	}
	if lo > hi {
		return 0, 0, fmt.Errorf("%w: [%d, %d]", ErrEmptyIntervalMatch, iv.Start, iv.End)
	}
	return lo, hi, nil
}
