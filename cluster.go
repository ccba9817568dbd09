package hvlumi

// DetectClusters groups sorted bad grid timestamps into maximal intervals. Consecutive
// timestamps further apart than 1.5 granularities start a new interval.
func DetectClusters(bad []int64, granularity int64) []BadInterval {
	if len(bad) == 0 {
		return nil
	}

	var (
		out     []BadInterval
		current = BadInterval{Start: bad[0], End: bad[0]}
	)
	for _, t := range bad[1:] {
		// gap > 1.5*granularity, kept in integer ms
		if 2*(t-current.End) > 3*granularity {
			out = append(out, current)
			current = BadInterval{Start: t, End: t}
			continue
		}
		current.End = t
	}
	return append(out, current)
}

// BadGridPoints returns the grid timestamps at which |mon-set| exceeds threshold.
func BadGridPoints(grid []int64, c Currents, threshold float64) []int64 {
	var bad []int64
	for i, t := range grid {
		if exceeds(c.Mon[i], c.Set[i], threshold) {
			bad = append(bad, t)
		}
	}
	return bad
}

func exceeds(mon, set, threshold float64) bool {
	d := mon - set
	if d < 0 {
		d = -d
	}
	return d > threshold
}
