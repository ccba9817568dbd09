package hvlumi

import "fmt"

// NewTimeGrid returns the millisecond timestamps runStart*1000, runStart*1000+granularity, ...
// up to and including the first point at or after runStop*1000. runStart and runStop are in
// seconds.
func NewTimeGrid(runStart, runStop, granularity int64) ([]int64, error) {
	if runStart < 0 || runStop <= runStart {
		return nil, fmt.Errorf("%w: start=%d stop=%d", ErrInvalidRange, runStart, runStop)
	}
	if granularity <= 0 {
		return nil, fmt.Errorf("%w: granularity %d ms", ErrInvalidRange, granularity)
	}

	first := runStart * 1000
	span := runStop*1000 - first
	n := span / granularity
	if span%granularity != 0 {
		n++
	}

	grid := make([]int64, n+1)
	for i := range grid {
		grid[i] = first + int64(i)*granularity
	}
	return grid, nil
}
