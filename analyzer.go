package hvlumi

import (
	"context"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// SampleSource supplies the archived samples of one chamber.
type SampleSource interface {
	Samples(ctx context.Context, chamber string) ([]Sample, error)
}

// SampleSourceFunc adapts a function to SampleSource.
type SampleSourceFunc func(ctx context.Context, chamber string) ([]Sample, error)

func (f SampleSourceFunc) Samples(ctx context.Context, chamber string) ([]Sample, error) {
	return f(ctx, chamber)
}

// Analyzer runs the bad-HV pipeline chamber by chamber. It holds no per-chamber state
// and may be shared between goroutines.
type Analyzer struct {
	Grid        []int64
	Granularity int64   // ms
	Threshold   float64 // uA
	Electrodes  []Electrode
}

// NewAnalyzer builds an analyzer over all seven electrodes.
func NewAnalyzer(grid []int64, granularity int64, threshold float64) (*Analyzer, error) {
	if len(grid) == 0 {
		return nil, fmt.Errorf("%w: empty time grid", ErrInvalidRange)
	}
	if granularity <= 0 {
		return nil, fmt.Errorf("%w: granularity %d ms", ErrInvalidRange, granularity)
	}
	if threshold <= 0 {
		return nil, fmt.Errorf("threshold must be positive, got %v", threshold)
	}
	return &Analyzer{
		Grid:        grid,
		Granularity: granularity,
		Threshold:   threshold,
		Electrodes:  AllElectrodes,
	}, nil
}

// AnalyzeChamber resamples the chamber samples, flags the grid points where the monitored
// and set currents differ by more than the threshold and maps them onto lumisections.
func (a *Analyzer) AnalyzeChamber(id string, samples []Sample) ChamberResult {
	rs := &Resampler{Grid: a.Grid, Electrodes: a.Electrodes}
	cur, err := rs.Resample(id, samples)
	if err != nil {
		return InvalidResult(id, err)
	}

	res := ChamberResult{ID: id, Valid: true, Currents: cur}
	res.MeanMon, res.StdMon = stat.MeanStdDev(cur.Mon, nil)
	res.MeanSet, res.StdSet = stat.MeanStdDev(cur.Set, nil)

	bad := BadGridPoints(a.Grid, cur, a.Threshold)
	res.Intervals = DetectClusters(bad, a.Granularity)
	res.BadLumisections = MapLumisections(res.Intervals, samples)
	return res
}

// Run fetches and analyses every chamber in order. A chamber whose samples cannot be
// fetched is reported as invalid; the fetch errors are joined and returned alongside the
// complete report.
func (a *Analyzer) Run(ctx context.Context, chambers []string, src SampleSource) (*Report, error) {
	results := make([]ChamberResult, 0, len(chambers))
	var errs []error
	for _, id := range chambers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		samples, err := src.Samples(ctx, id)
		if err != nil {
			ferr := &FetchError{Chamber: id, Err: err}
			errs = append(errs, ferr)
			results = append(results, InvalidResult(id, ferr))
			continue
		}
		results = append(results, a.AnalyzeChamber(id, samples))
	}
	return NewReport(results), errors.Join(errs...)
}

// InvalidResult marks the whole chamber bad because of err.
func InvalidResult(id string, err error) ChamberResult {
	Logf("⚠️  chamber %s marked bad: %v", id, err)
	return ChamberResult{
		ID:              id,
		BadLumisections: []int{InvalidLumisection},
		Err:             err,
	}
}

// Report is the run-level outcome: summary rows for the valid chambers and the bad
// lumisections of every chamber.
type Report struct {
	Summary         []ChamberSummary
	BadLumisections map[string][]int
	Results         []ChamberResult
}

// NewReport assembles a report keeping the order of results.
func NewReport(results []ChamberResult) *Report {
	r := &Report{
		Summary:         make([]ChamberSummary, 0, len(results)),
		BadLumisections: make(map[string][]int, len(results)),
		Results:         results,
	}
	for _, res := range results {
		if res.Valid {
			r.Summary = append(r.Summary, res.Summary())
		}
		ls := res.BadLumisections
		if ls == nil {
			ls = []int{}
		}
		r.BadLumisections[res.ID] = ls
	}
	return r
}

// InvalidChambers lists the chambers flagged as entirely bad.
func (r *Report) InvalidChambers() []string {
	var ids []string
	for _, res := range r.Results {
		if !res.Valid {
			ids = append(ids, res.ID)
		}
	}
	return ids
}
