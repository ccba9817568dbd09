// Package processing drives the analysis of one run: run range from OMS, HV samples
// from DCS, chamber analysis on the worker pool, then the output artifacts.
package processing

import (
	"context"
	"fmt"
	"log"
	"math"
	"path/filepath"
	"time"

	"github.com/gemdqm/hvlumi"
	"github.com/gemdqm/hvlumi/internal/output"
	"github.com/gemdqm/hvlumi/internal/plot"
	"github.com/gemdqm/hvlumi/pkg/chambers"
	"github.com/gemdqm/hvlumi/pkg/config"
	"github.com/gemdqm/hvlumi/pkg/dcs"
	"github.com/gemdqm/hvlumi/pkg/models"
	"github.com/gemdqm/hvlumi/pkg/oms"
	"github.com/gemdqm/hvlumi/pkg/webhook"
	"github.com/gemdqm/hvlumi/pkg/worker"
)

// Poster is the bridge transport shared by the DCS and OMS clients.
type Poster interface {
	PostJSON(ctx context.Context, payload, out interface{}) error
}

// RunProcessor analyses runs. It is safe for concurrent use; runs sharing the pool
// are analysed one after the other.
type RunProcessor struct {
	config  *config.Config
	dcs     Poster
	oms     *oms.Client
	pool    *worker.Pool
	webhook *webhook.Client
}

// Options holds the dependencies of a RunProcessor
type Options struct {
	Config  *config.Config
	DCS     Poster
	OMS     Poster
	Pool    *worker.Pool
	Webhook *webhook.Client // optional
}

// NewRunProcessor creates a processor. Pool must be shut down by the caller.
func NewRunProcessor(opts Options) *RunProcessor {
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	return &RunProcessor{
		config:  opts.Config,
		dcs:     opts.DCS,
		oms:     oms.NewClient(opts.OMS),
		pool:    opts.Pool,
		webhook: opts.Webhook,
	}
}

// Result is everything produced for one run.
type Result struct {
	Info    models.RunInfo
	Grid    []int64
	Report  *hvlumi.Report
	Summary models.RunReport
	Files   []string
}

// Process analyses run. Chambers whose DCS batch fails are reported invalid and the
// failure is listed in Summary.Errors; only OMS, grid and output failures abort.
func (p *RunProcessor) Process(ctx context.Context, requestID string, run int) (*Result, error) {
	cfg := p.config
	start := time.Now()

	info, err := p.oms.RunInfo(ctx, run)
	if err != nil {
		return nil, err
	}
	grid, err := hvlumi.NewTimeGrid(info.Start, info.Stop, cfg.Granularity)
	if err != nil {
		return nil, fmt.Errorf("run %d: %w", run, err)
	}
	analyzer, err := hvlumi.NewAnalyzer(grid, cfg.Granularity, cfg.Threshold)
	if err != nil {
		return nil, err
	}

	secPerLS := cfg.SecondsPerLumisection
	if cfg.UseOMSLumisection && info.SecondsPerLumisection > 0 {
		secPerLS = info.SecondsPerLumisection
	}
	if !cfg.Quiet {
		log.Printf("🏃 Run %d: %s -> %s, %d grid points, %.3f s/LS",
			run, time.Unix(info.Start, 0).UTC().Format(time.RFC3339),
			time.Unix(info.Stop, 0).UTC().Format(time.RFC3339), len(grid), secPerLS)
	}

	client := dcs.NewClient(p.dcs, dcs.Options{
		Start:     info.Start,
		Stop:      info.Stop,
		Indexer:   hvlumi.NewNominalLumisections(info.Start, secPerLS),
		BatchSize: cfg.BatchSize,
		Quiet:     cfg.Quiet,
	})

	units := []string(cfg.Chambers)
	if len(units) == 0 {
		units = chambers.All()
	}

	fetched, err := client.Fetch(ctx, units)
	if err != nil {
		return nil, err
	}

	analyze := func(id string, s []hvlumi.Sample) hvlumi.ChamberResult {
		if err, ok := fetched.Failed[id]; ok {
			return hvlumi.InvalidResult(id, err)
		}
		return analyzer.AnalyzeChamber(id, s)
	}
	results := p.pool.AnalyzeAll(requestID, run, units, fetched.Samples, analyze)
	report := hvlumi.NewReport(results)

	res := &Result{
		Info:    info,
		Grid:    grid,
		Report:  report,
		Summary: BuildRunReport(requestID, run, cfg.Threshold, report, fetched.Errors),
	}

	if cfg.OutputFolder != "" {
		files, err := output.WriteRun(cfg.OutputFolder, run, report)
		if err != nil {
			return nil, err
		}
		res.Files = append(res.Files, files...)

		if cfg.Plots {
			plots, err := plot.Run(filepath.Join(cfg.OutputFolder, "plots"), grid, report)
			res.Files = append(res.Files, plots...)
			if err != nil {
				return nil, err
			}
		}
	}

	if p.webhook != nil {
		if err := p.webhook.Send(ctx, res.Summary); err != nil {
			log.Printf("❌ %v", err)
		}
	}

	if !cfg.Quiet {
		log.Printf("🎉 Run %d analysed in %v: %d chambers, %d invalid",
			run, time.Since(start), len(units), len(res.Summary.InvalidChambers))
	}
	return res, nil
}

// BuildRunReport converts report into its JSON form.
func BuildRunReport(id string, run int, threshold float64, report *hvlumi.Report, errs []error) models.RunReport {
	rows := make([]models.ChamberSummaryRow, len(report.Summary))
	for i, s := range report.Summary {
		rows[i] = models.ChamberSummaryRow{
			ID:                       s.ID,
			MonEquivalentCurrentMean: sanitizeFloat(s.MeanMon),
			MonEquivalentCurrentStd:  sanitizeFloat(s.StdMon),
			SetEquivalentCurrentMean: sanitizeFloat(s.MeanSet),
			SetEquivalentCurrentStd:  sanitizeFloat(s.StdSet),
		}
	}

	invalid := report.InvalidChambers()
	if invalid == nil {
		invalid = []string{}
	}

	rr := models.RunReport{
		ID:              id,
		RunNumber:       run,
		Time:            time.Now().UTC().Format(time.RFC3339),
		Threshold:       threshold,
		Summary:         rows,
		BadLumisections: report.BadLumisections,
		InvalidChambers: invalid,
	}
	for _, err := range errs {
		rr.Errors = append(rr.Errors, err.Error())
	}
	return rr
}

// sanitizeFloat replaces values JSON cannot encode with 0
func sanitizeFloat(val float64) float64 {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return 0.0
	}
	return val
}
