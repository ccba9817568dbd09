// Package dcs queries the DCS bridge for archived chamber HV values.
//
// Timestamps in queries are seconds, timestamps in answers are milliseconds. Chambers
// are queried in batches so that a single request stays below the bridge timeout.
package dcs

import (
	"context"
	"fmt"
	"log"

	"github.com/gemdqm/hvlumi"
	"github.com/gemdqm/hvlumi/pkg/bridge"
	"github.com/gemdqm/hvlumi/pkg/chambers"
	"github.com/gemdqm/hvlumi/pkg/models"
)

// UnitsPerBatch is the number of chambers per bridge request.
const UnitsPerBatch = 40

// Poster is the subset of bridge.Client used here.
type Poster interface {
	PostJSON(ctx context.Context, payload, out interface{}) error
}

var _ Poster = (*bridge.Client)(nil)

// Client fetches HV samples of a run.
type Client struct {
	bridge     Poster
	start      int64 // s
	stop       int64 // s
	indexer    hvlumi.LumisectionIndexer
	electrodes []hvlumi.Electrode
	batchSize  int
	quiet      bool
}

// Options configures a Client.
type Options struct {
	Start, Stop int64 // s
	Indexer     hvlumi.LumisectionIndexer
	BatchSize   int
	Quiet       bool
}

// NewClient creates a DCS client for the run range in opts.
func NewClient(b Poster, opts Options) *Client {
	if opts.BatchSize <= 0 {
		opts.BatchSize = UnitsPerBatch
	}
	if opts.Indexer == nil {
		opts.Indexer = hvlumi.NewNominalLumisections(opts.Start, hvlumi.DefaultSecondsPerLumisection)
	}
	return &Client{
		bridge:     b,
		start:      opts.Start,
		stop:       opts.Stop,
		indexer:    opts.Indexer,
		electrodes: hvlumi.AllElectrodes,
		batchSize:  opts.BatchSize,
		quiet:      opts.Quiet,
	}
}

// Query builds the bridge request for units, asking vMon and v0Set of every electrode.
func (c *Client) Query(units []string) models.DCSQuery {
	q := models.DCSQuery{
		From:    c.start,
		To:      c.stop,
		Targets: make([]models.DCSTarget, 0, 2*len(units)*len(c.electrodes)),
	}
	for _, unit := range units {
		for _, el := range c.electrodes {
			tag := chambers.Tag(unit, el)
			q.Targets = append(q.Targets,
				models.DCSTarget{Metric: hvlumi.Mon.String(), Tag: tag},
				models.DCSTarget{Metric: hvlumi.Set.String(), Tag: tag},
			)
		}
	}
	return q
}

// Batches splits units into groups of at most the configured batch size.
func (c *Client) Batches(units []string) [][]string {
	var out [][]string
	for i := 0; i < len(units); i += c.batchSize {
		end := i + c.batchSize
		if end > len(units) {
			end = len(units)
		}
		out = append(out, units[i:end])
	}
	return out
}

// FetchBatch queries the bridge for units and returns their samples keyed by unit.
// Units without any datapoint are present with an empty slice.
func (c *Client) FetchBatch(ctx context.Context, units []string) (map[string][]hvlumi.Sample, error) {
	var series []models.DCSSeries
	if err := c.bridge.PostJSON(ctx, c.Query(units), &series); err != nil {
		return nil, fmt.Errorf("dcs query for %d units: %w", len(units), err)
	}

	out := make(map[string][]hvlumi.Sample, len(units))
	for _, u := range units {
		out[u] = []hvlumi.Sample{}
	}
	for _, s := range series {
		samples, err := c.decode(s)
		if err != nil {
			return nil, err
		}
		if len(samples) == 0 {
			continue
		}
		unit := samples[0].Chamber
		out[unit] = append(out[unit], samples...)
	}
	return out, nil
}

// FetchResult holds the samples of a batched query.
type FetchResult struct {
	Samples map[string][]hvlumi.Sample
	// Failed maps the units of failed batches to their *hvlumi.FetchError.
	Failed  map[string]error
	Errors  []error // one per failed batch
}

// Fetch queries all units batch by batch. A failed batch does not stop the others;
// only a cancelled ctx aborts the fetch.
func (c *Client) Fetch(ctx context.Context, units []string) (FetchResult, error) {
	res := FetchResult{
		Samples: make(map[string][]hvlumi.Sample, len(units)),
		Failed:  make(map[string]error),
	}
	batches := c.Batches(units)
	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if !c.quiet {
			log.Printf("📡 Fetching HV data for batch %d/%d (%d units)", i+1, len(batches), len(batch))
		}
		got, err := c.FetchBatch(ctx, batch)
		if err != nil {
			log.Printf("❌ DCS batch %d/%d failed: %v", i+1, len(batches), err)
			res.Errors = append(res.Errors, err)
			for _, unit := range batch {
				res.Failed[unit] = &hvlumi.FetchError{Chamber: unit, Err: err}
			}
			continue
		}
		for unit, samples := range got {
			res.Samples[unit] = samples
		}
	}
	return res, ctx.Err()
}

// Samples implements hvlumi.SampleSource with a single-unit query.
func (c *Client) Samples(ctx context.Context, unit string) ([]hvlumi.Sample, error) {
	got, err := c.FetchBatch(ctx, []string{unit})
	if err != nil {
		return nil, err
	}
	return got[unit], nil
}

func (c *Client) decode(s models.DCSSeries) ([]hvlumi.Sample, error) {
	if len(s.Datapoints) == 0 {
		return nil, nil
	}
	unit, el, metric, err := chambers.ParseTarget(s.Target)
	if err != nil {
		return nil, fmt.Errorf("dcs response: %w", err)
	}
	out := make([]hvlumi.Sample, 0, len(s.Datapoints))
	for _, dp := range s.Datapoints {
		if dp[0] == nil || dp[1] == nil {
			continue
		}
		ts := int64(*dp[1])
		out = append(out, hvlumi.Sample{
			Chamber:     unit,
			Electrode:   el,
			Metric:      metric,
			Value:       *dp[0],
			Timestamp:   ts,
			Lumisection: c.indexer.Index(ts),
		})
	}
	return out, nil
}
