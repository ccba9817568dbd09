package processing

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemdqm/hvlumi"
	"github.com/gemdqm/hvlumi/pkg/config"
	"github.com/gemdqm/hvlumi/pkg/models"
	"github.com/gemdqm/hvlumi/pkg/webhook"
	"github.com/gemdqm/hvlumi/pkg/worker"
)

const runStart int64 = 1713414214 // 2024-04-18T04:23:34Z

type omsFake struct{ err error }

func (f omsFake) PostJSON(_ context.Context, _, out interface{}) error {
	if f.err != nil {
		return f.err
	}
	*out.(*models.OMSResponse) = models.OMSResponse{
		Result: "ok",
		Data: models.OMSRunData{
			StartTime:             "2024-04-18T04:23:34Z",
			EndTime:               "2024-04-18T04:26:54Z", // +200 s
			Duration:              200,
			LastLumisectionNumber: 8,
		},
	}
	return nil
}

// dcsFake answers one sample every 10 s per target. The G1TOP set-point of
// GE11-P-01L1 is raised between +60 and +100 s; queries touching GE11-P-02L1 fail.
type dcsFake struct{}

func (dcsFake) PostJSON(_ context.Context, payload, out interface{}) error {
	q := payload.(models.DCSQuery)
	var series []models.DCSSeries
	for _, tgt := range q.Targets {
		if strings.HasPrefix(tgt.Tag, "GE11-P-02L1") {
			return errors.New("archive timeout")
		}
		s := models.DCSSeries{Target: tgt.Metric + "," + tgt.Tag}
		for ts := q.From * 1000; ts <= q.To*1000; ts += 10000 {
			v, t := 100.0, float64(ts)
			raised := ts >= (runStart+60)*1000 && ts <= (runStart+100)*1000
			if raised && tgt.Tag == "GE11-P-01L1:HV:G1TOP" && tgt.Metric == "v0Set" {
				v = 130
			}
			s.Datapoints = append(s.Datapoints, [2]*float64{&v, &t})
		}
		series = append(series, s)
	}
	*out.(*[]models.DCSSeries) = series
	return nil
}

func newProcessor(t *testing.T, cfg *config.Config, wh *webhook.Client) *RunProcessor {
	pool := worker.New(worker.Options{Workers: 2, Quiet: true})
	t.Cleanup(pool.Shutdown)
	return NewRunProcessor(Options{Config: cfg, DCS: dcsFake{}, OMS: omsFake{}, Pool: pool, Webhook: wh})
}

func testConfig(dir string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Chambers = config.StringList{"GE11-P-01L1", "GE11-P-02L1", "GE11-P-03L1"}
	cfg.BatchSize = 1
	cfg.OutputFolder = dir
	cfg.Quiet = true
	return cfg
}

func TestProcess(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.Plots = true

	res, err := newProcessor(t, cfg, nil).Process(context.Background(), "req-1", 379765)
	require.NoError(t, err)

	assert.Equal(t, runStart, res.Info.Start)
	assert.Len(t, res.Grid, 11)

	bad := res.Report.BadLumisections
	assert.Equal(t, []int{2, 3, 4}, bad["GE11-P-01L1"])
	assert.Equal(t, []int{hvlumi.InvalidLumisection}, bad["GE11-P-02L1"])
	assert.Equal(t, []int{}, bad["GE11-P-03L1"])

	var ferr *hvlumi.FetchError
	require.ErrorAs(t, res.Report.Results[1].Err, &ferr)
	assert.Equal(t, "GE11-P-02L1", ferr.Chamber)

	sum := res.Summary
	assert.Equal(t, "req-1", sum.ID)
	assert.Equal(t, []string{"GE11-P-02L1"}, sum.InvalidChambers)
	require.Len(t, sum.Errors, 1)
	assert.Contains(t, sum.Errors[0], "archive timeout")
	require.Len(t, sum.Summary, 2)
	assert.InDelta(t, 700/hvlumi.DividerResistance, sum.Summary[1].MonEquivalentCurrentMean, 1e-9)

	assert.Contains(t, res.Files, filepath.Join(dir, "HVSummary_379765.csv"))
	assert.Contains(t, res.Files, filepath.Join(dir, "BadHVLumi_379765.json"))
	assert.Contains(t, res.Files, filepath.Join(dir, "plots", "GE11-P-01L1.png"))

	raw, err := os.ReadFile(filepath.Join(dir, "BadHVLumi_379765.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"GE11-P-01L1":[2,3,4],"GE11-P-02L1":[-1],"GE11-P-03L1":[]}`, string(raw))
}

func TestProcessOMSLumisectionLength(t *testing.T) {
	cfg := testConfig("")
	cfg.Chambers = config.StringList{"GE11-P-01L1"}
	cfg.UseOMSLumisection = true

	// 200 s over 8 lumisections: 60 s -> LS 2, 100 s -> LS 4
	res, err := newProcessor(t, cfg, nil).Process(context.Background(), "req-2", 379765)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 4}, res.Report.BadLumisections["GE11-P-01L1"])
	assert.Empty(t, res.Files)
}

func TestProcessSendsWebhook(t *testing.T) {
	got := make(chan models.RunReport, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var rep models.RunReport
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&rep))
		got <- rep
	}))
	defer srv.Close()

	cfg := testConfig("")
	cfg.Chambers = config.StringList{"GE11-P-03L1"}
	_, err := newProcessor(t, cfg, webhook.NewClient(srv.URL, true)).Process(context.Background(), "req-3", 379765)
	require.NoError(t, err)

	rep := <-got
	assert.Equal(t, 379765, rep.RunNumber)
	assert.Equal(t, map[string][]int{"GE11-P-03L1": {}}, rep.BadLumisections)
}

func TestProcessOMSFailure(t *testing.T) {
	pool := worker.New(worker.Options{Workers: 1, Quiet: true})
	defer pool.Shutdown()

	down := errors.New("oms bridge down")
	p := NewRunProcessor(Options{Config: testConfig(""), DCS: dcsFake{}, OMS: omsFake{err: down}, Pool: pool})
	_, err := p.Process(context.Background(), "req-4", 1)
	assert.ErrorIs(t, err, down)
}

func TestBuildRunReportSanitizesNaN(t *testing.T) {
	t.Parallel()

	report := hvlumi.NewReport([]hvlumi.ChamberResult{{
		ID: "GE21-M-01L1A", Valid: true, MeanMon: 10, StdMon: math.NaN(), MeanSet: 10, StdSet: math.NaN(),
	}})
	rr := BuildRunReport("id", 1, 5, report, nil)
	require.Len(t, rr.Summary, 1)
	assert.Zero(t, rr.Summary[0].MonEquivalentCurrentStd)
	assert.Equal(t, []string{}, rr.InvalidChambers)
	assert.Nil(t, rr.Errors)

	_, err := json.Marshal(rr)
	assert.NoError(t, err)
}
