package models

import (
	"time"

	"github.com/gemdqm/hvlumi"
)

// DCSTarget selects one archived HV quantity.
type DCSTarget struct {
	Metric string `json:"metric"`
	Tag    string `json:"tag"`
}

// DCSQuery is the body posted to the DCS bridge. From and To are in seconds.
type DCSQuery struct {
	From    int64       `json:"from"`
	To      int64       `json:"to"`
	Targets []DCSTarget `json:"targets"`
}

// DCSSeries is one entry of the DCS bridge answer, e.g.
// {"target": "vMon,GE11-P-16L1:HV:DRIFT", "datapoints": [[value, tsMillis], ...]}.
// Values may be null when the archive has a hole.
type DCSSeries struct {
	Target     string        `json:"target"`
	Datapoints [][2]*float64 `json:"datapoints"`
}

// OMSQuery is the body posted to the OMS bridge.
type OMSQuery struct {
	RunNumber int `json:"run-number"`
}

// OMSRunData holds the run attributes used by the analysis.
type OMSRunData struct {
	StartTime             string  `json:"start_time"`
	EndTime               string  `json:"end_time"`
	Duration              float64 `json:"duration"`
	LastLumisectionNumber int     `json:"last_lumisection_number"`
}

// OMSResponse is the OMS bridge answer.
type OMSResponse struct {
	Data   OMSRunData `json:"data"`
	Result string     `json:"result"`
}

// RunInfo is the run range resolved from OMS, in seconds.
type RunInfo struct {
	RunNumber             int
	Start                 int64
	Stop                  int64
	SecondsPerLumisection float64 // 0 when OMS has no lumisection count
}

// WorkItem is one chamber queued for analysis.
type WorkItem struct {
	ID        int
	RequestID string
	RunNumber int
	Chamber   string
	Samples   []hvlumi.Sample
	Analyze   func(chamber string, samples []hvlumi.Sample) hvlumi.ChamberResult
	StartTime time.Time
}

// WorkResult is the analysis of one chamber.
type WorkResult struct {
	ID             int
	RequestID      string
	RunNumber      int
	Result         hvlumi.ChamberResult
	ProcessingTime time.Duration
}

// ChamberSummaryRow is the JSON form of a summary table row.
type ChamberSummaryRow struct {
	ID                       string  `json:"ID"`
	MonEquivalentCurrentMean float64 `json:"MonEquivalentCurrent_mean"`
	MonEquivalentCurrentStd  float64 `json:"MonEquivalentCurrent_std"`
	SetEquivalentCurrentMean float64 `json:"SetEquivalentCurrent_mean"`
	SetEquivalentCurrentStd  float64 `json:"SetEquivalentCurrent_std"`
}

// RunReport is the payload returned by the HTTP mode and posted to the webhook.
type RunReport struct {
	ID              string              `json:"id"`
	RunNumber       int                 `json:"run_number"`
	Time            string              `json:"time"`
	Threshold       float64             `json:"threshold_ua"`
	Summary         []ChamberSummaryRow `json:"summary"`
	BadLumisections map[string][]int    `json:"bad_lumisections"`
	InvalidChambers []string            `json:"invalid_chambers"`
	Errors          []string            `json:"errors,omitempty"`
}

// JobStatus tracks a run submitted through the HTTP mode.
type JobStatus struct {
	RequestID string     `json:"request_id"`
	RunNumber int        `json:"run_number"`
	State     string     `json:"state"`
	Error     string     `json:"error,omitempty"`
	Report    *RunReport `json:"report,omitempty"`
}
