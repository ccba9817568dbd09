// Package oms resolves run metadata through the OMS bridge.
package oms

import (
	"context"
	"fmt"
	"time"

	"github.com/gemdqm/hvlumi/pkg/bridge"
	"github.com/gemdqm/hvlumi/pkg/models"
)

// TimeLayout is the UTC layout of OMS start_time and end_time.
const TimeLayout = "2006-01-02T15:04:05Z"

// Poster is the subset of bridge.Client used here.
type Poster interface {
	PostJSON(ctx context.Context, payload, out interface{}) error
}

var _ Poster = (*bridge.Client)(nil)

// Client queries run information.
type Client struct {
	bridge Poster
}

// NewClient creates an OMS client.
func NewClient(b Poster) *Client {
	return &Client{bridge: b}
}

// RunInfo returns start, stop and lumisection length of run.
func (c *Client) RunInfo(ctx context.Context, run int) (models.RunInfo, error) {
	var resp models.OMSResponse
	if err := c.bridge.PostJSON(ctx, models.OMSQuery{RunNumber: run}, &resp); err != nil {
		return models.RunInfo{}, fmt.Errorf("oms query for run %d: %w", run, err)
	}
	return ParseRunInfo(run, resp)
}

// ParseRunInfo converts an OMS answer into a RunInfo.
func ParseRunInfo(run int, resp models.OMSResponse) (models.RunInfo, error) {
	if resp.Result != "" && resp.Result != "ok" {
		return models.RunInfo{}, fmt.Errorf("oms run %d: result %q", run, resp.Result)
	}

	start, err := time.Parse(TimeLayout, resp.Data.StartTime)
	if err != nil {
		return models.RunInfo{}, fmt.Errorf("oms run %d start_time: %w", run, err)
	}
	stop, err := time.Parse(TimeLayout, resp.Data.EndTime)
	if err != nil {
		return models.RunInfo{}, fmt.Errorf("oms run %d end_time: %w", run, err)
	}

	info := models.RunInfo{
		RunNumber: run,
		Start:     start.Unix(),
		Stop:      stop.Unix(),
	}
	if resp.Data.LastLumisectionNumber > 0 && resp.Data.Duration > 0 {
		info.SecondsPerLumisection = resp.Data.Duration / float64(resp.Data.LastLumisectionNumber)
	}
	return info, nil
}
