package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemdqm/hvlumi/internal/processing"
	"github.com/gemdqm/hvlumi/pkg/models"
)

type fakeProcessor struct{}

func (fakeProcessor) Process(_ context.Context, requestID string, run int) (*processing.Result, error) {
	if run == 13 {
		return nil, errors.New("run not found in OMS")
	}
	return &processing.Result{Summary: models.RunReport{
		ID:              requestID,
		RunNumber:       run,
		BadLumisections: map[string][]int{"GE11-P-01L1": {4, 5}},
	}}, nil
}

func newMux(t *testing.T) (*http.ServeMux, *RunHandler) {
	jobs := NewJobs()
	runs := NewRunHandler(context.Background(), jobs, fakeProcessor{}, true)
	t.Cleanup(runs.Wait)

	mux := http.NewServeMux()
	mux.Handle("/runs", runs)
	mux.Handle("GET /runs/{id}", NewStatusHandler(jobs))
	return mux, runs
}

func submit(t *testing.T, mux http.Handler, body string) (int, map[string]interface{}) {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader(body)))
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func status(t *testing.T, mux http.Handler, id string) (int, models.JobStatus) {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/"+id, nil))
	var st models.JobStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	return rec.Code, st
}

func TestSubmitRun(t *testing.T) {
	mux, runs := newMux(t)

	code, resp := submit(t, mux, `{"run_number": 379765}`)
	require.Equal(t, http.StatusAccepted, code)
	id, _ := resp["request_id"].(string)
	require.NotEmpty(t, id)

	runs.Wait()
	code, st := status(t, mux, id)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, StateDone, st.State)
	require.NotNil(t, st.Report)
	assert.Equal(t, []int{4, 5}, st.Report.BadLumisections["GE11-P-01L1"])
}

func TestSubmitRunFailure(t *testing.T) {
	mux, runs := newMux(t)

	_, resp := submit(t, mux, `{"run_number": 13}`)
	runs.Wait()

	_, st := status(t, mux, resp["request_id"].(string))
	assert.Equal(t, StateFailed, st.State)
	assert.Equal(t, "run not found in OMS", st.Error)
	assert.Nil(t, st.Report)
}

func TestSubmitRunRejectsBadRequests(t *testing.T) {
	mux, _ := newMux(t)

	code, resp := submit(t, mux, `{"run_number": 0}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "run_number must be positive", resp["error"])

	code, _ = submit(t, mux, `not json`)
	assert.Equal(t, http.StatusBadRequest, code)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStatusUnknown(t *testing.T) {
	mux, _ := newMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
