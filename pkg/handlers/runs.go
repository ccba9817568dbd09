package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gemdqm/hvlumi/internal/processing"
	"github.com/gemdqm/hvlumi/internal/utils"
	"github.com/gemdqm/hvlumi/pkg/models"
)

// Job states reported by GET /runs/{id}.
const (
	StateQueued  = "queued"
	StateRunning = "running"
	StateDone    = "done"
	StateFailed  = "failed"
)

// Processor analyses one run
type Processor interface {
	Process(ctx context.Context, requestID string, run int) (*processing.Result, error)
}

// Jobs keeps the status of every submitted run
type Jobs struct {
	mu   sync.RWMutex
	jobs map[string]*models.JobStatus
}

// NewJobs creates an empty job store
func NewJobs() *Jobs {
	return &Jobs{jobs: make(map[string]*models.JobStatus)}
}

// Get returns a copy of the status of id
func (j *Jobs) Get(id string) (models.JobStatus, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	st, ok := j.jobs[id]
	if !ok {
		return models.JobStatus{}, false
	}
	return *st, true
}

func (j *Jobs) update(id string, fn func(*models.JobStatus)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if st, ok := j.jobs[id]; ok {
		fn(st)
	}
}

func (j *Jobs) add(st *models.JobStatus) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.jobs[st.RequestID] = st
}

// RunRequest is the body of POST /runs
type RunRequest struct {
	RunNumber int `json:"run_number"`
}

// RunHandler accepts runs for asynchronous analysis
type RunHandler struct {
	ctx       context.Context
	jobs      *Jobs
	processor Processor
	quiet     bool
	wg        sync.WaitGroup
}

// NewRunHandler creates a handler whose analyses are cancelled with ctx
func NewRunHandler(ctx context.Context, jobs *Jobs, processor Processor, quiet bool) *RunHandler {
	return &RunHandler{
		ctx:       ctx,
		jobs:      jobs,
		processor: processor,
		quiet:     quiet,
	}
}

// ServeHTTP implements the http.Handler interface
func (h *RunHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	setupCORS(w)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}

	if req.RunNumber <= 0 {
		writeError(w, "run_number must be positive", http.StatusBadRequest)
		return
	}

	requestID := utils.GenerateID()
	status := &models.JobStatus{RequestID: requestID, RunNumber: req.RunNumber, State: StateQueued}
	h.jobs.add(status)

	h.wg.Add(1)
	go h.processAsync(requestID, req.RunNumber)

	if !h.quiet {
		log.Printf("HTTP Request received - ID: %s, Run: %d", requestID, req.RunNumber)
	}

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":    true,
		"request_id": requestID,
		"run_number": req.RunNumber,
		"message":    "Processing started",
	})
}

// processAsync analyses run and records the outcome
func (h *RunHandler) processAsync(requestID string, run int) {
	defer h.wg.Done()

	h.jobs.update(requestID, func(st *models.JobStatus) { st.State = StateRunning })

	res, err := h.processor.Process(h.ctx, requestID, run)
	if err != nil {
		log.Printf("❌ Run %d failed - ID: %s: %v", run, requestID, err)
		h.jobs.update(requestID, func(st *models.JobStatus) {
			st.State = StateFailed
			st.Error = err.Error()
		})
		return
	}

	h.jobs.update(requestID, func(st *models.JobStatus) {
		st.State = StateDone
		st.Report = &res.Summary
	})
}

// Jobs returns the job store of h
func (h *RunHandler) Jobs() *Jobs {
	return h.jobs
}

// Wait blocks until every accepted run has finished
func (h *RunHandler) Wait() {
	h.wg.Wait()
}

// StatusHandler serves GET /runs/{id}
type StatusHandler struct {
	jobs *Jobs
}

// NewStatusHandler creates a status handler over jobs
func NewStatusHandler(jobs *Jobs) *StatusHandler {
	return &StatusHandler{jobs: jobs}
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	setupCORS(w)

	st, ok := h.jobs.Get(r.PathValue("id"))
	if !ok {
		writeError(w, "Unknown request id", http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(st)
}

func setupCORS(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// writeError writes an error response
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
