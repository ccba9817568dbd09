package worker

import (
	"log"
	"sync"
	"time"

	"github.com/gemdqm/hvlumi"
	"github.com/gemdqm/hvlumi/pkg/models"
)

// Pool analyses chambers concurrently
type Pool struct {
	jobs     chan models.WorkItem
	results  chan models.WorkResult
	workers  int
	shutdown chan struct{}
	once     sync.Once
	batchMu  sync.Mutex
	wg       sync.WaitGroup
	quiet    bool
}

// AnalyzeFunc analyses the samples of one chamber
type AnalyzeFunc func(chamber string, samples []hvlumi.Sample) hvlumi.ChamberResult

// Options holds configuration for creating a new worker pool
type Options struct {
	Workers int
	Quiet   bool
}

// New creates a new worker pool and starts its workers
func New(opts Options) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = 5
	}

	// jobs/results buffered at twice the worker count so producers rarely block
	pool := &Pool{
		jobs:     make(chan models.WorkItem, opts.Workers*2),
		results:  make(chan models.WorkResult, opts.Workers*2),
		workers:  opts.Workers,
		shutdown: make(chan struct{}),
		quiet:    opts.Quiet,
	}

	pool.start()
	return pool
}

func (p *Pool) start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	if !p.quiet {
		log.Printf("🔧 Worker pool started with %d workers", p.workers)
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case job := <-p.jobs:
			result := p.processJob(job)
			select {
			case p.results <- result:
			case <-p.shutdown:
				return
			}

		case <-p.shutdown:
			return
		}
	}
}

func (p *Pool) processJob(job models.WorkItem) models.WorkResult {
	startTime := time.Now()
	res := job.Analyze(job.Chamber, job.Samples)
	processingTime := time.Since(startTime)

	if !p.quiet {
		log.Printf("✅ %s analysed in %v: valid=%t, %d bad lumisections",
			job.Chamber, processingTime, res.Valid, len(res.BadLumisections))
	}

	return models.WorkResult{
		ID:             job.ID,
		RequestID:      job.RequestID,
		RunNumber:      job.RunNumber,
		Result:         res,
		ProcessingTime: processingTime,
	}
}

// SubmitJob submits a job to the worker pool
func (p *Pool) SubmitJob(job models.WorkItem) {
	select {
	case p.jobs <- job:
	default:
		if !p.quiet {
			log.Printf("⚠️  Worker pool jobs channel full, job may be delayed")
		}
		p.jobs <- job // block until space available
	}
}

// AnalyzeAll runs analyze on every chamber and returns the results in submission
// order. Calls are serialised; jobs are fed from a separate goroutine so that a
// batch larger than the channel buffers cannot deadlock against collection.
func (p *Pool) AnalyzeAll(requestID string, run int, chambers []string, samples map[string][]hvlumi.Sample, analyze AnalyzeFunc) []hvlumi.ChamberResult {
	p.batchMu.Lock()
	defer p.batchMu.Unlock()

	go func() {
		for i, ch := range chambers {
			p.SubmitJob(models.WorkItem{
				ID:        i,
				RequestID: requestID,
				RunNumber: run,
				Chamber:   ch,
				Samples:   samples[ch],
				Analyze:   analyze,
				StartTime: time.Now(),
			})
		}
	}()

	out := make([]hvlumi.ChamberResult, len(chambers))
	for range chambers {
		r := <-p.results
		out[r.ID] = r.Result
	}
	return out
}

// Shutdown gracefully shuts down the worker pool
func (p *Pool) Shutdown() {
	p.once.Do(func() {
		if !p.quiet {
			log.Printf("🛑 Shutting down worker pool...")
		}
		close(p.shutdown)
		p.wg.Wait()
	})
}
