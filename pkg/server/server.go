package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gemdqm/hvlumi/internal/processing"
	"github.com/gemdqm/hvlumi/pkg/bridge"
	"github.com/gemdqm/hvlumi/pkg/config"
	"github.com/gemdqm/hvlumi/pkg/handlers"
	"github.com/gemdqm/hvlumi/pkg/webhook"
	"github.com/gemdqm/hvlumi/pkg/worker"
)

// Server represents the HTTP server with all dependencies
type Server struct {
	config       *config.Config
	serverConfig *config.ServerConfig
	workerPool   *worker.Pool
	runHandler   *handlers.RunHandler
	httpServer   *http.Server
	cancel       context.CancelFunc
}

// Options holds configuration for creating a new server
type Options struct {
	Config       *config.Config
	ServerConfig *config.ServerConfig
	// Processor overrides the bridge-backed run processor.
	Processor handlers.Processor
}

// New creates a new server instance
func New(opts Options) *Server {
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	if opts.ServerConfig == nil {
		opts.ServerConfig = config.DefaultServerConfig()
	}

	workerPool := worker.New(worker.Options{
		Workers: opts.ServerConfig.WorkerCount,
		Quiet:   opts.Config.Quiet,
	})

	processor := opts.Processor
	if processor == nil {
		cfg := *opts.Config
		if opts.ServerConfig.OutputFolder != "" {
			cfg.OutputFolder = opts.ServerConfig.OutputFolder
		}
		var wh *webhook.Client
		if url := opts.ServerConfig.WebhookURL; url != "" {
			wh = webhook.NewClient(url, cfg.Quiet)
		}
		processor = processing.NewRunProcessor(processing.Options{
			Config:  &cfg,
			DCS:     bridge.NewClient(cfg.DCSURL, cfg.Timeout),
			OMS:     bridge.NewClient(cfg.OMSURL, cfg.Timeout),
			Pool:    workerPool,
			Webhook: wh,
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	server := &Server{
		config:       opts.Config,
		serverConfig: opts.ServerConfig,
		workerPool:   workerPool,
		runHandler:   handlers.NewRunHandler(ctx, handlers.NewJobs(), processor, opts.Config.Quiet),
		cancel:       cancel,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures HTTP routes and handlers
func (s *Server) setupRoutes() {
	mux := http.NewServeMux()

	mux.Handle("/runs", logRequests("runs", s.runHandler))
	mux.Handle("GET /runs/{id}", logRequests("status", handlers.NewStatusHandler(s.runHandler.Jobs())))
	mux.HandleFunc("/health", s.healthHandler)

	s.httpServer = &http.Server{
		Addr:         ":" + s.serverConfig.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Handler returns the routed handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// healthHandler provides a simple health check endpoint
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Println("🚀 Starting HTTP server on port", s.serverConfig.Port)
	log.Println("📡 Endpoints available:")
	log.Printf("  - Submit: POST http://localhost:%s/runs", s.serverConfig.Port)
	log.Printf("  - Status: GET  http://localhost:%s/runs/{id}", s.serverConfig.Port)
	log.Printf("  - Health: GET  http://localhost:%s/health", s.serverConfig.Port)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, cancels running analyses and waits for them
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("🛑 Shutting down server...")

	err := s.httpServer.Shutdown(ctx)
	s.cancel()
	s.runHandler.Wait()
	s.workerPool.Shutdown()

	log.Println("✅ Server shutdown complete")
	return err
}

// statusRecorder captures the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// logRequests logs method, path, status and duration of every request
func logRequests(name string, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		handler.ServeHTTP(rec, r)
		log.Printf("🌐 %s %s %s -> %d in %v", name, r.Method, r.URL.Path, rec.statusCode, time.Since(start))
	})
}
