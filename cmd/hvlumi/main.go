package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gemdqm/hvlumi/internal/processing"
	"github.com/gemdqm/hvlumi/internal/utils"
	"github.com/gemdqm/hvlumi/pkg/bridge"
	"github.com/gemdqm/hvlumi/pkg/config"
	"github.com/gemdqm/hvlumi/pkg/server"
	"github.com/gemdqm/hvlumi/pkg/webhook"
	"github.com/gemdqm/hvlumi/pkg/worker"
)

const usage = `Usage: hvlumi [flags] <run_number> <output_folder>
       hvlumi -server [flags]

Finds the lumisections of a run during which the GEM chamber HV did not follow
its set-point. DCS_BRIDGE and OMS_BRIDGE must point to the bridge services; they
are read from the environment or from a .env file.

Flags:
`

func main() {
	cfg, serverConfig, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		log.Fatal("❌ ", err)
	}

	if cfg.HTTPServer {
		runServer(cfg, serverConfig)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runOnce(ctx, cfg); err != nil {
		log.Fatal("❌ ", err)
	}
}

// parseFlags parses args into the analysis and server configuration
func parseFlags(args []string, out io.Writer) (*config.Config, *config.ServerConfig, error) {
	cfg := config.DefaultConfig()
	serverConfig := config.DefaultServerConfig()
	var envFiles config.StringList

	fs := flag.NewFlagSet("hvlumi", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() {
		fmt.Fprint(out, usage)
		fs.PrintDefaults()
	}

	fs.Float64Var(&cfg.Threshold, "thr", cfg.Threshold, "Threshold on |Mon - Set| equivalent current (uA)")
	fs.Int64Var(&cfg.Granularity, "granularity", cfg.Granularity, "Resampling step (ms)")
	fs.Float64Var(&cfg.SecondsPerLumisection, "lumi-seconds", cfg.SecondsPerLumisection, "Nominal lumisection length (s)")
	fs.BoolVar(&cfg.UseOMSLumisection, "oms-lumi", cfg.UseOMSLumisection, "Derive the lumisection length from OMS duration/last lumisection")
	fs.Var(&cfg.Chambers, "chamber", "Chambers to analyse, comma separated or repeated (default all GE1/1 and GE2/1)")
	fs.UintVar(&cfg.Threads, "threads", cfg.Threads, "Number of worker threads")
	fs.IntVar(&cfg.BatchSize, "batch", cfg.BatchSize, "Chambers per DCS bridge request")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Bridge request timeout")
	fs.BoolVar(&cfg.Plots, "plots", cfg.Plots, "Write a current plot per chamber to <output_folder>/plots")
	fs.StringVar(&cfg.WebhookURL, "webhook", cfg.WebhookURL, "POST the run report to this URL (env "+config.EnvWebhook+")")
	fs.Var(&envFiles, "env", "Env files to load instead of .env")
	fs.BoolVar(&cfg.HTTPServer, "server", cfg.HTTPServer, "Start HTTP server")
	fs.StringVar(&serverConfig.Port, "port", serverConfig.Port, "HTTP server port")
	fs.BoolVar(&cfg.Quiet, "q", cfg.Quiet, "Quiet mode")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	if err := cfg.LoadEnv(envFiles...); err != nil {
		return nil, nil, err
	}

	if cfg.HTTPServer {
		serverConfig.WorkerCount = int(cfg.Threads)
		serverConfig.WebhookURL = cfg.WebhookURL
		serverConfig.OutputFolder = cfg.OutputFolder
		if fs.NArg() > 0 {
			serverConfig.OutputFolder = fs.Arg(0)
		}
	} else {
		if fs.NArg() != 2 {
			fs.Usage()
			return nil, nil, fmt.Errorf("expected <run_number> <output_folder>, got %d arguments", fs.NArg())
		}
		run, err := strconv.Atoi(fs.Arg(0))
		if err != nil || run <= 0 {
			return nil, nil, fmt.Errorf("invalid run number %q", fs.Arg(0))
		}
		cfg.RunNumber = run
		cfg.OutputFolder = fs.Arg(1)
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, serverConfig, nil
}

// runOnce analyses cfg.RunNumber and writes the artifacts
func runOnce(ctx context.Context, cfg *config.Config) error {
	pool := worker.New(worker.Options{Workers: int(cfg.Threads), Quiet: cfg.Quiet})
	defer pool.Shutdown()

	var wh *webhook.Client
	if cfg.WebhookURL != "" {
		wh = webhook.NewClient(cfg.WebhookURL, cfg.Quiet)
	}

	processor := processing.NewRunProcessor(processing.Options{
		Config:  cfg,
		DCS:     bridge.NewClient(cfg.DCSURL, cfg.Timeout),
		OMS:     bridge.NewClient(cfg.OMSURL, cfg.Timeout),
		Pool:    pool,
		Webhook: wh,
	})

	res, err := processor.Process(ctx, utils.GenerateID(), cfg.RunNumber)
	if err != nil {
		return err
	}

	for _, e := range res.Summary.Errors {
		log.Printf("⚠️  %s", e)
	}
	for _, f := range res.Files {
		if !cfg.Quiet {
			log.Printf("💾 Wrote %s", f)
		}
	}
	return nil
}

func runServer(cfg *config.Config, serverConfig *config.ServerConfig) {
	srv := server.New(server.Options{
		Config:       cfg,
		ServerConfig: serverConfig,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	select {
	case err := <-errc:
		if err != nil {
			log.Fatal("❌ Failed to start server:", err)
		}
		return
	case <-ctx.Done():
		log.Println("🛑 Received shutdown signal...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
}
