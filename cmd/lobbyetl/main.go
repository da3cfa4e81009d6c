// Command lobbyetl downloads the published Canadian lobbying registrations
// archive, extracts and normalizes the primary CSV, filters rows to the last
// two years, and loads them into the lobby_staging table.
//
// Connection methods (-method):
//
//	auto     automatic fallback: local → remote postgres → REST API
//	local    local development database only
//	remote   remote postgres only (tries the pooler port, then direct)
//	rest     REST data API only (works through firewalls)
//
// Exits 0 on success and 1 on any fatal condition.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"lobbyetl/internal/config"
	"lobbyetl/internal/metrics"
	"lobbyetl/internal/metrics/prompush"
	"lobbyetl/internal/pipeline"
)

// runPipeline is a seam so tests can substitute the pipeline.
var runPipeline = pipeline.Run

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	os.Exit(run(cfg))
}

// run executes the pipeline and returns the process exit code. Deferred work,
// the final metrics push included, completes on both the success and failure
// paths before main exits.
func run(cfg *config.Config) int {
	initMetrics(cfg)
	defer func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := runPipeline(ctx, cfg, os.Stdout); err != nil {
		if ctx.Err() != nil {
			fmt.Fprintf(os.Stderr, "interrupted: %v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "etl failed: %v\n", err)
		}
		return 1
	}
	return 0
}

func initMetrics(cfg *config.Config) {
	switch cfg.MetricsBackend {
	case "pushgateway":
		b, err := prompush.NewBackend("lobbyetl", cfg.PushgatewayURL)
		if err != nil {
			log.Printf("metrics: failed to init pushgateway backend: %v; using nop", err)
			return
		}
		metrics.SetBackend(b)
	case "", "none":
		// metrics disabled; nop backend remains
	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", cfg.MetricsBackend)
	}
}
