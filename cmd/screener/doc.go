// Package main hosts the batch screener entrypoint.
//
// Architecture overview:
//   - CLI: cobra commands in package cmd load configuration through Viper (file, SCREENER_* env vars, flags), build
//     the zap logger and hand both to internal/app, which constructs every long-lived service.
//   - Engine: internal/orchestrator acquires the baseline series, restores progress from the checkpoint when resume
//     is enabled, and streams the remaining tickers through a bounded queue to a fixed worker pool. Each worker waits
//     on the rate limiter, fetches the series via the Yahoo client, analyzes it and optionally enriches the result.
//   - Persistence: checkpoints are checksummed JSON envelopes written through a storage backend (local file, GCS,
//     Postgres or memory) every checkpoint_cadence completions and once more at the end, including after SIGINT.
//   - Observability: zap logs carry the run ID; Prometheus counters track items, checkpoint saves and rate limit
//     waits; the progress hub batches lifecycle events for the log and metrics sinks; an optional chi server exposes
//     /healthz, /readyz, /metrics and /v1/run.
//
// Quick checklist:
//   - Universe: --universe tickers.txt (one symbol per line, # comments) or screen.tickers in the config file.
//   - Pacing: --workers and --delay; the run cannot finish faster than tickers*delay/workers.
//   - Restart after an interruption with the same command; use "screener clear" to force a full re-run.
package main
