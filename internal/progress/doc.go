// Package progress carries screener run events from the orchestrator to
// pluggable sinks. Emit never blocks the run; events are batched on a
// background goroutine and fanned out to sinks such as structured logs and
// Prometheus collectors.
package progress
