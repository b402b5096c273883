// Package api hosts the optional status server that runs next to a screening
// batch. Routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/run for the live run snapshot.
package api
