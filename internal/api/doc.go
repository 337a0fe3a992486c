// Package api hosts the operator HTTP server. Routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/status for the live crawl cursor.
//   - GET /v1/days and /v1/days/{day} for recorded day outcomes via the
//     store.RunRepository interface.
package api
