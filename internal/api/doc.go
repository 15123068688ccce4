// Package api hosts the HTTP server, middleware, and REST handlers for the
// listings scraper. Notable routes:
//   - GET / for API info and GET /scrape for the listings array.
//   - GET /health, /healthz and /readyz for platform probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /runs and /runs/{run_id}/steps for run history via the
//     RunRepository interface.
package api
