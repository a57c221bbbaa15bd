// Package api hosts the HTTP server, middleware, and REST handlers for operator
// access. Notable routes:
//   - GET /healthz and /readyz for liveness and readiness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/proxies and POST /v1/proxies/refresh to inspect and rebuild the pool.
//   - POST /v1/scrape to resolve one profile URL with proxy rotation.
package api
