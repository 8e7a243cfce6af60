// Package api hosts the HTTP trigger for the crawl orchestrator. Notable
// routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /api/v1/crawl?max_jobs=N runs one batch and returns its summary.
//   - POST /api/v1/cleanup and /api/v1/requeue?status=FAILED for maintenance.
//   - GET /api/v1/stats for the job status breakdown and content statistics.
package api
