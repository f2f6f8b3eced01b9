// Package api exposes the HTTP interface for the deflection service. Notable
// routes:
//   - POST /api/v1/calculate-deflection/ submits a batch and returns 202; the
//     calculation runs asynchronously and reports via callback.
//   - GET /api/health/ for liveness probes.
//   - GET /metrics for Prometheus scraping.
package api
