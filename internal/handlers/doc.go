// Package handlers provides the operations HTTP listener.
//
// Endpoints:
//   - /metrics: Prometheus exposition
//   - /health, /healthz: JSON status with intake, catalog and memory details
//   - /livez, /readyz: Kubernetes probes; ready after the first good poll
//   - /version: build information
//   - GET /failed: failed files with their diagnostics
//   - POST /failed/{name}/requeue: move a failed file back to intake
//
// The photo API itself is served elsewhere.
package handlers
