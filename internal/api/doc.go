// Package api is the HTTP surface of the render service.
//
//	POST /v1/jobs        submit a job (runs in process or goes to the queue)
//	GET  /v1/jobs        recent jobs
//	GET  /v1/jobs/{id}   one job
//	GET  /healthz        liveness and dependency checks
//	GET  /metrics        Prometheus metrics
package api
