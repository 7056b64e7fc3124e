// Package api serves stored search runs as read-only JSON over HTTP.
//
// Routes:
//
//	GET /healthz
//	GET /api/queries
//	GET /api/runs?query=q
//	GET /api/runs/{id}
//	GET /api/compare?query=q
//	GET /api/listings/{identifier}
package api
