// Package server exposes a warden.Runtime over HTTP.
//
// Routes:
//
//	GET  /csrf           issue a token for the caller
//	POST /audit/{name}   append the JSON body to logs/<name>.log (CSRF protected)
//	GET  /debug/errors   recent errors and counters (server.debug only)
//	GET  /debug/route    resolve ?path=&dir= through the path resolver (server.debug only)
//	GET  /metrics        Prometheus metrics
//	GET  /health/live    liveness
//	GET  /health/ready   directory and configuration checks
//
// Run serves the handler and runs the janitor and config watcher next to it,
// shutting everything down on context cancellation.
package server
