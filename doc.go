// Package warden is the trust-and-resource-path layer of a web application
// runtime.
//
// A [Runtime] bundles the components and is created once at startup:
//
//	rt, err := warden.Open("warden.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer rt.Close()
//
//	if err := rt.Prepare(); err != nil { // create logs/, tmp/, plugins/ ...
//		log.Fatal(err)
//	}
//
// # Components
//
//   - Paths maps directory kinds (logs, templates, plugins, ...) to locations
//     under the base directory and applies the routing escapes: "~" for a
//     path used as-is and "_plugin/" for plugin assets.
//   - CSRF issues and verifies stateless tokens bound to the client IP, a
//     hash of its user agent and an expiry.
//   - Audit appends JSON lines to logs/<name>.log.
//   - Errors keeps the last ten reported errors and prints each one.
//   - Stats holds the process-wide counters, exported to Prometheus.
//   - Janitor sweeps stale files out of tmp/.
//
// The configuration lives in a [config.Store]; the CSRF secret is read from
// it on every call, so hot reloads take effect immediately.
//
// The HTTP surface and the command line tool are in internal/server and
// cmd/warden.
package warden
