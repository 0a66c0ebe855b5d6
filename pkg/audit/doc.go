// Package audit appends JSON audit records to files under the logs directory.
//
// Each record is one line of <logs>/<name>.log ("audit.log" when the name
// is empty). The line holds the caller's payload plus a createdAt timestamp
// (RFC 3339, UTC, nanoseconds) and the log name. Credentials such as
// password or token fields are removed before encoding.
//
//	a := audit.New(resolver, counters, audit.WithLogger(log), audit.WithReporter(ring))
//	a.Record(ctx, "logins", map[string]any{"user": "jane", "ip": ip})
//
// Files are opened in append mode and every record is a single write
// followed by fsync, so concurrent writers never interleave lines and a
// returned Append has reached the disk. Nothing in this package truncates
// or rewrites a log.
//
// Record is best effort and never reports failures to the caller; use
// Append when the error matters.
package audit
