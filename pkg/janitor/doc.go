// Package janitor periodically removes stale entries from the tmp directory.
//
// Run schedules Sweep with robfig/cron; Sweep can also be called directly.
// Only top-level entries of tmp are considered, and an entry is removed
// (recursively) once its modification time is older than the max age.
// Failures are passed to the Reporter with a stack trace attached.
package janitor
