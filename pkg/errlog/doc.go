// Package errlog keeps a bounded, in-memory history of reported errors.
//
// Every call to [Ring.Report] prints one diagnostic line, appends a
// [Record] and increments the shared error counter. Only the most recent
// records are kept (ten by default); older ones are evicted in FIFO order
// while the counter keeps growing.
//
//	ring := errlog.New(counters, errlog.WithLogger(log))
//	ring.Report(err, "upload", r.URL.Path)
//
//	for _, rec := range ring.Records() {
//		fmt.Println(errlog.Format(rec))
//	}
//
// Errors created with github.com/pkg/errors print their stack trace under
// the line. Messages matching the skip pattern (broken pipes and similar
// transport noise) are stored and counted but not printed.
package errlog
