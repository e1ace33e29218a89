// Package evidence keeps an audit trail of credit decisions.
//
// Every evaluation served by arbiter can be turned into an immutable
// evidence Record: which workflow and version ran, the decision, score,
// flags and executed rules, any runtime errors and warnings, and how long
// the evaluation took. Applicant data itself is never persisted; the record
// carries a SHA-256 hash of its canonical JSON form instead, so an auditor
// holding the original input can prove which record it produced.
//
// # Layers
//
//  1. recorder: builds records from DecisionResults and writes them
//     asynchronously through a buffered channel.
//  2. storage: persists records (in-memory for tests, SQLite for production).
//  3. query: validates and defaults filters before they reach storage.
//  4. retention: deletes records older than the retention window on a cron
//     schedule.
//  5. export: writes records as JSON or CSV.
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStorage(storage.DefaultSQLiteConfig())
//	if err != nil {
//		return err
//	}
//	rec := recorder.New(store, recorder.DefaultConfig(), logger)
//	defer rec.Close()
//
//	result, _ := eng.Execute(ctx, def, applicant)
//	rec.Record(ctx, recorder.Entry{
//		Workflow: def,
//		Input:    applicant,
//		Result:   result,
//	})
package evidence
