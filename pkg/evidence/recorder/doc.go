// Package recorder turns decision results into evidence records and writes
// them to storage without blocking the caller.
//
// Record enqueues onto a buffered channel drained by a single worker
// goroutine. When the buffer is full the record is dropped and a warning is
// logged; a slow audit store must never stall credit decisions. Close stops
// accepting records and waits for the queue to drain.
package recorder
