// Package retention deletes evidence records older than a configured number
// of days, either on demand (Pruner.Prune) or on a cron schedule
// (Scheduler, github.com/robfig/cron/v3). Records can be archived to a JSON
// file before deletion.
package retention
