// Package export writes evidence records as JSON or CSV.
package export
