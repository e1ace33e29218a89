// Package query validates evidence queries and fills in their defaults
// before they are handed to a storage backend.
package query
