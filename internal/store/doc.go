// Package store persists sessions, per-tick data points, and session
// summaries in an embedded DuckDB database, and serves the aggregate
// queries the analysis layer runs over them.
package store
