// Package store persists output tables in a SQLite database (pure Go driver,
// no cgo), one table per frame, so the features can be queried without
// re-reading the CSV files.
package store
