//go:build !cgo_sqlite
// +build !cgo_sqlite

package store

// Default build: pure Go SQLite, no C toolchain required.
//
// Driver used: modernc.org/sqlite

import (
	_ "modernc.org/sqlite"
)

// DriverName is the database/sql driver to open.
const DriverName = "sqlite"
