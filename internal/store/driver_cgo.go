//go:build cgo_sqlite
// +build cgo_sqlite

package store

// Built with -tags cgo_sqlite: the C SQLite driver, noticeably faster on
// large corpora.
//
// Build command:
//   CGO_ENABLED=1 go build -tags cgo_sqlite ./...
//
// Driver used: github.com/mattn/go-sqlite3

import (
	_ "github.com/mattn/go-sqlite3"
)

// DriverName is the database/sql driver to open.
const DriverName = "sqlite3"
