//go:build cgo

package store

import (
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// driverName is registered by the cgo-based mattn/go-sqlite3 driver, used
// whenever cgo is available so the real sqlite-vec extension (init_vec.go)
// can be loaded with -tags sqlite_vec.
const driverName = "sqlite3"

func dataSourceName(path string, opts Options) string {
	return fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on&_journal_mode=WAL", path, opts.BusyTimeoutMs)
}
