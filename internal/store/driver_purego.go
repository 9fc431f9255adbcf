//go:build !cgo

package store

import (
	"fmt"

	_ "modernc.org/sqlite"
)

// driverName is registered by the pure-Go modernc.org/sqlite driver, used
// for cross-compiled builds where cgo is unavailable. Similarity search
// still gets a vec0 table through the compatibility shim in vec_compat.go.
const driverName = "sqlite"

func dataSourceName(path string, opts Options) string {
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", path, opts.BusyTimeoutMs)
}

func init() {
	registerVecCompat()
	vecAvailable = true
}
