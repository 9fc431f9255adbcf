//go:build sqlite_vec && cgo

package store

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

// Building with -tags sqlite_vec registers the sqlite-vec extension with
// every connection the cgo mattn/go-sqlite3 driver opens.
func init() {
	vec.Auto()
	vecAvailable = true
}
