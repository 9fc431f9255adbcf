package store

import "claude-knowledge/internal/logging"

// vecAvailable is set at process startup when a vec0 module is
// registered: by init_vec.go for the real sqlite-vec extension on cgo
// builds with -tags sqlite_vec, and by driver_purego.go for the in-process
// shim in vec_compat.go on pure-Go (modernc.org/sqlite) builds. It stays
// false only on cgo builds without the sqlite_vec tag.
var vecAvailable bool

// detectVecExtension records whether vector similarity can use the
// sqlite-vec virtual table rather than scanning embeddings in Go. Kept as
// a Store-level flag (rather than a global) so callers can ask a single
// handle.
func (s *Store) detectVecExtension() {
	s.vectorExt = vecAvailable
	if !s.vectorExt {
		logging.StoreDebug("sqlite-vec extension not loaded; similarity search will scan embeddings in process")
	}
}

// HasVectorIndex reports whether ANN queries can be pushed into SQLite via
// the vec0 virtual table, or must be done by scanning embedding blobs.
func (s *Store) HasVectorIndex() bool {
	return s.vectorExt
}
