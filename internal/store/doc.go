// Package store holds the durable grid of painted cells behind a small
// interface, so the synchronization server never depends on a storage
// engine directly.
//
// # Contract
//
// One record exists per painted coordinate. Writing to a coordinate that is
// already painted overwrites color, attribution and timestamp in place (last
// writer wins); erasing removes the record, returning the coordinate to
// "unpainted".
//
//	Upsert(x, y, color, author) -> Cell      // store assigns UpdatedAt
//	Delete(x, y)                -> Cell | ErrNotFound
//	Get(x, y)                   -> Cell | ErrNotFound
//	All()                       -> []Cell     // ascending UpdatedAt
//	Count()                     -> int
//	TopPainters(limit)          -> []PainterCount
//
// UpdatedAt never moves backwards for a given coordinate, even if the wall
// clock does.
//
// # Implementations
//
// MemoryStore keeps everything in a map guarded by a RWMutex; it is used by
// tests and by the "memory" storage driver.
//
// SQLiteStore uses modernc.org/sqlite (pure Go, no cgo) with WAL journaling.
// The pixels table carries UNIQUE(x, y) plus an (x, y) index, and upserts use
// INSERT ... ON CONFLICT DO UPDATE ... RETURNING so each write is a single
// atomic statement.
//
// # Errors
//
// Missing coordinates surface as state.ErrNotFound. Every other failure from
// the engine is wrapped with state.ErrStorageUnavailable; callers report it
// to the requester and may retry.
package store
