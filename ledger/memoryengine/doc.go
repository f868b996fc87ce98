// Package memoryengine provides the in-memory implementation of the library
// ledger.
//
// The engine keeps all four entity collections (owner, book catalog, user
// registry, treasury balance) plus the journal behind a single RWMutex: each
// mutating operation holds the write lock for its full duration, so the
// combined effect of concurrent calls always matches some sequential order.
// Read operations take the read lock and return copies.
//
// The memory engine is the reference for the operation semantics and is
// well suited for tests and single-process deployments where durability is
// provided by an outer layer (or not needed at all).
package memoryengine
