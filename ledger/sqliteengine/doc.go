// Package sqliteengine provides the sqlite-backed implementation of the
// library ledger, built on database/sql with the pure-Go modernc.org/sqlite
// driver.
//
// Each mutating operation runs inside one database transaction, so its
// effects are all-or-nothing and sqlite's single-writer model serializes
// concurrent mutations. The schema is created on construction, which makes
// an in-memory database ("file::memory:?cache=shared" or just ":memory:")
// a fully functional ledger for tests and small deployments.
package sqliteengine
