// Package ledger provides the core types for the library ledger:
// the authoritative state machine that tracks a book catalog, its borrow
// state, registered users and the collected borrow fees.
//
// This package defines the entities, the error taxonomy, argument
// validation, journal records and the observability interfaces shared by
// the storage engines. The actual state is owned by one of the engine
// implementations:
//   - memoryengine: mutex-guarded in-memory state
//   - sqliteengine: sqlite-backed state with per-operation transactions
//   - postgresengine: Postgres-backed state with row-locking transactions
//
// Every operation takes the caller's pre-verified identity as an Address.
// The ledger never performs authentication itself; it trusts the supplied
// identity for its own authorization checks (owner-only administration).
//
// Common usage pattern:
//
//	lib, err := memoryengine.NewLedger()
//	if err != nil {
//		// handle error
//	}
//
//	if err := lib.Initialize(ctx, admin); err != nil {
//		// handle error
//	}
//
//	bookID, err := lib.AddBook(ctx, admin, "The Hobbit", "J.R.R. Tolkien", price)
package ledger
