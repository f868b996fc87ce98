package sqliteengine

import (
	"context"
	"database/sql"
	"errors"

	"github.com/libledger/library-ledger-go/ledger"
)

// The singleton tables use a fixed id so there can never be more than one
// owner row or one treasury row.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS library_owner (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		address TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS library_books (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		author TEXT NOT NULL,
		borrow_price INTEGER NOT NULL,
		available INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS library_borrowers (
		book_id INTEGER PRIMARY KEY REFERENCES library_books (id),
		address TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS library_users (
		address TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		registered_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS library_treasury (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		balance INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS library_records (
		sequence_number INTEGER PRIMARY KEY AUTOINCREMENT,
		record_type TEXT NOT NULL,
		occurred_at TEXT NOT NULL,
		payload TEXT NOT NULL,
		metadata TEXT NOT NULL
	)`,
}

// createSchema creates all ledger tables if they do not exist yet.
func createSchema(ctx context.Context, db *sql.DB) error {
	for _, statement := range schemaStatements {
		if _, err := db.ExecContext(ctx, statement); err != nil {
			return errors.Join(ledger.ErrMutatingLedgerFailed, err)
		}
	}

	return nil
}
