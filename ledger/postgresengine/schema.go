package postgresengine

import "fmt"

// SchemaStatements returns the idempotent DDL for all ledger tables with the
// given table prefix. The singleton tables use a fixed id so there can never
// be more than one owner row or one treasury row.
func SchemaStatements(tablePrefix string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %sowner (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			address TEXT NOT NULL
		)`, tablePrefix),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %sbooks (
			id BIGINT PRIMARY KEY,
			title TEXT NOT NULL,
			author TEXT NOT NULL,
			borrow_price BIGINT NOT NULL,
			available BOOLEAN NOT NULL DEFAULT TRUE
		)`, tablePrefix),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %sborrowers (
			book_id BIGINT PRIMARY KEY REFERENCES %sbooks (id),
			address TEXT NOT NULL
		)`, tablePrefix, tablePrefix),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %susers (
			address TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			registered_at TIMESTAMPTZ NOT NULL
		)`, tablePrefix),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %streasury (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			balance BIGINT NOT NULL
		)`, tablePrefix),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %srecords (
			sequence_number BIGSERIAL PRIMARY KEY,
			record_type TEXT NOT NULL,
			occurred_at TIMESTAMPTZ NOT NULL,
			payload JSONB NOT NULL,
			metadata JSONB NOT NULL
		)`, tablePrefix),
	}
}
