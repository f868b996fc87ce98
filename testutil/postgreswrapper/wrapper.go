package postgreswrapper

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"

	"github.com/libledger/library-ledger-go/ledger/postgresengine"
	"github.com/libledger/library-ledger-go/testutil/config"
)

// Engine type constants
const (
	typePGXPool = "pgx.pool"
	typeSQLDB   = "sql.db"
	typeSQLXDB  = "sqlx.db"
)

const testTablePrefix = "library_"

// Wrapper interface to abstract over different engine types
type Wrapper interface {
	GetLedger() *postgresengine.Ledger
	Close()
}

// PGXPoolWrapper wraps pgxpool-based testing
type PGXPoolWrapper struct {
	pool *pgxpool.Pool
	lib  *postgresengine.Ledger
}

func (e *PGXPoolWrapper) GetLedger() *postgresengine.Ledger {
	return e.lib
}

func (e *PGXPoolWrapper) Close() {
	e.pool.Close()
}

// SQLDBWrapper wraps sql.DB-based testing
type SQLDBWrapper struct {
	db  *sql.DB
	lib *postgresengine.Ledger
}

func (e *SQLDBWrapper) GetLedger() *postgresengine.Ledger {
	return e.lib
}

func (e *SQLDBWrapper) Close() {
	_ = e.db.Close() // ignore error
}

// SQLXWrapper wraps sqlx.DB-based testing
type SQLXWrapper struct {
	db  *sqlx.DB
	lib *postgresengine.Ledger
}

func (e *SQLXWrapper) GetLedger() *postgresengine.Ledger {
	return e.lib
}

func (e *SQLXWrapper) Close() {
	_ = e.db.Close() // ignore error
}

// CreateWrapperWithTestConfig creates the appropriate wrapper based on the
// ADAPTER_TYPE environment variable, ensures the ledger tables exist and
// truncates them, so every test starts from an empty ledger.
func CreateWrapperWithTestConfig(t testing.TB, options ...postgresengine.Option) Wrapper {
	engineTypeFromEnv := strings.ToLower(os.Getenv("ADAPTER_TYPE"))

	var wrapper Wrapper

	switch engineTypeFromEnv {
	case typePGXPool, "":
		connPool, err := pgxpool.NewWithConfig(context.Background(), config.PostgresPGXPoolSingleConfig())
		assert.NoError(t, err, "error connecting to DB pool in test setup")

		lib, err := postgresengine.NewLedgerFromPGXPool(connPool, options...)
		assert.NoError(t, err, "error creating the ledger in test setup")

		wrapper = &PGXPoolWrapper{pool: connPool, lib: lib}

	case typeSQLDB:
		db := config.PostgresSQLDBSingleConfig()

		lib, err := postgresengine.NewLedgerFromSQLDB(db, options...)
		assert.NoError(t, err, "error creating the ledger in test setup")

		wrapper = &SQLDBWrapper{db: db, lib: lib}

	case typeSQLXDB:
		db := config.PostgresSQLXSingleConfig()

		lib, err := postgresengine.NewLedgerFromSQLX(db, options...)
		assert.NoError(t, err, "error creating the ledger in test setup")

		wrapper = &SQLXWrapper{db: db, lib: lib}

	default: // neither one of the known types nor empty
		panic(fmt.Sprintf("unsupported wrapper type from env: %s", engineTypeFromEnv))
	}

	EnsureSchema(t, wrapper)
	CleanUp(t, wrapper)

	return wrapper
}

// EnsureSchema creates the ledger tables if they do not exist yet.
func EnsureSchema(t testing.TB, wrapper Wrapper) {
	for _, statement := range postgresengine.SchemaStatements(testTablePrefix) {
		execSQL(t, wrapper, statement, "error creating the ledger tables")
	}
}

// CleanUp truncates all ledger tables for the given wrapper.
func CleanUp(t testing.TB, wrapper Wrapper) {
	query := fmt.Sprintf(
		"TRUNCATE TABLE %sowner, %sbooks, %sborrowers, %susers, %streasury, %srecords RESTART IDENTITY CASCADE",
		testTablePrefix, testTablePrefix, testTablePrefix, testTablePrefix, testTablePrefix, testTablePrefix,
	)

	execSQL(t, wrapper, query, "error cleaning up the ledger tables")
}

func execSQL(t testing.TB, wrapper Wrapper, query string, errMsg string) {
	switch e := wrapper.(type) {
	case *PGXPoolWrapper:
		_, err := e.pool.Exec(context.Background(), query)
		assert.NoError(t, err, errMsg)

	case *SQLDBWrapper:
		_, err := e.db.Exec(query)
		assert.NoError(t, err, errMsg)

	case *SQLXWrapper:
		_, err := e.db.Exec(query)
		assert.NoError(t, err, errMsg)

	default:
		panic(fmt.Sprintf("unsupported wrapper type: %T", e))
	}
}
