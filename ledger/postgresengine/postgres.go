package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect import
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/libledger/library-ledger-go/ledger"
	"github.com/libledger/library-ledger-go/ledger/postgresengine/internal/adapters"
)

const (
	defaultTablePrefix = "library_"

	tableOwner     = "owner"
	tableBooks     = "books"
	tableBorrowers = "borrowers"
	tableUsers     = "users"
	tableTreasury  = "treasury"
	tableRecords   = "records"

	colID             = "id"
	colAddress        = "address"
	colTitle          = "title"
	colAuthor         = "author"
	colBorrowPrice    = "borrow_price"
	colAvailable      = "available"
	colBookID         = "book_id"
	colName           = "name"
	colEmail          = "email"
	colRegisteredAt   = "registered_at"
	colBalance        = "balance"
	colRecordType     = "record_type"
	colOccurredAt     = "occurred_at"
	colPayload        = "payload"
	colMetadata       = "metadata"
	colSequenceNumber = "sequence_number"

	dialectPostgres = "postgres"
	singletonRowID  = 1

	logMsgBuildQueryFailed  = "failed to build query"
	logMsgDBQueryFailed     = "database query execution failed"
	logMsgDBExecFailed      = "database execution failed"
	logMsgCloseRowsFailed   = "failed to close database rows"
	logMsgScanRowFailed     = "failed to scan database row"
	logMsgBuildRecordFailed = "failed to build journal record from database row"
	logMsgBeginTxFailed     = "failed to begin transaction"
	logMsgCommitTxFailed    = "failed to commit transaction"
	logMsgRollbackTxFailed  = "failed to roll back transaction"
	logMsgTransferFailed    = "outward funds transfer failed, transaction rolled back"
	logMsgSQLExecuted       = "executed sql"
	logMsgOperation         = "ledger operation: "

	logAttrError      = "error"
	logAttrQuery      = "query"
	logAttrDurationMS = "duration_ms"
	logAttrAmount     = "amount"

	opInitialize        = "initialize"
	opTransferOwnership = "transfer_ownership"
	opAddBook           = "add_book"
	opWithdrawFunds     = "withdraw_funds"
	opRegisterUser      = "register_user"
	opBorrowBook        = "borrow_book"
	opReturnBook        = "return_book"
)

// dbRunner is the query surface shared by adapters.DBAdapter and adapters.DBTx,
// so the row helpers work both inside and outside a transaction.
type dbRunner interface {
	Query(ctx context.Context, query string) (adapters.DBRows, error)
	Exec(ctx context.Context, query string) (adapters.DBResult, error)
}

// sqlConvertible is satisfied by all goqu dataset types.
type sqlConvertible interface {
	ToSQL() (string, []interface{}, error)
}

// Ledger is the PostgreSQL engine. It keeps no state of its own; every
// operation reads and writes the database, mutations inside one transaction.
type Ledger struct {
	db          adapters.DBAdapter
	tablePrefix string

	clock            ledger.Clock
	logger           ledger.Logger
	contextualLogger ledger.ContextualLogger
	metricsCollector ledger.MetricsCollector
	tracingCollector ledger.TracingCollector
	fundsTransferer  ledger.FundsTransferer
}

// interface guard
var _ ledger.Ledger = (*Ledger)(nil)

// NewLedgerFromPGXPool creates a new Ledger using a pgx pool with optional configuration.
func NewLedgerFromPGXPool(db *pgxpool.Pool, options ...Option) (*Ledger, error) {
	if db == nil {
		return nil, ledger.ErrNilDatabaseConnection
	}

	return newLedger(adapters.NewPGXAdapter(db), options...)
}

// NewLedgerFromPGXPoolWithReplica creates a new Ledger using a primary pgx pool
// for mutations and a replica pool for reads, with optional configuration.
func NewLedgerFromPGXPoolWithReplica(primary *pgxpool.Pool, replica *pgxpool.Pool, options ...Option) (*Ledger, error) {
	if primary == nil || replica == nil {
		return nil, ledger.ErrNilDatabaseConnection
	}

	return newLedger(adapters.NewPGXAdapterWithReplica(primary, replica), options...)
}

// NewLedgerFromSQLDB creates a new Ledger using a sql.DB with optional configuration.
func NewLedgerFromSQLDB(db *sql.DB, options ...Option) (*Ledger, error) {
	if db == nil {
		return nil, ledger.ErrNilDatabaseConnection
	}

	return newLedger(adapters.NewSQLAdapter(db), options...)
}

// NewLedgerFromSQLX creates a new Ledger using a sqlx.DB with optional configuration.
func NewLedgerFromSQLX(db *sqlx.DB, options ...Option) (*Ledger, error) {
	if db == nil {
		return nil, ledger.ErrNilDatabaseConnection
	}

	return newLedger(adapters.NewSQLXAdapter(db), options...)
}

func newLedger(db adapters.DBAdapter, options ...Option) (*Ledger, error) {
	l := &Ledger{
		db:          db,
		tablePrefix: defaultTablePrefix,
		clock:       time.Now,
	}

	for _, option := range options {
		if err := option(l); err != nil {
			return nil, err
		}
	}

	return l, nil
}

// Initialize sets the owner once. It is the only mutating operation callable
// on an uninitialized ledger; it also seeds the treasury row.
func (l *Ledger) Initialize(ctx context.Context, caller ledger.Address) (err error) {
	ctx, obs := l.beginObservation(ctx, opInitialize)
	defer func() { l.endObservation(ctx, obs, err) }()

	err = l.withTx(ctx, func(tx adapters.DBTx) error {
		_, found, ownerErr := l.queryOwner(ctx, tx, false)
		if ownerErr != nil {
			return ownerErr
		}

		if found {
			return ledger.ErrAlreadyInitialized
		}

		if caller.IsZero() {
			return ledger.ErrInvalidAddress
		}

		record, recordErr := ledger.RecordFrom(
			ledger.LibraryInitializedRecordType,
			l.clock(),
			ledger.LibraryInitializedPayload{Owner: caller},
		)
		if recordErr != nil {
			return recordErr
		}

		insertOwner := goqu.Dialect(dialectPostgres).
			Insert(l.table(tableOwner)).
			Cols(colID, colAddress).
			Vals(goqu.Vals{singletonRowID, caller.String()}).
			OnConflict(goqu.DoNothing())

		rowsAffected, execErr := l.buildAndExecute(ctx, tx, insertOwner)
		if execErr != nil {
			return execErr
		}

		// a concurrent Initialize got here first
		if rowsAffected == 0 {
			return ledger.ErrAlreadyInitialized
		}

		insertTreasury := goqu.Dialect(dialectPostgres).
			Insert(l.table(tableTreasury)).
			Cols(colID, colBalance).
			Vals(goqu.Vals{singletonRowID, 0}).
			OnConflict(goqu.DoNothing())

		if _, execErr = l.buildAndExecute(ctx, tx, insertTreasury); execErr != nil {
			return execErr
		}

		return l.appendRecord(ctx, tx, record)
	})

	return err
}

// TransferOwnership replaces the owner, effective immediately.
func (l *Ledger) TransferOwnership(ctx context.Context, caller ledger.Address, newOwner ledger.Address) (err error) {
	ctx, obs := l.beginObservation(ctx, opTransferOwnership)
	defer func() { l.endObservation(ctx, obs, err) }()

	err = l.withTx(ctx, func(tx adapters.DBTx) error {
		owner, ownerErr := l.requireOwner(ctx, tx, caller, true)
		if ownerErr != nil {
			return ownerErr
		}

		if newOwner.IsZero() {
			return ledger.ErrInvalidAddress
		}

		record, recordErr := ledger.RecordFrom(
			ledger.OwnershipTransferredRecordType,
			l.clock(),
			ledger.OwnershipTransferredPayload{PreviousOwner: owner, NewOwner: newOwner},
		)
		if recordErr != nil {
			return recordErr
		}

		updateOwner := goqu.Dialect(dialectPostgres).
			Update(l.table(tableOwner)).
			Set(goqu.Record{colAddress: newOwner.String()}).
			Where(goqu.Ex{colID: singletonRowID})

		if _, execErr := l.buildAndExecute(ctx, tx, updateOwner); execErr != nil {
			return execErr
		}

		return l.appendRecord(ctx, tx, record)
	})

	return err
}

// AddBook inserts a new catalog entry and returns its sequential id.
// The owner row lock serializes concurrent adds, keeping the ids gapless.
func (l *Ledger) AddBook(
	ctx context.Context,
	caller ledger.Address,
	title string,
	author string,
	borrowPrice ledger.Money,
) (bookID ledger.BookID, err error) {

	ctx, obs := l.beginObservation(ctx, opAddBook)
	defer func() { l.endObservation(ctx, obs, err) }()

	err = l.withTx(ctx, func(tx adapters.DBTx) error {
		if _, ownerErr := l.requireOwner(ctx, tx, caller, true); ownerErr != nil {
			return ownerErr
		}

		if validateErr := ledger.ValidateBookArgs(title, author, borrowPrice); validateErr != nil {
			return validateErr
		}

		count, countErr := l.queryBookCount(ctx, tx)
		if countErr != nil {
			return countErr
		}

		bookID = ledger.BookID(count + 1)

		record, recordErr := ledger.RecordFrom(
			ledger.BookAddedRecordType,
			l.clock(),
			ledger.BookAddedPayload{BookID: bookID, Title: title, Author: author, BorrowPrice: borrowPrice},
		)
		if recordErr != nil {
			return recordErr
		}

		insertBook := goqu.Dialect(dialectPostgres).
			Insert(l.table(tableBooks)).
			Cols(colID, colTitle, colAuthor, colBorrowPrice, colAvailable).
			Vals(goqu.Vals{int64(bookID), title, author, int64(borrowPrice), true})

		if _, execErr := l.buildAndExecute(ctx, tx, insertBook); execErr != nil {
			return execErr
		}

		return l.appendRecord(ctx, tx, record)
	})

	if err != nil {
		return 0, err
	}

	return bookID, nil
}

// WithdrawFunds atomically zeroes the treasury balance and hands the full
// amount to the configured funds transferer. The transfer runs before the
// commit, so a failed transfer rolls the whole transaction back.
func (l *Ledger) WithdrawFunds(ctx context.Context, caller ledger.Address) (amount ledger.Money, err error) {
	ctx, obs := l.beginObservation(ctx, opWithdrawFunds)
	defer func() { l.endObservation(ctx, obs, err) }()

	err = l.withTx(ctx, func(tx adapters.DBTx) error {
		owner, ownerErr := l.requireOwner(ctx, tx, caller, true)
		if ownerErr != nil {
			return ownerErr
		}

		balance, balanceErr := l.queryTreasuryBalance(ctx, tx, true)
		if balanceErr != nil {
			return balanceErr
		}

		if balance == 0 {
			return ledger.ErrNothingToWithdraw
		}

		amount = balance

		record, recordErr := ledger.RecordFrom(
			ledger.FundsWithdrawnRecordType,
			l.clock(),
			ledger.FundsWithdrawnPayload{Owner: owner, Amount: amount},
		)
		if recordErr != nil {
			return recordErr
		}

		updateTreasury := goqu.Dialect(dialectPostgres).
			Update(l.table(tableTreasury)).
			Set(goqu.Record{colBalance: 0}).
			Where(goqu.Ex{colID: singletonRowID})

		if _, execErr := l.buildAndExecute(ctx, tx, updateTreasury); execErr != nil {
			return execErr
		}

		if appendErr := l.appendRecord(ctx, tx, record); appendErr != nil {
			return appendErr
		}

		if l.fundsTransferer != nil {
			if transferErr := l.fundsTransferer.Transfer(ctx, owner, amount); transferErr != nil {
				l.logError(ctx, logMsgTransferFailed, transferErr, logAttrAmount, int64(amount))

				return errors.Join(ledger.ErrTransferFailed, transferErr)
			}
		}

		return nil
	})

	if err != nil {
		return 0, err
	}

	return amount, nil
}

// RegisterUser creates the permanent user record for the caller.
func (l *Ledger) RegisterUser(ctx context.Context, caller ledger.Address, name string, email string) (err error) {
	ctx, obs := l.beginObservation(ctx, opRegisterUser)
	defer func() { l.endObservation(ctx, obs, err) }()

	err = l.withTx(ctx, func(tx adapters.DBTx) error {
		if initErr := l.requireInitialized(ctx, tx); initErr != nil {
			return initErr
		}

		if caller.IsZero() {
			return ledger.ErrInvalidAddress
		}

		exists, existsErr := l.queryUserExists(ctx, tx, caller)
		if existsErr != nil {
			return existsErr
		}

		if exists {
			return ledger.ErrAlreadyRegistered
		}

		if validateErr := ledger.ValidateUserArgs(name, email); validateErr != nil {
			return validateErr
		}

		now := l.clock()

		record, recordErr := ledger.RecordFrom(
			ledger.UserRegisteredRecordType,
			now,
			ledger.UserRegisteredPayload{Address: caller, Name: name, Email: email},
		)
		if recordErr != nil {
			return recordErr
		}

		insertUser := goqu.Dialect(dialectPostgres).
			Insert(l.table(tableUsers)).
			Cols(colAddress, colName, colEmail, colRegisteredAt).
			Vals(goqu.Vals{caller.String(), name, email, now})

		if _, execErr := l.buildAndExecute(ctx, tx, insertUser); execErr != nil {
			return execErr
		}

		return l.appendRecord(ctx, tx, record)
	})

	return err
}

// GetUserInfo returns the user record for the address, or a zero User with
// IsRegistered == false: callers routinely probe before registering.
func (l *Ledger) GetUserInfo(ctx context.Context, address ledger.Address) (ledger.User, error) {
	if err := l.requireInitialized(ctx, l.db); err != nil {
		return ledger.User{}, err
	}

	selectUser := goqu.Dialect(dialectPostgres).
		From(l.table(tableUsers)).
		Select(colName, colEmail, colRegisteredAt).
		Where(goqu.Ex{colAddress: address.String()})

	sqlQuery, buildErr := l.buildSQL(ctx, selectUser)
	if buildErr != nil {
		return ledger.User{}, buildErr
	}

	rows, queryErr := l.executeQuery(ctx, l.db, sqlQuery)
	if queryErr != nil {
		return ledger.User{}, queryErr
	}
	defer l.closeRows(ctx, rows)

	if !rows.Next() {
		return ledger.User{}, nil
	}

	user := ledger.User{Address: address, IsRegistered: true}

	if scanErr := rows.Scan(&user.Name, &user.Email, &user.RegisteredAt); scanErr != nil {
		l.logError(ctx, logMsgScanRowFailed, scanErr)
		return ledger.User{}, errors.Join(ledger.ErrScanningDBRowFailed, scanErr)
	}

	return user, nil
}

// BorrowBook marks the book unavailable, records the borrower and adds the
// full tendered amount to the treasury, all in one transaction. The book row
// lock serializes concurrent borrows of the same book.
func (l *Ledger) BorrowBook(ctx context.Context, caller ledger.Address, bookID ledger.BookID, paid ledger.Money) (err error) {
	ctx, obs := l.beginObservation(ctx, opBorrowBook)
	defer func() { l.endObservation(ctx, obs, err) }()

	err = l.withTx(ctx, func(tx adapters.DBTx) error {
		if initErr := l.requireInitialized(ctx, tx); initErr != nil {
			return initErr
		}

		if validateErr := ledger.ValidatePaidAmount(paid); validateErr != nil {
			return validateErr
		}

		book, found, bookErr := l.queryBook(ctx, tx, bookID, true)
		if bookErr != nil {
			return bookErr
		}

		if !found {
			return ledger.ErrBookNotFound
		}

		registered, registeredErr := l.queryUserExists(ctx, tx, caller)
		if registeredErr != nil {
			return registeredErr
		}

		if !registered {
			return ledger.ErrNotRegistered
		}

		if !book.Available {
			return ledger.ErrBookUnavailable
		}

		if paid < book.BorrowPrice {
			return ledger.ErrInsufficientFunds
		}

		record, recordErr := ledger.RecordFrom(
			ledger.BookBorrowedRecordType,
			l.clock(),
			ledger.BookBorrowedPayload{BookID: bookID, Borrower: caller, Price: book.BorrowPrice, Paid: paid},
		)
		if recordErr != nil {
			return recordErr
		}

		updateBook := goqu.Dialect(dialectPostgres).
			Update(l.table(tableBooks)).
			Set(goqu.Record{colAvailable: false}).
			Where(goqu.Ex{colID: int64(bookID), colAvailable: true})

		rowsAffected, execErr := l.buildAndExecute(ctx, tx, updateBook)
		if execErr != nil {
			return execErr
		}

		if rowsAffected == 0 {
			return ledger.ErrBookUnavailable
		}

		insertBorrower := goqu.Dialect(dialectPostgres).
			Insert(l.table(tableBorrowers)).
			Cols(colBookID, colAddress).
			Vals(goqu.Vals{int64(bookID), caller.String()})

		if _, execErr = l.buildAndExecute(ctx, tx, insertBorrower); execErr != nil {
			return execErr
		}

		updateTreasury := goqu.Dialect(dialectPostgres).
			Update(l.table(tableTreasury)).
			Set(goqu.Record{colBalance: goqu.L("balance + ?", int64(paid))}).
			Where(goqu.Ex{colID: singletonRowID})

		if _, execErr = l.buildAndExecute(ctx, tx, updateTreasury); execErr != nil {
			return execErr
		}

		return l.appendRecord(ctx, tx, record)
	})

	return err
}

// ReturnBook marks the book available again and deletes the borrow record.
// Returns are owner-mediated; the borrow fee is not refunded.
func (l *Ledger) ReturnBook(ctx context.Context, caller ledger.Address, bookID ledger.BookID) (err error) {
	ctx, obs := l.beginObservation(ctx, opReturnBook)
	defer func() { l.endObservation(ctx, obs, err) }()

	err = l.withTx(ctx, func(tx adapters.DBTx) error {
		if _, ownerErr := l.requireOwner(ctx, tx, caller, false); ownerErr != nil {
			return ownerErr
		}

		book, found, bookErr := l.queryBook(ctx, tx, bookID, true)
		if bookErr != nil {
			return bookErr
		}

		if !found {
			return ledger.ErrBookNotFound
		}

		if book.Available {
			return ledger.ErrBookAlreadyAvailable
		}

		borrower, borrowerErr := l.queryBorrower(ctx, tx, bookID)
		if borrowerErr != nil {
			return borrowerErr
		}

		record, recordErr := ledger.RecordFrom(
			ledger.BookReturnedRecordType,
			l.clock(),
			ledger.BookReturnedPayload{BookID: bookID, Borrower: borrower},
		)
		if recordErr != nil {
			return recordErr
		}

		updateBook := goqu.Dialect(dialectPostgres).
			Update(l.table(tableBooks)).
			Set(goqu.Record{colAvailable: true}).
			Where(goqu.Ex{colID: int64(bookID)})

		if _, execErr := l.buildAndExecute(ctx, tx, updateBook); execErr != nil {
			return execErr
		}

		deleteBorrower := goqu.Dialect(dialectPostgres).
			Delete(l.table(tableBorrowers)).
			Where(goqu.Ex{colBookID: int64(bookID)})

		if _, execErr := l.buildAndExecute(ctx, tx, deleteBorrower); execErr != nil {
			return execErr
		}

		return l.appendRecord(ctx, tx, record)
	})

	return err
}

// GetBookBorrower returns the current borrower of the book. Borrower
// identity is private, exposed to the owner only; the zero Address means
// the book is not borrowed.
func (l *Ledger) GetBookBorrower(ctx context.Context, caller ledger.Address, bookID ledger.BookID) (ledger.Address, error) {
	if _, err := l.requireOwner(ctx, l.db, caller, false); err != nil {
		return "", err
	}

	_, found, bookErr := l.queryBook(ctx, l.db, bookID, false)
	if bookErr != nil {
		return "", bookErr
	}

	if !found {
		return "", ledger.ErrBookNotFound
	}

	return l.queryBorrower(ctx, l.db, bookID)
}

// GetAllBooks returns a full catalog snapshot ordered by id.
func (l *Ledger) GetAllBooks(ctx context.Context) (ledger.Books, error) {
	if err := l.requireInitialized(ctx, l.db); err != nil {
		return nil, err
	}

	selectBooks := goqu.Dialect(dialectPostgres).
		From(l.table(tableBooks)).
		Select(colID, colTitle, colAuthor, colBorrowPrice, colAvailable).
		Order(goqu.I(colID).Asc())

	return l.queryBooks(ctx, selectBooks)
}

// GetBorrowedBooks returns the books currently borrowed by the caller, ordered by id.
func (l *Ledger) GetBorrowedBooks(ctx context.Context, caller ledger.Address) (ledger.Books, error) {
	if err := l.requireInitialized(ctx, l.db); err != nil {
		return nil, err
	}

	if caller.IsZero() {
		return make(ledger.Books, 0), nil
	}

	booksTable := goqu.T(l.table(tableBooks))
	borrowersTable := goqu.T(l.table(tableBorrowers))

	selectBooks := goqu.Dialect(dialectPostgres).
		From(booksTable).
		Join(borrowersTable, goqu.On(borrowersTable.Col(colBookID).Eq(booksTable.Col(colID)))).
		Select(
			booksTable.Col(colID),
			booksTable.Col(colTitle),
			booksTable.Col(colAuthor),
			booksTable.Col(colBorrowPrice),
			booksTable.Col(colAvailable),
		).
		Where(borrowersTable.Col(colAddress).Eq(caller.String())).
		Order(booksTable.Col(colID).Asc())

	return l.queryBooks(ctx, selectBooks)
}

// Initialized reports whether the one-time initialization has happened.
// It is callable before initialization.
func (l *Ledger) Initialized(ctx context.Context) (bool, error) {
	_, found, err := l.queryOwner(ctx, l.db, false)
	if err != nil {
		return false, err
	}

	return found, nil
}

// Owner returns the current owner address.
func (l *Ledger) Owner(ctx context.Context) (ledger.Address, error) {
	owner, found, err := l.queryOwner(ctx, l.db, false)
	if err != nil {
		return "", err
	}

	if !found {
		return "", ledger.ErrNotInitialized
	}

	return owner, nil
}

// BookCount returns the number of catalog entries.
func (l *Ledger) BookCount(ctx context.Context) (uint64, error) {
	if err := l.requireInitialized(ctx, l.db); err != nil {
		return 0, err
	}

	return l.queryBookCount(ctx, l.db)
}

// TreasuryBalance returns the accumulated borrow fees held by the ledger.
func (l *Ledger) TreasuryBalance(ctx context.Context) (ledger.Money, error) {
	if err := l.requireInitialized(ctx, l.db); err != nil {
		return 0, err
	}

	return l.queryTreasuryBalance(ctx, l.db, false)
}

// Journal returns all records in append order.
func (l *Ledger) Journal(ctx context.Context) (ledger.Records, error) {
	if err := l.requireInitialized(ctx, l.db); err != nil {
		return nil, err
	}

	selectRecords := goqu.Dialect(dialectPostgres).
		From(l.table(tableRecords)).
		Select(colRecordType, colOccurredAt, colPayload, colMetadata).
		Order(goqu.I(colSequenceNumber).Asc())

	sqlQuery, buildErr := l.buildSQL(ctx, selectRecords)
	if buildErr != nil {
		return nil, buildErr
	}

	rows, queryErr := l.executeQuery(ctx, l.db, sqlQuery)
	if queryErr != nil {
		return nil, queryErr
	}
	defer l.closeRows(ctx, rows)

	records := make(ledger.Records, 0)

	for rows.Next() {
		var (
			recordType   string
			occurredAt   time.Time
			payloadJSON  []byte
			metadataJSON []byte
		)

		if scanErr := rows.Scan(&recordType, &occurredAt, &payloadJSON, &metadataJSON); scanErr != nil {
			l.logError(ctx, logMsgScanRowFailed, scanErr)
			return nil, errors.Join(ledger.ErrScanningDBRowFailed, scanErr)
		}

		record, buildRecordErr := ledger.BuildRecord(recordType, occurredAt, payloadJSON, metadataJSON)
		if buildRecordErr != nil {
			l.logError(ctx, logMsgBuildRecordFailed, buildRecordErr)
			return nil, errors.Join(ledger.ErrBuildingRecordFailed, buildRecordErr)
		}

		records = append(records, record)
	}

	return records, nil
}

/*** transaction and query helpers ***/

func (l *Ledger) table(name string) string {
	return l.tablePrefix + name
}

// withTx runs fn inside a transaction, rolling back when fn errors and
// committing otherwise.
func (l *Ledger) withTx(ctx context.Context, fn func(tx adapters.DBTx) error) error {
	tx, beginErr := l.db.BeginTx(ctx)
	if beginErr != nil {
		l.logError(ctx, logMsgBeginTxFailed, beginErr)
		l.recordDatabaseError(errorTypeTx)

		return errors.Join(ledger.ErrBeginTxFailed, beginErr)
	}

	if err := fn(tx); err != nil {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
			l.logWarn(ctx, logMsgRollbackTxFailed, rollbackErr)
		}

		return err
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		l.logError(ctx, logMsgCommitTxFailed, commitErr)
		l.recordDatabaseError(errorTypeTx)

		return errors.Join(ledger.ErrCommitTxFailed, commitErr)
	}

	return nil
}

// buildSQL converts a goqu dataset to its SQL string.
func (l *Ledger) buildSQL(ctx context.Context, stmt sqlConvertible) (string, error) {
	sqlQuery, _, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		l.logError(ctx, logMsgBuildQueryFailed, toSQLErr)
		return "", errors.Join(ledger.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

// buildAndExecute converts a goqu dataset to SQL, executes it and returns the
// number of affected rows.
func (l *Ledger) buildAndExecute(ctx context.Context, db dbRunner, stmt sqlConvertible) (int64, error) {
	sqlQuery, buildErr := l.buildSQL(ctx, stmt)
	if buildErr != nil {
		return 0, buildErr
	}

	start := time.Now()
	result, execErr := db.Exec(ctx, sqlQuery)
	duration := time.Since(start)
	l.logQueryWithDuration(ctx, sqlQuery, duration)

	if execErr != nil {
		l.logError(ctx, logMsgDBExecFailed, execErr, logAttrQuery, sqlQuery)
		l.recordDatabaseError(errorTypeExec)

		return 0, errors.Join(ledger.ErrMutatingLedgerFailed, execErr)
	}

	rowsAffected, rowsAffectedErr := result.RowsAffected()
	if rowsAffectedErr != nil {
		return 0, errors.Join(ledger.ErrMutatingLedgerFailed, rowsAffectedErr)
	}

	return rowsAffected, nil
}

// executeQuery executes the SQL query with timing and error logging.
func (l *Ledger) executeQuery(ctx context.Context, db dbRunner, sqlQuery string) (adapters.DBRows, error) {
	start := time.Now()
	rows, queryErr := db.Query(ctx, sqlQuery)
	duration := time.Since(start)
	l.logQueryWithDuration(ctx, sqlQuery, duration)

	if queryErr != nil {
		l.logError(ctx, logMsgDBQueryFailed, queryErr, logAttrQuery, sqlQuery)
		l.recordDatabaseError(errorTypeQuery)

		return nil, errors.Join(ledger.ErrQueryingLedgerFailed, queryErr)
	}

	return rows, nil
}

// closeRows safely closes database rows and logs any errors.
func (l *Ledger) closeRows(ctx context.Context, rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		l.logWarn(ctx, logMsgCloseRowsFailed, closeErr)
	}
}

// queryOwner reads the owner row, optionally locking it for the duration of
// the surrounding transaction.
func (l *Ledger) queryOwner(ctx context.Context, db dbRunner, forUpdate bool) (ledger.Address, bool, error) {
	selectOwner := goqu.Dialect(dialectPostgres).
		From(l.table(tableOwner)).
		Select(colAddress).
		Where(goqu.Ex{colID: singletonRowID})

	if forUpdate {
		selectOwner = selectOwner.ForUpdate(exp.Wait)
	}

	sqlQuery, buildErr := l.buildSQL(ctx, selectOwner)
	if buildErr != nil {
		return "", false, buildErr
	}

	rows, queryErr := l.executeQuery(ctx, db, sqlQuery)
	if queryErr != nil {
		return "", false, queryErr
	}
	defer l.closeRows(ctx, rows)

	if !rows.Next() {
		return "", false, nil
	}

	var address string

	if scanErr := rows.Scan(&address); scanErr != nil {
		l.logError(ctx, logMsgScanRowFailed, scanErr)
		return "", false, errors.Join(ledger.ErrScanningDBRowFailed, scanErr)
	}

	return ledger.Address(address), true, nil
}

func (l *Ledger) requireInitialized(ctx context.Context, db dbRunner) error {
	_, found, err := l.queryOwner(ctx, db, false)
	if err != nil {
		return err
	}

	if !found {
		return ledger.ErrNotInitialized
	}

	return nil
}

func (l *Ledger) requireOwner(ctx context.Context, db dbRunner, caller ledger.Address, forUpdate bool) (ledger.Address, error) {
	owner, found, err := l.queryOwner(ctx, db, forUpdate)
	if err != nil {
		return "", err
	}

	if !found {
		return "", ledger.ErrNotInitialized
	}

	if caller != owner {
		return "", ledger.ErrUnauthorized
	}

	return owner, nil
}

// queryBook reads one catalog entry, optionally locking its row.
func (l *Ledger) queryBook(ctx context.Context, db dbRunner, bookID ledger.BookID, forUpdate bool) (ledger.Book, bool, error) {
	selectBook := goqu.Dialect(dialectPostgres).
		From(l.table(tableBooks)).
		Select(colID, colTitle, colAuthor, colBorrowPrice, colAvailable).
		Where(goqu.Ex{colID: int64(bookID)})

	if forUpdate {
		selectBook = selectBook.ForUpdate(exp.Wait)
	}

	sqlQuery, buildErr := l.buildSQL(ctx, selectBook)
	if buildErr != nil {
		return ledger.Book{}, false, buildErr
	}

	rows, queryErr := l.executeQuery(ctx, db, sqlQuery)
	if queryErr != nil {
		return ledger.Book{}, false, queryErr
	}
	defer l.closeRows(ctx, rows)

	if !rows.Next() {
		return ledger.Book{}, false, nil
	}

	book, scanErr := l.scanBook(ctx, rows)
	if scanErr != nil {
		return ledger.Book{}, false, scanErr
	}

	return book, true, nil
}

func (l *Ledger) queryBookCount(ctx context.Context, db dbRunner) (uint64, error) {
	selectCount := goqu.Dialect(dialectPostgres).
		From(l.table(tableBooks)).
		Select(goqu.COUNT(goqu.Star()))

	sqlQuery, buildErr := l.buildSQL(ctx, selectCount)
	if buildErr != nil {
		return 0, buildErr
	}

	rows, queryErr := l.executeQuery(ctx, db, sqlQuery)
	if queryErr != nil {
		return 0, queryErr
	}
	defer l.closeRows(ctx, rows)

	var count int64

	if rows.Next() {
		if scanErr := rows.Scan(&count); scanErr != nil {
			l.logError(ctx, logMsgScanRowFailed, scanErr)
			return 0, errors.Join(ledger.ErrScanningDBRowFailed, scanErr)
		}
	}

	return uint64(count), nil
}

func (l *Ledger) queryUserExists(ctx context.Context, db dbRunner, address ledger.Address) (bool, error) {
	selectUser := goqu.Dialect(dialectPostgres).
		From(l.table(tableUsers)).
		Select(colAddress).
		Where(goqu.Ex{colAddress: address.String()})

	sqlQuery, buildErr := l.buildSQL(ctx, selectUser)
	if buildErr != nil {
		return false, buildErr
	}

	rows, queryErr := l.executeQuery(ctx, db, sqlQuery)
	if queryErr != nil {
		return false, queryErr
	}
	defer l.closeRows(ctx, rows)

	return rows.Next(), nil
}

// queryBorrower returns the borrower of the book, or the zero Address when
// the book is not borrowed.
func (l *Ledger) queryBorrower(ctx context.Context, db dbRunner, bookID ledger.BookID) (ledger.Address, error) {
	selectBorrower := goqu.Dialect(dialectPostgres).
		From(l.table(tableBorrowers)).
		Select(colAddress).
		Where(goqu.Ex{colBookID: int64(bookID)})

	sqlQuery, buildErr := l.buildSQL(ctx, selectBorrower)
	if buildErr != nil {
		return "", buildErr
	}

	rows, queryErr := l.executeQuery(ctx, db, sqlQuery)
	if queryErr != nil {
		return "", queryErr
	}
	defer l.closeRows(ctx, rows)

	if !rows.Next() {
		return "", nil
	}

	var address string

	if scanErr := rows.Scan(&address); scanErr != nil {
		l.logError(ctx, logMsgScanRowFailed, scanErr)
		return "", errors.Join(ledger.ErrScanningDBRowFailed, scanErr)
	}

	return ledger.Address(address), nil
}

func (l *Ledger) queryTreasuryBalance(ctx context.Context, db dbRunner, forUpdate bool) (ledger.Money, error) {
	selectBalance := goqu.Dialect(dialectPostgres).
		From(l.table(tableTreasury)).
		Select(colBalance).
		Where(goqu.Ex{colID: singletonRowID})

	if forUpdate {
		selectBalance = selectBalance.ForUpdate(exp.Wait)
	}

	sqlQuery, buildErr := l.buildSQL(ctx, selectBalance)
	if buildErr != nil {
		return 0, buildErr
	}

	rows, queryErr := l.executeQuery(ctx, db, sqlQuery)
	if queryErr != nil {
		return 0, queryErr
	}
	defer l.closeRows(ctx, rows)

	if !rows.Next() {
		return 0, nil
	}

	var balance int64

	if scanErr := rows.Scan(&balance); scanErr != nil {
		l.logError(ctx, logMsgScanRowFailed, scanErr)
		return 0, errors.Join(ledger.ErrScanningDBRowFailed, scanErr)
	}

	return ledger.Money(balance), nil
}

// queryBooks executes a catalog select and scans all rows.
func (l *Ledger) queryBooks(ctx context.Context, selectBooks *goqu.SelectDataset) (ledger.Books, error) {
	sqlQuery, buildErr := l.buildSQL(ctx, selectBooks)
	if buildErr != nil {
		return nil, buildErr
	}

	rows, queryErr := l.executeQuery(ctx, l.db, sqlQuery)
	if queryErr != nil {
		return nil, queryErr
	}
	defer l.closeRows(ctx, rows)

	books := make(ledger.Books, 0)

	for rows.Next() {
		book, scanErr := l.scanBook(ctx, rows)
		if scanErr != nil {
			return nil, scanErr
		}

		books = append(books, book)
	}

	return books, nil
}

func (l *Ledger) scanBook(ctx context.Context, rows adapters.DBRows) (ledger.Book, error) {
	var (
		id          int64
		title       string
		author      string
		borrowPrice int64
		available   bool
	)

	if scanErr := rows.Scan(&id, &title, &author, &borrowPrice, &available); scanErr != nil {
		l.logError(ctx, logMsgScanRowFailed, scanErr)
		return ledger.Book{}, errors.Join(ledger.ErrScanningDBRowFailed, scanErr)
	}

	return ledger.Book{
		ID:          ledger.BookID(id),
		Title:       title,
		Author:      author,
		BorrowPrice: ledger.Money(borrowPrice),
		Available:   available,
	}, nil
}

// appendRecord inserts one journal record inside the transaction.
func (l *Ledger) appendRecord(ctx context.Context, db dbRunner, record ledger.Record) error {
	insertRecord := goqu.Dialect(dialectPostgres).
		Insert(l.table(tableRecords)).
		Cols(colRecordType, colOccurredAt, colPayload, colMetadata).
		Vals(goqu.Vals{record.RecordType, record.OccurredAt, record.PayloadJSON, record.MetadataJSON})

	_, err := l.buildAndExecute(ctx, db, insertRecord)

	return err
}
