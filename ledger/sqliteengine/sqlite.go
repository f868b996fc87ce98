package sqliteengine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/libledger/library-ledger-go/ledger"
)

const (
	logMsgOperation      = "ledger operation: "
	logMsgTransferFailed = "outward funds transfer failed, transaction rolled back"
	logAttrError         = "error"
	logAttrBookID        = "book_id"
	logAttrAddress       = "address"
	logAttrAmount        = "amount"
	metricOperationCount = "ledger_operations_total"
	labelOperation       = "operation"
)

// Ledger is the sqlite-backed engine. All state lives in the six
// library_* tables; every mutating operation is one transaction.
type Ledger struct {
	db *sql.DB

	clock            ledger.Clock
	logger           ledger.Logger
	metricsCollector ledger.MetricsCollector
	fundsTransferer  ledger.FundsTransferer
}

// interface guard
var _ ledger.Ledger = (*Ledger)(nil)

// NewLedger creates a new sqlite-backed Ledger with optional configuration
// and creates the schema if it does not exist yet.
func NewLedger(ctx context.Context, db *sql.DB, options ...Option) (*Ledger, error) {
	if db == nil {
		return nil, ledger.ErrNilDatabaseConnection
	}

	l := &Ledger{
		db:    db,
		clock: time.Now,
	}

	for _, option := range options {
		if err := option(l); err != nil {
			return nil, err
		}
	}

	if err := createSchema(ctx, db); err != nil {
		return nil, err
	}

	return l, nil
}

// Initialize sets the owner once and seeds the treasury row.
func (l *Ledger) Initialize(ctx context.Context, caller ledger.Address) error {
	err := l.withTx(ctx, func(tx *sql.Tx) error {
		if _, initialized, ownerErr := l.ownerTx(ctx, tx); ownerErr != nil {
			return ownerErr
		} else if initialized {
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

		if _, execErr := tx.ExecContext(ctx,
			`INSERT INTO library_owner (id, address) VALUES (1, ?)`, caller.String(),
		); execErr != nil {
			return errors.Join(ledger.ErrMutatingLedgerFailed, execErr)
		}

		if _, execErr := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO library_treasury (id, balance) VALUES (1, 0)`,
		); execErr != nil {
			return errors.Join(ledger.ErrMutatingLedgerFailed, execErr)
		}

		return l.appendRecordTx(ctx, tx, record)
	})
	if err != nil {
		return err
	}

	l.observeOperation("initialize", logAttrAddress, caller.String())

	return nil
}

// TransferOwnership replaces the owner, effective immediately.
func (l *Ledger) TransferOwnership(ctx context.Context, caller ledger.Address, newOwner ledger.Address) error {
	err := l.withTx(ctx, func(tx *sql.Tx) error {
		owner, ownerErr := l.requireOwnerTx(ctx, tx, caller)
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

		if _, execErr := tx.ExecContext(ctx,
			`UPDATE library_owner SET address = ? WHERE id = 1`, newOwner.String(),
		); execErr != nil {
			return errors.Join(ledger.ErrMutatingLedgerFailed, execErr)
		}

		return l.appendRecordTx(ctx, tx, record)
	})
	if err != nil {
		return err
	}

	l.observeOperation("transfer_ownership", logAttrAddress, newOwner.String())

	return nil
}

// AddBook inserts a new catalog entry and returns its sequential id.
func (l *Ledger) AddBook(
	ctx context.Context,
	caller ledger.Address,
	title string,
	author string,
	borrowPrice ledger.Money,
) (ledger.BookID, error) {

	var bookID ledger.BookID

	err := l.withTx(ctx, func(tx *sql.Tx) error {
		if _, ownerErr := l.requireOwnerTx(ctx, tx, caller); ownerErr != nil {
			return ownerErr
		}

		if validateErr := ledger.ValidateBookArgs(title, author, borrowPrice); validateErr != nil {
			return validateErr
		}

		result, execErr := tx.ExecContext(ctx,
			`INSERT INTO library_books (title, author, borrow_price, available) VALUES (?, ?, ?, 1)`,
			title, author, int64(borrowPrice),
		)
		if execErr != nil {
			return errors.Join(ledger.ErrMutatingLedgerFailed, execErr)
		}

		insertID, idErr := result.LastInsertId()
		if idErr != nil {
			return errors.Join(ledger.ErrMutatingLedgerFailed, idErr)
		}
		bookID = ledger.BookID(insertID)

		record, recordErr := ledger.RecordFrom(
			ledger.BookAddedRecordType,
			l.clock(),
			ledger.BookAddedPayload{BookID: bookID, Title: title, Author: author, BorrowPrice: borrowPrice},
		)
		if recordErr != nil {
			return recordErr
		}

		return l.appendRecordTx(ctx, tx, record)
	})
	if err != nil {
		return 0, err
	}

	l.observeOperation("add_book", logAttrBookID, uint64(bookID))

	return bookID, nil
}

// WithdrawFunds zeroes the balance and invokes the funds transferer inside
// the transaction: a failed transfer rolls the decrement back.
func (l *Ledger) WithdrawFunds(ctx context.Context, caller ledger.Address) (ledger.Money, error) {
	var amount ledger.Money

	err := l.withTx(ctx, func(tx *sql.Tx) error {
		owner, ownerErr := l.requireOwnerTx(ctx, tx, caller)
		if ownerErr != nil {
			return ownerErr
		}

		var balance int64
		if scanErr := tx.QueryRowContext(ctx,
			`SELECT balance FROM library_treasury WHERE id = 1`,
		).Scan(&balance); scanErr != nil {
			return errors.Join(ledger.ErrQueryingLedgerFailed, scanErr)
		}

		if balance == 0 {
			return ledger.ErrNothingToWithdraw
		}
		amount = ledger.Money(balance)

		record, recordErr := ledger.RecordFrom(
			ledger.FundsWithdrawnRecordType,
			l.clock(),
			ledger.FundsWithdrawnPayload{Owner: owner, Amount: amount},
		)
		if recordErr != nil {
			return recordErr
		}

		if _, execErr := tx.ExecContext(ctx,
			`UPDATE library_treasury SET balance = 0 WHERE id = 1`,
		); execErr != nil {
			return errors.Join(ledger.ErrMutatingLedgerFailed, execErr)
		}

		if appendErr := l.appendRecordTx(ctx, tx, record); appendErr != nil {
			return appendErr
		}

		if l.fundsTransferer != nil {
			if transferErr := l.fundsTransferer.Transfer(ctx, owner, amount); transferErr != nil {
				if l.logger != nil {
					l.logger.Error(logMsgTransferFailed, logAttrError, transferErr.Error(), logAttrAmount, int64(amount))
				}

				return errors.Join(ledger.ErrTransferFailed, transferErr)
			}
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	l.observeOperation("withdraw_funds", logAttrAmount, int64(amount))

	return amount, nil
}

// RegisterUser creates the permanent user record for the caller.
func (l *Ledger) RegisterUser(ctx context.Context, caller ledger.Address, name string, email string) error {
	err := l.withTx(ctx, func(tx *sql.Tx) error {
		if initErr := l.requireInitializedTx(ctx, tx); initErr != nil {
			return initErr
		}

		if caller.IsZero() {
			return ledger.ErrInvalidAddress
		}

		registered, existsErr := l.userExistsTx(ctx, tx, caller)
		if existsErr != nil {
			return existsErr
		}
		if registered {
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

		if _, execErr := tx.ExecContext(ctx,
			`INSERT INTO library_users (address, name, email, registered_at) VALUES (?, ?, ?, ?)`,
			caller.String(), name, email, now.UTC().Format(time.RFC3339Nano),
		); execErr != nil {
			return errors.Join(ledger.ErrMutatingLedgerFailed, execErr)
		}

		return l.appendRecordTx(ctx, tx, record)
	})
	if err != nil {
		return err
	}

	l.observeOperation("register_user", logAttrAddress, caller.String())

	return nil
}

// GetUserInfo returns the user record for the address, or a zero User with
// IsRegistered == false for unknown addresses.
func (l *Ledger) GetUserInfo(ctx context.Context, address ledger.Address) (ledger.User, error) {
	if err := l.requireInitialized(ctx); err != nil {
		return ledger.User{}, err
	}

	var (
		name         string
		email        string
		registeredAt string
	)

	err := l.db.QueryRowContext(ctx,
		`SELECT name, email, registered_at FROM library_users WHERE address = ?`, address.String(),
	).Scan(&name, &email, &registeredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.User{}, nil
	}
	if err != nil {
		return ledger.User{}, errors.Join(ledger.ErrQueryingLedgerFailed, err)
	}

	parsedAt, parseErr := time.Parse(time.RFC3339Nano, registeredAt)
	if parseErr != nil {
		return ledger.User{}, errors.Join(ledger.ErrScanningDBRowFailed, parseErr)
	}

	return ledger.User{
		Address:      address,
		Name:         name,
		Email:        email,
		RegisteredAt: parsedAt,
		IsRegistered: true,
	}, nil
}

// BorrowBook marks the book unavailable, records the borrower and adds the
// full tendered amount to the treasury, all in one transaction.
func (l *Ledger) BorrowBook(ctx context.Context, caller ledger.Address, bookID ledger.BookID, paid ledger.Money) error {
	err := l.withTx(ctx, func(tx *sql.Tx) error {
		if initErr := l.requireInitializedTx(ctx, tx); initErr != nil {
			return initErr
		}

		if validateErr := ledger.ValidatePaidAmount(paid); validateErr != nil {
			return validateErr
		}

		book, found, bookErr := l.bookTx(ctx, tx, bookID)
		if bookErr != nil {
			return bookErr
		}
		if !found {
			return ledger.ErrBookNotFound
		}

		registered, existsErr := l.userExistsTx(ctx, tx, caller)
		if existsErr != nil {
			return existsErr
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

		// The guard on available serializes concurrent borrows even if the
		// driver allows the read above to see a stale row.
		result, execErr := tx.ExecContext(ctx,
			`UPDATE library_books SET available = 0 WHERE id = ? AND available = 1`, uint64(bookID),
		)
		if execErr != nil {
			return errors.Join(ledger.ErrMutatingLedgerFailed, execErr)
		}
		if affected, affectedErr := result.RowsAffected(); affectedErr != nil {
			return errors.Join(ledger.ErrMutatingLedgerFailed, affectedErr)
		} else if affected == 0 {
			return ledger.ErrBookUnavailable
		}

		if _, execErr = tx.ExecContext(ctx,
			`INSERT INTO library_borrowers (book_id, address) VALUES (?, ?)`, uint64(bookID), caller.String(),
		); execErr != nil {
			return errors.Join(ledger.ErrMutatingLedgerFailed, execErr)
		}

		if _, execErr = tx.ExecContext(ctx,
			`UPDATE library_treasury SET balance = balance + ? WHERE id = 1`, int64(paid),
		); execErr != nil {
			return errors.Join(ledger.ErrMutatingLedgerFailed, execErr)
		}

		return l.appendRecordTx(ctx, tx, record)
	})
	if err != nil {
		return err
	}

	l.observeOperation("borrow_book", logAttrBookID, uint64(bookID), logAttrAddress, caller.String())

	return nil
}

// ReturnBook marks the book available again and deletes the borrow record.
func (l *Ledger) ReturnBook(ctx context.Context, caller ledger.Address, bookID ledger.BookID) error {
	err := l.withTx(ctx, func(tx *sql.Tx) error {
		if _, ownerErr := l.requireOwnerTx(ctx, tx, caller); ownerErr != nil {
			return ownerErr
		}

		book, found, bookErr := l.bookTx(ctx, tx, bookID)
		if bookErr != nil {
			return bookErr
		}
		if !found {
			return ledger.ErrBookNotFound
		}

		if book.Available {
			return ledger.ErrBookAlreadyAvailable
		}

		var borrower string
		if scanErr := tx.QueryRowContext(ctx,
			`SELECT address FROM library_borrowers WHERE book_id = ?`, uint64(bookID),
		).Scan(&borrower); scanErr != nil && !errors.Is(scanErr, sql.ErrNoRows) {
			return errors.Join(ledger.ErrQueryingLedgerFailed, scanErr)
		}

		record, recordErr := ledger.RecordFrom(
			ledger.BookReturnedRecordType,
			l.clock(),
			ledger.BookReturnedPayload{BookID: bookID, Borrower: ledger.Address(borrower)},
		)
		if recordErr != nil {
			return recordErr
		}

		if _, execErr := tx.ExecContext(ctx,
			`UPDATE library_books SET available = 1 WHERE id = ?`, uint64(bookID),
		); execErr != nil {
			return errors.Join(ledger.ErrMutatingLedgerFailed, execErr)
		}

		if _, execErr := tx.ExecContext(ctx,
			`DELETE FROM library_borrowers WHERE book_id = ?`, uint64(bookID),
		); execErr != nil {
			return errors.Join(ledger.ErrMutatingLedgerFailed, execErr)
		}

		return l.appendRecordTx(ctx, tx, record)
	})
	if err != nil {
		return err
	}

	l.observeOperation("return_book", logAttrBookID, uint64(bookID))

	return nil
}

// GetBookBorrower returns the current borrower of the book, owner-only.
func (l *Ledger) GetBookBorrower(ctx context.Context, caller ledger.Address, bookID ledger.BookID) (ledger.Address, error) {
	if err := l.requireOwner(ctx, caller); err != nil {
		return "", err
	}

	var exists int
	if err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM library_books WHERE id = ?`, uint64(bookID),
	).Scan(&exists); err != nil {
		return "", errors.Join(ledger.ErrQueryingLedgerFailed, err)
	}
	if exists == 0 {
		return "", ledger.ErrBookNotFound
	}

	var borrower string
	err := l.db.QueryRowContext(ctx,
		`SELECT address FROM library_borrowers WHERE book_id = ?`, uint64(bookID),
	).Scan(&borrower)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", errors.Join(ledger.ErrQueryingLedgerFailed, err)
	}

	return ledger.Address(borrower), nil
}

// GetAllBooks returns a full catalog snapshot ordered by id.
func (l *Ledger) GetAllBooks(ctx context.Context) (ledger.Books, error) {
	if err := l.requireInitialized(ctx); err != nil {
		return nil, err
	}

	return l.queryBooks(ctx,
		`SELECT id, title, author, borrow_price, available FROM library_books ORDER BY id`,
	)
}

// GetBorrowedBooks returns the books currently borrowed by the caller, ordered by id.
func (l *Ledger) GetBorrowedBooks(ctx context.Context, caller ledger.Address) (ledger.Books, error) {
	if err := l.requireInitialized(ctx); err != nil {
		return nil, err
	}

	return l.queryBooks(ctx,
		`SELECT b.id, b.title, b.author, b.borrow_price, b.available
		 FROM library_books b
		 JOIN library_borrowers br ON br.book_id = b.id
		 WHERE br.address = ?
		 ORDER BY b.id`,
		caller.String(),
	)
}

// Initialized reports whether the one-time initialization has happened.
func (l *Ledger) Initialized(ctx context.Context) (bool, error) {
	_, initialized, err := l.owner(ctx)
	if err != nil {
		return false, err
	}

	return initialized, nil
}

// Owner returns the current owner address.
func (l *Ledger) Owner(ctx context.Context) (ledger.Address, error) {
	owner, initialized, err := l.owner(ctx)
	if err != nil {
		return "", err
	}
	if !initialized {
		return "", ledger.ErrNotInitialized
	}

	return owner, nil
}

// BookCount returns the number of catalog entries.
func (l *Ledger) BookCount(ctx context.Context) (uint64, error) {
	if err := l.requireInitialized(ctx); err != nil {
		return 0, err
	}

	var count uint64
	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM library_books`).Scan(&count); err != nil {
		return 0, errors.Join(ledger.ErrQueryingLedgerFailed, err)
	}

	return count, nil
}

// TreasuryBalance returns the accumulated borrow fees held by the ledger.
func (l *Ledger) TreasuryBalance(ctx context.Context) (ledger.Money, error) {
	if err := l.requireInitialized(ctx); err != nil {
		return 0, err
	}

	var balance int64
	if err := l.db.QueryRowContext(ctx, `SELECT balance FROM library_treasury WHERE id = 1`).Scan(&balance); err != nil {
		return 0, errors.Join(ledger.ErrQueryingLedgerFailed, err)
	}

	return ledger.Money(balance), nil
}

// Journal returns all records in append order.
func (l *Ledger) Journal(ctx context.Context) (ledger.Records, error) {
	if err := l.requireInitialized(ctx); err != nil {
		return nil, err
	}

	rows, err := l.db.QueryContext(ctx,
		`SELECT record_type, occurred_at, payload, metadata FROM library_records ORDER BY sequence_number`,
	)
	if err != nil {
		return nil, errors.Join(ledger.ErrQueryingLedgerFailed, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	records := make(ledger.Records, 0)

	for rows.Next() {
		var (
			recordType string
			occurredAt string
			payload    string
			metadata   string
		)

		if scanErr := rows.Scan(&recordType, &occurredAt, &payload, &metadata); scanErr != nil {
			return nil, errors.Join(ledger.ErrScanningDBRowFailed, scanErr)
		}

		parsedAt, parseErr := time.Parse(time.RFC3339Nano, occurredAt)
		if parseErr != nil {
			return nil, errors.Join(ledger.ErrScanningDBRowFailed, parseErr)
		}

		record, buildErr := ledger.BuildRecord(recordType, parsedAt, []byte(payload), []byte(metadata))
		if buildErr != nil {
			return nil, buildErr
		}

		records = append(records, record)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, errors.Join(ledger.ErrQueryingLedgerFailed, rowsErr)
	}

	return records, nil
}

/*** internal helpers ***/

// withTx runs fn inside a transaction, committing on success and rolling
// back on any error.
func (l *Ledger) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Join(ledger.ErrBeginTxFailed, err)
	}

	if fnErr := fn(tx); fnErr != nil {
		_ = tx.Rollback() // the original error matters more

		return fnErr
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return errors.Join(ledger.ErrCommitTxFailed, commitErr)
	}

	return nil
}

func (l *Ledger) owner(ctx context.Context) (ledger.Address, bool, error) {
	var address string

	err := l.db.QueryRowContext(ctx, `SELECT address FROM library_owner WHERE id = 1`).Scan(&address)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Join(ledger.ErrQueryingLedgerFailed, err)
	}

	return ledger.Address(address), true, nil
}

func (l *Ledger) ownerTx(ctx context.Context, tx *sql.Tx) (ledger.Address, bool, error) {
	var address string

	err := tx.QueryRowContext(ctx, `SELECT address FROM library_owner WHERE id = 1`).Scan(&address)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Join(ledger.ErrQueryingLedgerFailed, err)
	}

	return ledger.Address(address), true, nil
}

func (l *Ledger) requireInitialized(ctx context.Context) error {
	_, initialized, err := l.owner(ctx)
	if err != nil {
		return err
	}
	if !initialized {
		return ledger.ErrNotInitialized
	}

	return nil
}

func (l *Ledger) requireInitializedTx(ctx context.Context, tx *sql.Tx) error {
	_, initialized, err := l.ownerTx(ctx, tx)
	if err != nil {
		return err
	}
	if !initialized {
		return ledger.ErrNotInitialized
	}

	return nil
}

func (l *Ledger) requireOwner(ctx context.Context, caller ledger.Address) error {
	owner, initialized, err := l.owner(ctx)
	if err != nil {
		return err
	}
	if !initialized {
		return ledger.ErrNotInitialized
	}
	if caller != owner {
		return ledger.ErrUnauthorized
	}

	return nil
}

func (l *Ledger) requireOwnerTx(ctx context.Context, tx *sql.Tx, caller ledger.Address) (ledger.Address, error) {
	owner, initialized, err := l.ownerTx(ctx, tx)
	if err != nil {
		return "", err
	}
	if !initialized {
		return "", ledger.ErrNotInitialized
	}
	if caller != owner {
		return "", ledger.ErrUnauthorized
	}

	return owner, nil
}

func (l *Ledger) bookTx(ctx context.Context, tx *sql.Tx, bookID ledger.BookID) (ledger.Book, bool, error) {
	var (
		title     string
		author    string
		price     int64
		available int
	)

	err := tx.QueryRowContext(ctx,
		`SELECT title, author, borrow_price, available FROM library_books WHERE id = ?`, uint64(bookID),
	).Scan(&title, &author, &price, &available)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Book{}, false, nil
	}
	if err != nil {
		return ledger.Book{}, false, errors.Join(ledger.ErrQueryingLedgerFailed, err)
	}

	return ledger.Book{
		ID:          bookID,
		Title:       title,
		Author:      author,
		BorrowPrice: ledger.Money(price),
		Available:   available != 0,
	}, true, nil
}

func (l *Ledger) userExistsTx(ctx context.Context, tx *sql.Tx, address ledger.Address) (bool, error) {
	var count int

	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM library_users WHERE address = ?`, address.String(),
	).Scan(&count)
	if err != nil {
		return false, errors.Join(ledger.ErrQueryingLedgerFailed, err)
	}

	return count > 0, nil
}

func (l *Ledger) appendRecordTx(ctx context.Context, tx *sql.Tx, record ledger.Record) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO library_records (record_type, occurred_at, payload, metadata) VALUES (?, ?, ?, ?)`,
		record.RecordType,
		record.OccurredAt.UTC().Format(time.RFC3339Nano),
		string(record.PayloadJSON),
		string(record.MetadataJSON),
	); err != nil {
		return errors.Join(ledger.ErrMutatingLedgerFailed, err)
	}

	return nil
}

func (l *Ledger) queryBooks(ctx context.Context, query string, args ...any) (ledger.Books, error) {
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Join(ledger.ErrQueryingLedgerFailed, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	books := make(ledger.Books, 0)

	for rows.Next() {
		var (
			id        uint64
			title     string
			author    string
			price     int64
			available int
		)

		if scanErr := rows.Scan(&id, &title, &author, &price, &available); scanErr != nil {
			return nil, errors.Join(ledger.ErrScanningDBRowFailed, scanErr)
		}

		books = append(books, ledger.Book{
			ID:          ledger.BookID(id),
			Title:       title,
			Author:      author,
			BorrowPrice: ledger.Money(price),
			Available:   available != 0,
		})
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, errors.Join(ledger.ErrQueryingLedgerFailed, rowsErr)
	}

	return books, nil
}

// observeOperation logs the completed operation at info level and counts it
// if a metrics collector is configured.
func (l *Ledger) observeOperation(operation string, args ...any) {
	if l.logger != nil {
		l.logger.Info(logMsgOperation+operation, args...)
	}

	if l.metricsCollector != nil {
		l.metricsCollector.IncrementCounter(metricOperationCount, map[string]string{labelOperation: operation})
	}
}
