package memoryengine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/libledger/library-ledger-go/ledger"
)

const (
	logMsgOperation      = "ledger operation: "
	logMsgTransferFailed = "outward funds transfer failed, balance restored"
	logAttrError         = "error"
	logAttrBookID        = "book_id"
	logAttrAddress       = "address"
	logAttrAmount        = "amount"
	metricOperationCount = "ledger_operations_total"
	labelOperation       = "operation"
)

// Ledger is the in-memory engine. It owns all entity collections
// exclusively; concurrent access is mediated by a single RWMutex so every
// operation executes as an atomic unit.
type Ledger struct {
	mu sync.RWMutex

	initialized bool
	owner       ledger.Address
	books       ledger.Books
	borrowers   map[ledger.BookID]ledger.Address
	users       map[ledger.Address]ledger.User
	balance     ledger.Money
	journal     ledger.Records

	clock            ledger.Clock
	logger           ledger.Logger
	metricsCollector ledger.MetricsCollector
	fundsTransferer  ledger.FundsTransferer
}

// interface guard
var _ ledger.Ledger = (*Ledger)(nil)

// NewLedger creates a new in-memory Ledger with optional configuration.
func NewLedger(options ...Option) (*Ledger, error) {
	l := &Ledger{
		borrowers: make(map[ledger.BookID]ledger.Address),
		users:     make(map[ledger.Address]ledger.User),
		clock:     time.Now,
	}

	for _, option := range options {
		if err := option(l); err != nil {
			return nil, err
		}
	}

	return l, nil
}

// Initialize sets the owner once. It is the only mutating operation callable
// on an uninitialized ledger.
func (l *Ledger) Initialize(_ context.Context, caller ledger.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.initialized {
		return ledger.ErrAlreadyInitialized
	}

	if caller.IsZero() {
		return ledger.ErrInvalidAddress
	}

	record, err := ledger.RecordFrom(
		ledger.LibraryInitializedRecordType,
		l.clock(),
		ledger.LibraryInitializedPayload{Owner: caller},
	)
	if err != nil {
		return err
	}

	l.initialized = true
	l.owner = caller
	l.journal = append(l.journal, record)

	l.observeOperation("initialize", logAttrAddress, caller.String())

	return nil
}

// TransferOwnership replaces the owner, effective immediately.
func (l *Ledger) TransferOwnership(_ context.Context, caller ledger.Address, newOwner ledger.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireOwner(caller); err != nil {
		return err
	}

	if newOwner.IsZero() {
		return ledger.ErrInvalidAddress
	}

	record, err := ledger.RecordFrom(
		ledger.OwnershipTransferredRecordType,
		l.clock(),
		ledger.OwnershipTransferredPayload{PreviousOwner: l.owner, NewOwner: newOwner},
	)
	if err != nil {
		return err
	}

	l.owner = newOwner
	l.journal = append(l.journal, record)

	l.observeOperation("transfer_ownership", logAttrAddress, newOwner.String())

	return nil
}

// AddBook inserts a new catalog entry and returns its sequential id.
func (l *Ledger) AddBook(
	_ context.Context,
	caller ledger.Address,
	title string,
	author string,
	borrowPrice ledger.Money,
) (ledger.BookID, error) {

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireOwner(caller); err != nil {
		return 0, err
	}

	if err := ledger.ValidateBookArgs(title, author, borrowPrice); err != nil {
		return 0, err
	}

	bookID := ledger.BookID(len(l.books) + 1)

	record, err := ledger.RecordFrom(
		ledger.BookAddedRecordType,
		l.clock(),
		ledger.BookAddedPayload{BookID: bookID, Title: title, Author: author, BorrowPrice: borrowPrice},
	)
	if err != nil {
		return 0, err
	}

	l.books = append(l.books, ledger.Book{
		ID:          bookID,
		Title:       title,
		Author:      author,
		BorrowPrice: borrowPrice,
		Available:   true,
	})
	l.journal = append(l.journal, record)

	l.observeOperation("add_book", logAttrBookID, uint64(bookID))

	return bookID, nil
}

// WithdrawFunds atomically zeroes the treasury balance and hands the full
// amount to the configured funds transferer. A failed transfer restores the
// balance, so the post-state equals the pre-call state.
func (l *Ledger) WithdrawFunds(ctx context.Context, caller ledger.Address) (ledger.Money, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireOwner(caller); err != nil {
		return 0, err
	}

	if l.balance == 0 {
		return 0, ledger.ErrNothingToWithdraw
	}

	amount := l.balance

	record, err := ledger.RecordFrom(
		ledger.FundsWithdrawnRecordType,
		l.clock(),
		ledger.FundsWithdrawnPayload{Owner: l.owner, Amount: amount},
	)
	if err != nil {
		return 0, err
	}

	l.balance = 0

	if l.fundsTransferer != nil {
		if transferErr := l.fundsTransferer.Transfer(ctx, l.owner, amount); transferErr != nil {
			l.balance = amount // rollback

			if l.logger != nil {
				l.logger.Error(logMsgTransferFailed, logAttrError, transferErr.Error(), logAttrAmount, int64(amount))
			}

			return 0, errors.Join(ledger.ErrTransferFailed, transferErr)
		}
	}

	l.journal = append(l.journal, record)

	l.observeOperation("withdraw_funds", logAttrAmount, int64(amount))

	return amount, nil
}

// RegisterUser creates the permanent user record for the caller.
func (l *Ledger) RegisterUser(_ context.Context, caller ledger.Address, name string, email string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireInitialized(); err != nil {
		return err
	}

	if caller.IsZero() {
		return ledger.ErrInvalidAddress
	}

	if _, exists := l.users[caller]; exists {
		return ledger.ErrAlreadyRegistered
	}

	if err := ledger.ValidateUserArgs(name, email); err != nil {
		return err
	}

	now := l.clock()

	record, err := ledger.RecordFrom(
		ledger.UserRegisteredRecordType,
		now,
		ledger.UserRegisteredPayload{Address: caller, Name: name, Email: email},
	)
	if err != nil {
		return err
	}

	l.users[caller] = ledger.User{
		Address:      caller,
		Name:         name,
		Email:        email,
		RegisteredAt: now,
		IsRegistered: true,
	}
	l.journal = append(l.journal, record)

	l.observeOperation("register_user", logAttrAddress, caller.String())

	return nil
}

// GetUserInfo returns the user record for the address, or a zero User with
// IsRegistered == false: callers routinely probe before registering.
func (l *Ledger) GetUserInfo(_ context.Context, address ledger.Address) (ledger.User, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if err := l.requireInitialized(); err != nil {
		return ledger.User{}, err
	}

	return l.users[address], nil
}

// BorrowBook marks the book unavailable, records the borrower and adds the
// full tendered amount to the treasury, all as one indivisible unit.
func (l *Ledger) BorrowBook(_ context.Context, caller ledger.Address, bookID ledger.BookID, paid ledger.Money) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireInitialized(); err != nil {
		return err
	}

	if err := ledger.ValidatePaidAmount(paid); err != nil {
		return err
	}

	book, exists := l.bookByID(bookID)
	if !exists {
		return ledger.ErrBookNotFound
	}

	if _, registered := l.users[caller]; !registered {
		return ledger.ErrNotRegistered
	}

	if !book.Available {
		return ledger.ErrBookUnavailable
	}

	if paid < book.BorrowPrice {
		return ledger.ErrInsufficientFunds
	}

	record, err := ledger.RecordFrom(
		ledger.BookBorrowedRecordType,
		l.clock(),
		ledger.BookBorrowedPayload{BookID: bookID, Borrower: caller, Price: book.BorrowPrice, Paid: paid},
	)
	if err != nil {
		return err
	}

	l.books[bookID-1].Available = false
	l.borrowers[bookID] = caller
	l.balance += paid
	l.journal = append(l.journal, record)

	l.observeOperation("borrow_book", logAttrBookID, uint64(bookID), logAttrAddress, caller.String())

	return nil
}

// ReturnBook marks the book available again and deletes the borrow record.
// Returns are owner-mediated; the borrow fee is not refunded.
func (l *Ledger) ReturnBook(_ context.Context, caller ledger.Address, bookID ledger.BookID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireOwner(caller); err != nil {
		return err
	}

	book, exists := l.bookByID(bookID)
	if !exists {
		return ledger.ErrBookNotFound
	}

	if book.Available {
		return ledger.ErrBookAlreadyAvailable
	}

	record, err := ledger.RecordFrom(
		ledger.BookReturnedRecordType,
		l.clock(),
		ledger.BookReturnedPayload{BookID: bookID, Borrower: l.borrowers[bookID]},
	)
	if err != nil {
		return err
	}

	l.books[bookID-1].Available = true
	delete(l.borrowers, bookID)
	l.journal = append(l.journal, record)

	l.observeOperation("return_book", logAttrBookID, uint64(bookID))

	return nil
}

// GetBookBorrower returns the current borrower of the book. Borrower
// identity is private, exposed to the owner only; the zero Address means
// the book is not borrowed.
func (l *Ledger) GetBookBorrower(_ context.Context, caller ledger.Address, bookID ledger.BookID) (ledger.Address, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if err := l.requireOwner(caller); err != nil {
		return "", err
	}

	if _, exists := l.bookByID(bookID); !exists {
		return "", ledger.ErrBookNotFound
	}

	return l.borrowers[bookID], nil
}

// GetAllBooks returns a full catalog snapshot ordered by id.
func (l *Ledger) GetAllBooks(_ context.Context) (ledger.Books, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if err := l.requireInitialized(); err != nil {
		return nil, err
	}

	books := make(ledger.Books, len(l.books))
	copy(books, l.books)

	return books, nil
}

// GetBorrowedBooks returns the books currently borrowed by the caller, ordered by id.
func (l *Ledger) GetBorrowedBooks(_ context.Context, caller ledger.Address) (ledger.Books, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if err := l.requireInitialized(); err != nil {
		return nil, err
	}

	books := make(ledger.Books, 0)

	for _, book := range l.books {
		if l.borrowers[book.ID] == caller && !caller.IsZero() {
			books = append(books, book)
		}
	}

	return books, nil
}

// Initialized reports whether the one-time initialization has happened.
// It is callable before initialization.
func (l *Ledger) Initialized(_ context.Context) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.initialized, nil
}

// Owner returns the current owner address.
func (l *Ledger) Owner(_ context.Context) (ledger.Address, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if err := l.requireInitialized(); err != nil {
		return "", err
	}

	return l.owner, nil
}

// BookCount returns the number of catalog entries.
func (l *Ledger) BookCount(_ context.Context) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if err := l.requireInitialized(); err != nil {
		return 0, err
	}

	return uint64(len(l.books)), nil
}

// TreasuryBalance returns the accumulated borrow fees held by the ledger.
func (l *Ledger) TreasuryBalance(_ context.Context) (ledger.Money, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if err := l.requireInitialized(); err != nil {
		return 0, err
	}

	return l.balance, nil
}

// Journal returns a snapshot of all records in append order.
func (l *Ledger) Journal(_ context.Context) (ledger.Records, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if err := l.requireInitialized(); err != nil {
		return nil, err
	}

	records := make(ledger.Records, len(l.journal))
	copy(records, l.journal)

	return records, nil
}

// requireInitialized must be called with the lock held.
func (l *Ledger) requireInitialized() error {
	if !l.initialized {
		return ledger.ErrNotInitialized
	}

	return nil
}

// requireOwner must be called with the lock held.
func (l *Ledger) requireOwner(caller ledger.Address) error {
	if err := l.requireInitialized(); err != nil {
		return err
	}

	if caller != l.owner {
		return ledger.ErrUnauthorized
	}

	return nil
}

// bookByID must be called with the lock held.
func (l *Ledger) bookByID(bookID ledger.BookID) (ledger.Book, bool) {
	if bookID == 0 || uint64(bookID) > uint64(len(l.books)) {
		return ledger.Book{}, false
	}

	return l.books[bookID-1], true
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
