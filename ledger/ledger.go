package ledger

import "context"

// Ledger is the operation surface shared by all storage engines.
//
// Every operation executes as an atomic unit with respect to every other
// operation: reads never observe a partially applied mutation, and two
// operations mutating the same entity are strictly serialized. Initialize
// is the only operation callable before initialization (besides the
// Initialized probe); all others fail with ErrNotInitialized until it
// succeeds.
type Ledger interface {
	// Administration (owner-only except Initialize).
	Initialize(ctx context.Context, caller Address) error
	TransferOwnership(ctx context.Context, caller Address, newOwner Address) error
	AddBook(ctx context.Context, caller Address, title string, author string, borrowPrice Money) (BookID, error)
	WithdrawFunds(ctx context.Context, caller Address) (Money, error)

	// User registration.
	RegisterUser(ctx context.Context, caller Address, name string, email string) error
	GetUserInfo(ctx context.Context, address Address) (User, error)

	// Borrowing lifecycle.
	BorrowBook(ctx context.Context, caller Address, bookID BookID, paid Money) error
	ReturnBook(ctx context.Context, caller Address, bookID BookID) error
	GetBookBorrower(ctx context.Context, caller Address, bookID BookID) (Address, error)
	GetAllBooks(ctx context.Context) (Books, error)
	GetBorrowedBooks(ctx context.Context, caller Address) (Books, error)

	// Projections of the singleton state.
	Initialized(ctx context.Context) (bool, error)
	Owner(ctx context.Context) (Address, error)
	BookCount(ctx context.Context) (uint64, error)
	TreasuryBalance(ctx context.Context) (Money, error)
	Journal(ctx context.Context) (Records, error)
}
