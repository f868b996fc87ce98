package ledger

import (
	"errors"
)

// Admission errors. Every guard runs before any mutation is applied, so a
// caller receiving one of these can rely on the ledger state being unchanged.
var (
	ErrNotInitialized       = errors.New("ledger is not initialized")
	ErrAlreadyInitialized   = errors.New("ledger is already initialized")
	ErrUnauthorized         = errors.New("caller is not the library owner")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrInvalidAddress       = errors.New("invalid address")
	ErrBookNotFound         = errors.New("book does not exist")
	ErrBookUnavailable      = errors.New("book is not available")
	ErrBookAlreadyAvailable = errors.New("book is already available")
	ErrNotRegistered        = errors.New("caller is not a registered user")
	ErrAlreadyRegistered    = errors.New("user already registered")
	ErrInsufficientFunds    = errors.New("insufficient funds to borrow this book")
	ErrNothingToWithdraw    = errors.New("treasury balance is zero")
)

// ErrTransferFailed is the one error that can occur after a tentative state
// change: the outward payout in WithdrawFunds. Engines roll the balance back
// before returning it, so a retry withdraws the same amount exactly once.
var ErrTransferFailed = errors.New("outward funds transfer failed")

// Engine construction and storage errors.
var (
	ErrNilDatabaseConnection = errors.New("nil database connection supplied")
	ErrEmptyTablePrefix      = errors.New("empty table prefix supplied")
	ErrInvalidPayloadJSON    = errors.New("payload json is not valid")
	ErrInvalidMetadataJSON   = errors.New("metadata json is not valid")
	ErrQueryingLedgerFailed  = errors.New("querying the ledger failed")
	ErrMutatingLedgerFailed  = errors.New("mutating the ledger failed")
	ErrBeginTxFailed         = errors.New("beginning the transaction failed")
	ErrCommitTxFailed        = errors.New("committing the transaction failed")
	ErrScanningDBRowFailed   = errors.New("scanning the database row failed")
	ErrBuildingQueryFailed   = errors.New("building the sql query failed")
	ErrBuildingRecordFailed  = errors.New("building the journal record failed")
)
