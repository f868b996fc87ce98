package postgresengine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libledger/library-ledger-go/ledger"
	"github.com/libledger/library-ledger-go/ledger/postgresengine"
	"github.com/libledger/library-ledger-go/testutil/config"
	"github.com/libledger/library-ledger-go/testutil/postgreswrapper"
)

const (
	adminAddress  = ledger.Address("0xA11CE00000000000000000000000000000000001")
	readerAddress = ledger.Address("0xB0B0000000000000000000000000000000000002")
	otherAddress  = ledger.Address("0xCAFE000000000000000000000000000000000003")

	hobbitTitle  = "The Hobbit"
	hobbitAuthor = "J.R.R. Tolkien"
	hobbitPrice  = ledger.Money(100)
)

func Test_NewLedger_When_NilDatabaseConnection(t *testing.T) {
	// act
	_, err := postgresengine.NewLedgerFromPGXPool(nil)

	// assert
	assert.ErrorIs(t, err, ledger.ErrNilDatabaseConnection)
}

func Test_NewLedger_When_EmptyTablePrefix(t *testing.T) {
	// arrange
	db := config.PostgresSQLDBSingleConfig()
	defer func() { _ = db.Close() }()

	// act
	_, err := postgresengine.NewLedgerFromSQLDB(db, postgresengine.WithTablePrefix(""))

	// assert
	assert.ErrorIs(t, err, ledger.ErrEmptyTablePrefix)
}

func Test_Initialize_SetsTheOwner(t *testing.T) {
	// arrange
	ctx := context.Background()
	wrapper := postgreswrapper.CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	lib := wrapper.GetLedger()

	// act
	err := lib.Initialize(ctx, adminAddress)

	// assert
	assert.NoError(t, err)

	owner, err := lib.Owner(ctx)
	assert.NoError(t, err)
	assert.Equal(t, adminAddress, owner)

	initialized, err := lib.Initialized(ctx)
	assert.NoError(t, err)
	assert.True(t, initialized)

	// act again
	err = lib.Initialize(ctx, otherAddress)

	// assert again
	assert.ErrorIs(t, err, ledger.ErrAlreadyInitialized)
}

func Test_Operations_When_NotInitialized(t *testing.T) {
	// arrange
	ctx := context.Background()
	wrapper := postgreswrapper.CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	lib := wrapper.GetLedger()

	// act + assert
	_, err := lib.AddBook(ctx, adminAddress, hobbitTitle, hobbitAuthor, hobbitPrice)
	assert.ErrorIs(t, err, ledger.ErrNotInitialized)

	assert.ErrorIs(t, lib.RegisterUser(ctx, readerAddress, "John Doe", "john@example.com"), ledger.ErrNotInitialized)
	assert.ErrorIs(t, lib.BorrowBook(ctx, readerAddress, 1, hobbitPrice), ledger.ErrNotInitialized)

	_, err = lib.Owner(ctx)
	assert.ErrorIs(t, err, ledger.ErrNotInitialized)

	initialized, err := lib.Initialized(ctx)
	assert.NoError(t, err)
	assert.False(t, initialized)
}

func Test_AddBook_AssignsSequentialIDs(t *testing.T) {
	// arrange
	ctx := context.Background()
	wrapper := postgreswrapper.CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	lib := givenInitializedLedger(t, wrapper)

	// act
	firstID, firstErr := lib.AddBook(ctx, adminAddress, hobbitTitle, hobbitAuthor, hobbitPrice)
	secondID, secondErr := lib.AddBook(ctx, adminAddress, "The Silmarillion", hobbitAuthor, 200)

	// assert
	assert.NoError(t, firstErr)
	assert.NoError(t, secondErr)
	assert.Equal(t, ledger.BookID(1), firstID)
	assert.Equal(t, ledger.BookID(2), secondID)

	count, err := lib.BookCount(ctx)
	assert.NoError(t, err)
	assert.Equal(t, uint64(2), count)
}

func Test_OwnerOnlyOperations_When_CallerIsNotOwner(t *testing.T) {
	// arrange
	ctx := context.Background()
	wrapper := postgreswrapper.CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	lib := givenInitializedLedger(t, wrapper)
	givenBookAndRegisteredReader(t, lib)

	// act + assert
	_, err := lib.AddBook(ctx, readerAddress, hobbitTitle, hobbitAuthor, hobbitPrice)
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)

	assert.ErrorIs(t, lib.TransferOwnership(ctx, readerAddress, otherAddress), ledger.ErrUnauthorized)
	assert.ErrorIs(t, lib.ReturnBook(ctx, readerAddress, 1), ledger.ErrUnauthorized)

	_, err = lib.GetBookBorrower(ctx, readerAddress, 1)
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)

	_, err = lib.WithdrawFunds(ctx, readerAddress)
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)
}

func Test_RoundTrip_AddBorrowReturn(t *testing.T) {
	// arrange
	ctx := context.Background()
	wrapper := postgreswrapper.CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	lib := givenInitializedLedger(t, wrapper)
	givenBookAndRegisteredReader(t, lib)

	// act
	err := lib.BorrowBook(ctx, readerAddress, 1, hobbitPrice)

	// assert
	require.NoError(t, err)

	books, err := lib.GetAllBooks(ctx)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.False(t, books[0].Available)
	assert.Equal(t, hobbitTitle, books[0].Title)
	assert.Equal(t, hobbitAuthor, books[0].Author)
	assert.Equal(t, hobbitPrice, books[0].BorrowPrice)

	borrower, err := lib.GetBookBorrower(ctx, adminAddress, 1)
	require.NoError(t, err)
	assert.Equal(t, readerAddress, borrower)

	borrowed, err := lib.GetBorrowedBooks(ctx, readerAddress)
	require.NoError(t, err)
	require.Len(t, borrowed, 1)
	assert.Equal(t, ledger.BookID(1), borrowed[0].ID)

	borrowed, err = lib.GetBorrowedBooks(ctx, otherAddress)
	require.NoError(t, err)
	assert.Empty(t, borrowed)

	balance, err := lib.TreasuryBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, hobbitPrice, balance)

	// act again
	err = lib.ReturnBook(ctx, adminAddress, 1)

	// assert again
	require.NoError(t, err)

	books, err = lib.GetAllBooks(ctx)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.True(t, books[0].Available)

	borrower, err = lib.GetBookBorrower(ctx, adminAddress, 1)
	require.NoError(t, err)
	assert.True(t, borrower.IsZero())

	balance, err = lib.TreasuryBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, hobbitPrice, balance, "returns never refund the borrow fee")
}

func Test_BorrowBook_Guards(t *testing.T) {
	// arrange
	ctx := context.Background()
	wrapper := postgreswrapper.CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	lib := givenInitializedLedger(t, wrapper)
	givenBookAndRegisteredReader(t, lib)

	// act + assert
	assert.ErrorIs(t, lib.BorrowBook(ctx, readerAddress, 42, hobbitPrice), ledger.ErrBookNotFound)
	assert.ErrorIs(t, lib.BorrowBook(ctx, otherAddress, 1, hobbitPrice), ledger.ErrNotRegistered)
	assert.ErrorIs(t, lib.BorrowBook(ctx, readerAddress, 1, hobbitPrice-1), ledger.ErrInsufficientFunds)
	assert.ErrorIs(t, lib.BorrowBook(ctx, readerAddress, 1, -1), ledger.ErrInvalidArgument)

	require.NoError(t, lib.BorrowBook(ctx, readerAddress, 1, hobbitPrice))
	require.NoError(t, lib.RegisterUser(ctx, otherAddress, "Jane Smith", "jane@example.com"))
	assert.ErrorIs(t, lib.BorrowBook(ctx, otherAddress, 1, hobbitPrice), ledger.ErrBookUnavailable)

	// failed borrows must not have touched the treasury
	balance, err := lib.TreasuryBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, hobbitPrice, balance)
}

func Test_BorrowBook_KeepsTheFullTenderedAmount(t *testing.T) {
	// arrange
	ctx := context.Background()
	wrapper := postgreswrapper.CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	lib := givenInitializedLedger(t, wrapper)
	givenBookAndRegisteredReader(t, lib)

	overpaid := hobbitPrice + 50

	// act
	err := lib.BorrowBook(ctx, readerAddress, 1, overpaid)

	// assert
	require.NoError(t, err)

	balance, err := lib.TreasuryBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, overpaid, balance, "no change is given")
}

func Test_RegisterUser_StoresAndProtectsTheRecord(t *testing.T) {
	// arrange
	ctx := context.Background()
	fakeNow := time.Unix(1700000000, 0).UTC()
	wrapper := postgreswrapper.CreateWrapperWithTestConfig(t, postgresengine.WithClock(func() time.Time { return fakeNow }))
	defer wrapper.Close()
	lib := givenInitializedLedger(t, wrapper)

	// act
	err := lib.RegisterUser(ctx, readerAddress, "John Doe", "john@example.com")

	// assert
	require.NoError(t, err)

	user, err := lib.GetUserInfo(ctx, readerAddress)
	require.NoError(t, err)
	assert.True(t, user.IsRegistered)
	assert.Equal(t, "John Doe", user.Name)
	assert.Equal(t, "john@example.com", user.Email)
	assert.True(t, fakeNow.Equal(user.RegisteredAt))

	// act again: duplicate registration
	err = lib.RegisterUser(ctx, readerAddress, "John Smith", "smith@example.com")

	// assert again
	assert.ErrorIs(t, err, ledger.ErrAlreadyRegistered)

	user, err = lib.GetUserInfo(ctx, readerAddress)
	require.NoError(t, err)
	assert.Equal(t, "John Doe", user.Name, "the original record must be unchanged")

	// probing an unknown address is not an error
	unknown, err := lib.GetUserInfo(ctx, otherAddress)
	assert.NoError(t, err)
	assert.False(t, unknown.IsRegistered)
}

func Test_TransferOwnership_IsEffectiveImmediately(t *testing.T) {
	// arrange
	ctx := context.Background()
	wrapper := postgreswrapper.CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	lib := givenInitializedLedger(t, wrapper)

	// act
	err := lib.TransferOwnership(ctx, adminAddress, otherAddress)

	// assert
	require.NoError(t, err)

	_, err = lib.AddBook(ctx, adminAddress, hobbitTitle, hobbitAuthor, hobbitPrice)
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)

	_, err = lib.AddBook(ctx, otherAddress, hobbitTitle, hobbitAuthor, hobbitPrice)
	assert.NoError(t, err)
}

func Test_WithdrawFunds_When_TransferFails_RollsBackTheTransaction(t *testing.T) {
	// arrange
	ctx := context.Background()
	transferErr := errors.New("payout rejected by wallet")
	failRemaining := 1
	transferer := ledger.TransferFunc(func(_ context.Context, _ ledger.Address, _ ledger.Money) error {
		if failRemaining > 0 {
			failRemaining--
			return transferErr
		}
		return nil
	})

	wrapper := postgreswrapper.CreateWrapperWithTestConfig(t, postgresengine.WithFundsTransferer(transferer))
	defer wrapper.Close()
	lib := givenInitializedLedger(t, wrapper)
	givenBookAndRegisteredReader(t, lib)
	require.NoError(t, lib.BorrowBook(ctx, readerAddress, 1, hobbitPrice))

	// act
	_, err := lib.WithdrawFunds(ctx, adminAddress)

	// assert: the transaction must have been rolled back
	assert.ErrorIs(t, err, ledger.ErrTransferFailed)

	balance, balanceErr := lib.TreasuryBalance(ctx)
	require.NoError(t, balanceErr)
	assert.Equal(t, hobbitPrice, balance)

	records, recordsErr := lib.Journal(ctx)
	require.NoError(t, recordsErr)
	for _, record := range records {
		assert.NotEqual(t, ledger.FundsWithdrawnRecordType, record.RecordType)
	}

	// act: the retry succeeds and pays out the same amount
	amount, err := lib.WithdrawFunds(ctx, adminAddress)

	// assert
	assert.NoError(t, err)
	assert.Equal(t, hobbitPrice, amount)

	balance, balanceErr = lib.TreasuryBalance(ctx)
	require.NoError(t, balanceErr)
	assert.Zero(t, balance)

	// act: nothing left for a third withdrawal
	_, err = lib.WithdrawFunds(ctx, adminAddress)

	// assert
	assert.ErrorIs(t, err, ledger.ErrNothingToWithdraw)
}

func Test_Journal_SurvivesTheFullScenario(t *testing.T) {
	// arrange
	ctx := context.Background()
	wrapper := postgreswrapper.CreateWrapperWithTestConfig(t)
	defer wrapper.Close()
	lib := givenInitializedLedger(t, wrapper)
	givenBookAndRegisteredReader(t, lib)

	// act
	require.NoError(t, lib.BorrowBook(ctx, readerAddress, 1, hobbitPrice))
	require.NoError(t, lib.ReturnBook(ctx, adminAddress, 1))

	_, err := lib.WithdrawFunds(ctx, adminAddress)
	require.NoError(t, err)

	// assert
	records, err := lib.Journal(ctx)
	require.NoError(t, err)

	recordTypes := make([]string, 0, len(records))
	for _, record := range records {
		recordTypes = append(recordTypes, record.RecordType)
	}

	assert.Equal(t, []string{
		ledger.LibraryInitializedRecordType,
		ledger.BookAddedRecordType,
		ledger.UserRegisteredRecordType,
		ledger.BookBorrowedRecordType,
		ledger.BookReturnedRecordType,
		ledger.FundsWithdrawnRecordType,
	}, recordTypes)

	var payload ledger.BookBorrowedPayload
	require.NoError(t, ledger.PayloadFromRecord(records[3], &payload))
	assert.Equal(t, ledger.BookID(1), payload.BookID)
	assert.Equal(t, readerAddress, payload.Borrower)
	assert.Equal(t, hobbitPrice, payload.Paid)

	metadata, err := ledger.RecordMetadataFrom(records[3])
	require.NoError(t, err)
	assert.NotEmpty(t, metadata.MessageID)
}

/*** Fixture helpers ***/

func givenInitializedLedger(t *testing.T, wrapper postgreswrapper.Wrapper) *postgresengine.Ledger {
	t.Helper()

	lib := wrapper.GetLedger()
	require.NoError(t, lib.Initialize(context.Background(), adminAddress))

	return lib
}

func givenBookAndRegisteredReader(t *testing.T, lib *postgresengine.Ledger) {
	t.Helper()

	ctx := context.Background()

	_, err := lib.AddBook(ctx, adminAddress, hobbitTitle, hobbitAuthor, hobbitPrice)
	require.NoError(t, err)

	require.NoError(t, lib.RegisterUser(ctx, readerAddress, "John Doe", "john@example.com"))
}
