package memoryengine_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libledger/library-ledger-go/ledger"
	"github.com/libledger/library-ledger-go/ledger/memoryengine"
)

const (
	adminAddress  = ledger.Address("0xA11CE00000000000000000000000000000000001")
	readerAddress = ledger.Address("0xB0B0000000000000000000000000000000000002")
	otherAddress  = ledger.Address("0xCAFE000000000000000000000000000000000003")

	hobbitTitle  = "The Hobbit"
	hobbitAuthor = "J.R.R. Tolkien"
	hobbitPrice  = ledger.Money(100)
)

func Test_Initialize_SetsTheOwner(t *testing.T) {
	// arrange
	ctx := context.Background()
	lib := givenNewLedger(t)

	// act
	err := lib.Initialize(ctx, adminAddress)

	// assert
	assert.NoError(t, err, "error initializing the ledger")

	owner, err := lib.Owner(ctx)
	assert.NoError(t, err)
	assert.Equal(t, adminAddress, owner)

	initialized, err := lib.Initialized(ctx)
	assert.NoError(t, err)
	assert.True(t, initialized)
}

func Test_Initialize_When_AlreadyInitialized(t *testing.T) {
	// arrange
	ctx := context.Background()
	lib := givenInitializedLedger(t)

	// act
	err := lib.Initialize(ctx, otherAddress)

	// assert
	assert.ErrorIs(t, err, ledger.ErrAlreadyInitialized)

	owner, ownerErr := lib.Owner(ctx)
	assert.NoError(t, ownerErr)
	assert.Equal(t, adminAddress, owner, "owner must be unchanged")
}

func Test_Initialize_When_CallerIsZeroAddress(t *testing.T) {
	// arrange
	ctx := context.Background()
	lib := givenNewLedger(t)

	// act
	err := lib.Initialize(ctx, ledger.ZeroHexAddress)

	// assert
	assert.ErrorIs(t, err, ledger.ErrInvalidAddress)
}

func Test_AllOperations_When_NotInitialized(t *testing.T) {
	// arrange
	ctx := context.Background()
	lib := givenNewLedger(t)

	// act + assert
	assert.ErrorIs(t, lib.TransferOwnership(ctx, adminAddress, otherAddress), ledger.ErrNotInitialized)

	_, err := lib.AddBook(ctx, adminAddress, hobbitTitle, hobbitAuthor, hobbitPrice)
	assert.ErrorIs(t, err, ledger.ErrNotInitialized)

	_, err = lib.WithdrawFunds(ctx, adminAddress)
	assert.ErrorIs(t, err, ledger.ErrNotInitialized)

	assert.ErrorIs(t, lib.RegisterUser(ctx, readerAddress, "John Doe", "john@example.com"), ledger.ErrNotInitialized)

	_, err = lib.GetUserInfo(ctx, readerAddress)
	assert.ErrorIs(t, err, ledger.ErrNotInitialized)

	assert.ErrorIs(t, lib.BorrowBook(ctx, readerAddress, 1, hobbitPrice), ledger.ErrNotInitialized)
	assert.ErrorIs(t, lib.ReturnBook(ctx, adminAddress, 1), ledger.ErrNotInitialized)

	_, err = lib.GetBookBorrower(ctx, adminAddress, 1)
	assert.ErrorIs(t, err, ledger.ErrNotInitialized)

	_, err = lib.GetAllBooks(ctx)
	assert.ErrorIs(t, err, ledger.ErrNotInitialized)

	_, err = lib.GetBorrowedBooks(ctx, readerAddress)
	assert.ErrorIs(t, err, ledger.ErrNotInitialized)

	initialized, err := lib.Initialized(ctx)
	assert.NoError(t, err, "the initialization probe must work before initialization")
	assert.False(t, initialized)
}

func Test_TransferOwnership_IsEffectiveImmediately(t *testing.T) {
	// arrange
	ctx := context.Background()
	lib := givenInitializedLedger(t)

	// act
	err := lib.TransferOwnership(ctx, adminAddress, otherAddress)

	// assert
	assert.NoError(t, err)

	_, err = lib.AddBook(ctx, adminAddress, hobbitTitle, hobbitAuthor, hobbitPrice)
	assert.ErrorIs(t, err, ledger.ErrUnauthorized, "old owner must lose admin rights immediately")

	_, err = lib.AddBook(ctx, otherAddress, hobbitTitle, hobbitAuthor, hobbitPrice)
	assert.NoError(t, err, "new owner must gain admin rights immediately")
}

func Test_TransferOwnership_When_NewOwnerIsZeroAddress(t *testing.T) {
	// arrange
	ctx := context.Background()
	lib := givenInitializedLedger(t)

	// act
	err := lib.TransferOwnership(ctx, adminAddress, "")

	// assert
	assert.ErrorIs(t, err, ledger.ErrInvalidAddress)
}

func Test_AddBook_AssignsSequentialIDs(t *testing.T) {
	// arrange
	ctx := context.Background()
	lib := givenInitializedLedger(t)

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

func Test_AddBook_When_ArgumentsAreInvalid(t *testing.T) {
	// arrange
	ctx := context.Background()
	lib := givenInitializedLedger(t)

	testCases := []struct {
		name   string
		title  string
		author string
		price  ledger.Money
	}{
		{name: "empty title", title: "", author: hobbitAuthor, price: hobbitPrice},
		{name: "empty author", title: hobbitTitle, author: "", price: hobbitPrice},
		{name: "negative price", title: hobbitTitle, author: hobbitAuthor, price: -1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// act
			_, err := lib.AddBook(ctx, adminAddress, tc.title, tc.author, tc.price)

			// assert
			assert.ErrorIs(t, err, ledger.ErrInvalidArgument)
		})
	}

	count, err := lib.BookCount(ctx)
	assert.NoError(t, err)
	assert.Zero(t, count, "no book must have been added")
}

func Test_RoundTrip_AddBorrowReturn(t *testing.T) {
	// arrange
	ctx := context.Background()
	lib := givenLedgerWithBookAndReader(t)

	// act
	borrowErr := lib.BorrowBook(ctx, readerAddress, 1, hobbitPrice)

	// assert
	require.NoError(t, borrowErr)

	books, err := lib.GetAllBooks(ctx)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.False(t, books[0].Available)
	assert.Equal(t, hobbitTitle, books[0].Title)
	assert.Equal(t, hobbitAuthor, books[0].Author)
	assert.Equal(t, hobbitPrice, books[0].BorrowPrice)

	borrower, err := lib.GetBookBorrower(ctx, adminAddress, 1)
	assert.NoError(t, err)
	assert.Equal(t, readerAddress, borrower)

	borrowed, err := lib.GetBorrowedBooks(ctx, readerAddress)
	assert.NoError(t, err)
	require.Len(t, borrowed, 1)
	assert.Equal(t, ledger.BookID(1), borrowed[0].ID)

	// act again
	returnErr := lib.ReturnBook(ctx, adminAddress, 1)

	// assert again
	require.NoError(t, returnErr)

	books, err = lib.GetAllBooks(ctx)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.True(t, books[0].Available)
	assert.Equal(t, hobbitTitle, books[0].Title, "title must be unchanged across the cycle")
	assert.Equal(t, hobbitPrice, books[0].BorrowPrice, "price must be unchanged across the cycle")

	borrower, err = lib.GetBookBorrower(ctx, adminAddress, 1)
	assert.NoError(t, err)
	assert.True(t, borrower.IsZero(), "the borrow record must have been deleted")

	borrowed, err = lib.GetBorrowedBooks(ctx, readerAddress)
	assert.NoError(t, err)
	assert.Empty(t, borrowed)
}

func Test_BorrowBook_GuardOrderAndFailures(t *testing.T) {
	// arrange
	ctx := context.Background()
	lib := givenLedgerWithBookAndReader(t)

	// act + assert: unknown book id
	assert.ErrorIs(t, lib.BorrowBook(ctx, readerAddress, 42, hobbitPrice), ledger.ErrBookNotFound)

	// act + assert: unregistered caller, state must be unchanged
	assert.ErrorIs(t, lib.BorrowBook(ctx, otherAddress, 1, hobbitPrice), ledger.ErrNotRegistered)
	assertBookAvailable(t, lib, 1)
	assertTreasuryBalance(t, lib, 0)

	// act + assert: insufficient funds
	assert.ErrorIs(t, lib.BorrowBook(ctx, readerAddress, 1, hobbitPrice-1), ledger.ErrInsufficientFunds)
	assertBookAvailable(t, lib, 1)
	assertTreasuryBalance(t, lib, 0)

	// act + assert: negative tendered amount
	assert.ErrorIs(t, lib.BorrowBook(ctx, readerAddress, 1, -1), ledger.ErrInvalidArgument)

	// act + assert: already borrowed
	require.NoError(t, lib.BorrowBook(ctx, readerAddress, 1, hobbitPrice))
	require.NoError(t, lib.RegisterUser(ctx, otherAddress, "Jane Smith", "jane@example.com"))
	assert.ErrorIs(t, lib.BorrowBook(ctx, otherAddress, 1, hobbitPrice), ledger.ErrBookUnavailable)
	assertTreasuryBalance(t, lib, hobbitPrice)
}

func Test_BorrowBook_KeepsFullTenderedAmount(t *testing.T) {
	// arrange
	ctx := context.Background()
	lib := givenLedgerWithBookAndReader(t)
	overpaid := hobbitPrice + 33

	// act
	err := lib.BorrowBook(ctx, readerAddress, 1, overpaid)

	// assert: no change is given, the full amount is retained
	assert.NoError(t, err)
	assertTreasuryBalance(t, lib, overpaid)
}

func Test_ReturnBook_When_AlreadyAvailable(t *testing.T) {
	// arrange
	ctx := context.Background()
	lib := givenLedgerWithBookAndReader(t)

	// act
	err := lib.ReturnBook(ctx, adminAddress, 1)

	// assert
	assert.ErrorIs(t, err, ledger.ErrBookAlreadyAvailable)
}

func Test_ReturnBook_DoesNotRefund(t *testing.T) {
	// arrange
	ctx := context.Background()
	lib := givenLedgerWithBookAndReader(t)
	require.NoError(t, lib.BorrowBook(ctx, readerAddress, 1, hobbitPrice))

	// act
	err := lib.ReturnBook(ctx, adminAddress, 1)

	// assert: the borrow fee is a flat usage fee, not a refundable deposit
	assert.NoError(t, err)
	assertTreasuryBalance(t, lib, hobbitPrice)
}

func Test_OwnerOnlyOperations_When_CallerIsNotOwner(t *testing.T) {
	// arrange
	ctx := context.Background()
	lib := givenLedgerWithBookAndReader(t)
	require.NoError(t, lib.BorrowBook(ctx, readerAddress, 1, hobbitPrice))

	// act + assert
	_, err := lib.AddBook(ctx, readerAddress, hobbitTitle, hobbitAuthor, hobbitPrice)
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)

	assert.ErrorIs(t, lib.ReturnBook(ctx, readerAddress, 1), ledger.ErrUnauthorized)

	_, err = lib.WithdrawFunds(ctx, readerAddress)
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)

	assert.ErrorIs(t, lib.TransferOwnership(ctx, readerAddress, otherAddress), ledger.ErrUnauthorized)

	_, err = lib.GetBookBorrower(ctx, readerAddress, 1)
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)

	// no state change must have happened
	count, err := lib.BookCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
	assertTreasuryBalance(t, lib, hobbitPrice)

	owner, err := lib.Owner(ctx)
	require.NoError(t, err)
	assert.Equal(t, adminAddress, owner)
}

func Test_RegisterUser_StoresTheRecord(t *testing.T) {
	// arrange
	ctx := context.Background()
	fakeNow := time.Unix(1700000000, 0).UTC()
	lib := givenNewLedger(t, memoryengine.WithClock(func() time.Time { return fakeNow }))
	require.NoError(t, lib.Initialize(ctx, adminAddress))

	// act
	err := lib.RegisterUser(ctx, readerAddress, "John Doe", "john@example.com")

	// assert
	assert.NoError(t, err)

	user, err := lib.GetUserInfo(ctx, readerAddress)
	require.NoError(t, err)
	assert.True(t, user.IsRegistered)
	assert.Equal(t, "John Doe", user.Name)
	assert.Equal(t, "john@example.com", user.Email)
	assert.Equal(t, fakeNow, user.RegisteredAt)
}

func Test_RegisterUser_When_AlreadyRegistered(t *testing.T) {
	// arrange
	ctx := context.Background()
	lib := givenInitializedLedger(t)
	require.NoError(t, lib.RegisterUser(ctx, readerAddress, "John Doe", "john@example.com"))

	// act
	err := lib.RegisterUser(ctx, readerAddress, "John Smith", "smith@example.com")

	// assert
	assert.ErrorIs(t, err, ledger.ErrAlreadyRegistered)

	user, getErr := lib.GetUserInfo(ctx, readerAddress)
	require.NoError(t, getErr)
	assert.Equal(t, "John Doe", user.Name, "the original record must be unchanged")
	assert.Equal(t, "john@example.com", user.Email, "the original record must be unchanged")
}

func Test_RegisterUser_When_EmailIsMalformed(t *testing.T) {
	// arrange
	ctx := context.Background()
	lib := givenInitializedLedger(t)

	testCases := []string{
		"no-at-sign.example.com",
		"two@@example.com",
		"@example.com",
		"john@examplecom",
	}

	for _, email := range testCases {
		t.Run(email, func(t *testing.T) {
			// act
			err := lib.RegisterUser(ctx, readerAddress, "John Doe", email)

			// assert
			assert.ErrorIs(t, err, ledger.ErrInvalidArgument)
		})
	}
}

func Test_GetUserInfo_When_UserIsUnknown(t *testing.T) {
	// arrange
	ctx := context.Background()
	lib := givenInitializedLedger(t)

	// act
	user, err := lib.GetUserInfo(ctx, otherAddress)

	// assert: probing for a missing record is not an error
	assert.NoError(t, err)
	assert.False(t, user.IsRegistered)
}

func Test_TreasuryAccounting_AcrossMultipleBorrows(t *testing.T) {
	// arrange
	ctx := context.Background()
	lib := givenInitializedLedger(t)
	require.NoError(t, lib.RegisterUser(ctx, readerAddress, "John Doe", "john@example.com"))

	prices := []ledger.Money{100, 250, 75}
	var expectedBalance ledger.Money

	for i, price := range prices {
		bookID, err := lib.AddBook(ctx, adminAddress, hobbitTitle, hobbitAuthor, price)
		require.NoError(t, err)
		require.Equal(t, ledger.BookID(i+1), bookID)

		// act
		require.NoError(t, lib.BorrowBook(ctx, readerAddress, bookID, price))
		expectedBalance += price
	}

	// assert
	assertTreasuryBalance(t, lib, expectedBalance)

	// act: withdraw everything
	amount, err := lib.WithdrawFunds(ctx, adminAddress)

	// assert
	assert.NoError(t, err)
	assert.Equal(t, expectedBalance, amount)
	assertTreasuryBalance(t, lib, 0)

	// a second withdrawal has nothing left to pay out
	_, err = lib.WithdrawFunds(ctx, adminAddress)
	assert.ErrorIs(t, err, ledger.ErrNothingToWithdraw)
}

func Test_WithdrawFunds_TransfersTheFullBalance(t *testing.T) {
	// arrange
	ctx := context.Background()
	transferer := &fundsTransfererSpy{}
	lib := givenNewLedger(t, memoryengine.WithFundsTransferer(transferer))
	require.NoError(t, lib.Initialize(ctx, adminAddress))
	givenBookAndRegisteredReader(t, lib)
	require.NoError(t, lib.BorrowBook(ctx, readerAddress, 1, hobbitPrice))

	// act
	amount, err := lib.WithdrawFunds(ctx, adminAddress)

	// assert
	assert.NoError(t, err)
	assert.Equal(t, hobbitPrice, amount)
	assert.Equal(t, []transferCall{{to: adminAddress, amount: hobbitPrice}}, transferer.calls)
	assertTreasuryBalance(t, lib, 0)
}

func Test_WithdrawFunds_When_TransferFails_RollsBackTheBalance(t *testing.T) {
	// arrange
	ctx := context.Background()
	transferer := &fundsTransfererSpy{failures: 1}
	lib := givenNewLedger(t, memoryengine.WithFundsTransferer(transferer))
	require.NoError(t, lib.Initialize(ctx, adminAddress))
	givenBookAndRegisteredReader(t, lib)
	require.NoError(t, lib.BorrowBook(ctx, readerAddress, 1, hobbitPrice))

	// act
	_, err := lib.WithdrawFunds(ctx, adminAddress)

	// assert: the ledger must never show a zero balance after a failed payout
	assert.ErrorIs(t, err, ledger.ErrTransferFailed)
	assertTreasuryBalance(t, lib, hobbitPrice)

	// act: an idempotent retry withdraws the same amount exactly once
	amount, err := lib.WithdrawFunds(ctx, adminAddress)

	// assert
	assert.NoError(t, err)
	assert.Equal(t, hobbitPrice, amount)
	assertTreasuryBalance(t, lib, 0)
}

func Test_BorrowBook_When_NConcurrentCallers_ExactlyOneSucceeds(t *testing.T) {
	// arrange
	const callers = 32

	ctx := context.Background()
	lib := givenInitializedLedger(t)

	_, err := lib.AddBook(ctx, adminAddress, hobbitTitle, hobbitAuthor, hobbitPrice)
	require.NoError(t, err)

	addresses := make([]ledger.Address, callers)
	for i := range addresses {
		addresses[i] = ledger.Address(fmt.Sprintf("0xReader%02d", i))
		require.NoError(t, lib.RegisterUser(ctx, addresses[i], "Reader", "reader@example.com"))
	}

	// act
	var wg sync.WaitGroup
	results := make([]error, callers)

	for i := range addresses {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = lib.BorrowBook(ctx, addresses[i], 1, hobbitPrice)
		}(i)
	}
	wg.Wait()

	// assert: exactly one success, all others observe the borrow-state conflict
	successes := 0
	for _, resultErr := range results {
		if resultErr == nil {
			successes++
			continue
		}
		assert.ErrorIs(t, resultErr, ledger.ErrBookUnavailable)
	}
	assert.Equal(t, 1, successes)

	// exactly one paid amount must have reached the treasury
	assertTreasuryBalance(t, lib, hobbitPrice)

	// the winner must match the borrow record
	borrower, err := lib.GetBookBorrower(ctx, adminAddress, 1)
	require.NoError(t, err)
	assert.False(t, borrower.IsZero())

	borrowed, err := lib.GetBorrowedBooks(ctx, borrower)
	require.NoError(t, err)
	assert.Len(t, borrowed, 1)
}

func Test_BorrowRecordInvariant_AfterEveryMutation(t *testing.T) {
	// arrange
	ctx := context.Background()
	lib := givenLedgerWithBookAndReader(t)

	_, err := lib.AddBook(ctx, adminAddress, "The Silmarillion", hobbitAuthor, 200)
	require.NoError(t, err)

	assertBorrowRecordInvariant(t, lib)

	// act + assert after each mutation
	require.NoError(t, lib.BorrowBook(ctx, readerAddress, 1, hobbitPrice))
	assertBorrowRecordInvariant(t, lib)

	require.NoError(t, lib.ReturnBook(ctx, adminAddress, 1))
	assertBorrowRecordInvariant(t, lib)

	require.NoError(t, lib.BorrowBook(ctx, readerAddress, 2, 200))
	assertBorrowRecordInvariant(t, lib)
}

func Test_Journal_RecordsEveryMutation(t *testing.T) {
	// arrange
	ctx := context.Background()
	lib := givenLedgerWithBookAndReader(t)

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

func Test_EndToEnd_CirculationScenario(t *testing.T) {
	// arrange
	ctx := context.Background()
	transferer := &fundsTransfererSpy{}
	lib := givenNewLedger(t, memoryengine.WithFundsTransferer(transferer))

	// act + assert, step by step
	require.NoError(t, lib.Initialize(ctx, adminAddress))

	bookID, err := lib.AddBook(ctx, adminAddress, hobbitTitle, hobbitAuthor, hobbitPrice)
	require.NoError(t, err)
	require.Equal(t, ledger.BookID(1), bookID)

	require.NoError(t, lib.RegisterUser(ctx, readerAddress, "John Doe", "john@example.com"))
	require.NoError(t, lib.BorrowBook(ctx, readerAddress, bookID, hobbitPrice))

	assertBookUnavailable(t, lib, bookID)
	borrower, err := lib.GetBookBorrower(ctx, adminAddress, bookID)
	require.NoError(t, err)
	assert.Equal(t, readerAddress, borrower)
	assertTreasuryBalance(t, lib, hobbitPrice)

	require.NoError(t, lib.ReturnBook(ctx, adminAddress, bookID))
	assertBookAvailable(t, lib, bookID)

	amount, err := lib.WithdrawFunds(ctx, adminAddress)
	require.NoError(t, err)
	assert.Equal(t, hobbitPrice, amount)
	assertTreasuryBalance(t, lib, 0)
	assert.Equal(t, []transferCall{{to: adminAddress, amount: hobbitPrice}}, transferer.calls)
}

/*** Fixture and assertion helpers ***/

func givenNewLedger(t *testing.T, options ...memoryengine.Option) *memoryengine.Ledger {
	t.Helper()

	lib, err := memoryengine.NewLedger(options...)
	require.NoError(t, err, "error creating the ledger in test setup")

	return lib
}

func givenInitializedLedger(t *testing.T) *memoryengine.Ledger {
	t.Helper()

	lib := givenNewLedger(t)
	require.NoError(t, lib.Initialize(context.Background(), adminAddress))

	return lib
}

func givenBookAndRegisteredReader(t *testing.T, lib *memoryengine.Ledger) {
	t.Helper()

	ctx := context.Background()

	_, err := lib.AddBook(ctx, adminAddress, hobbitTitle, hobbitAuthor, hobbitPrice)
	require.NoError(t, err)

	require.NoError(t, lib.RegisterUser(ctx, readerAddress, "John Doe", "john@example.com"))
}

func givenLedgerWithBookAndReader(t *testing.T) *memoryengine.Ledger {
	t.Helper()

	lib := givenInitializedLedger(t)
	givenBookAndRegisteredReader(t, lib)

	return lib
}

func assertTreasuryBalance(t *testing.T, lib *memoryengine.Ledger, expected ledger.Money) {
	t.Helper()

	balance, err := lib.TreasuryBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, expected, balance)
}

func assertBookAvailable(t *testing.T, lib *memoryengine.Ledger, bookID ledger.BookID) {
	t.Helper()

	books, err := lib.GetAllBooks(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, books)
	assert.True(t, books[bookID-1].Available)
}

func assertBookUnavailable(t *testing.T, lib *memoryengine.Ledger, bookID ledger.BookID) {
	t.Helper()

	books, err := lib.GetAllBooks(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, books)
	assert.False(t, books[bookID-1].Available)
}

// assertBorrowRecordInvariant checks that a borrow record exists for a book
// if and only if the book is unavailable.
func assertBorrowRecordInvariant(t *testing.T, lib *memoryengine.Ledger) {
	t.Helper()

	ctx := context.Background()

	books, err := lib.GetAllBooks(ctx)
	require.NoError(t, err)

	for _, book := range books {
		borrower, borrowerErr := lib.GetBookBorrower(ctx, adminAddress, book.ID)
		require.NoError(t, borrowerErr)

		if book.Available {
			assert.True(t, borrower.IsZero(), "available book %d must have no borrow record", book.ID)
		} else {
			assert.False(t, borrower.IsZero(), "unavailable book %d must have a borrow record", book.ID)
		}
	}
}

type transferCall struct {
	to     ledger.Address
	amount ledger.Money
}

// fundsTransfererSpy records transfer calls and can fail the first N of them.
type fundsTransfererSpy struct {
	calls    []transferCall
	failures int
}

func (s *fundsTransfererSpy) Transfer(_ context.Context, to ledger.Address, amount ledger.Money) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("payout rejected by wallet")
	}

	s.calls = append(s.calls, transferCall{to: to, amount: amount})

	return nil
}

func Test_Operations_EmitLogsAndMetrics(t *testing.T) {
	// arrange
	ctx := context.Background()
	logSpy := &loggerSpy{}
	metricsSpy := &metricsCollectorSpy{}

	lib, err := memoryengine.NewLedger(
		memoryengine.WithLogger(logSpy),
		memoryengine.WithMetrics(metricsSpy),
	)
	require.NoError(t, err)

	// act
	require.NoError(t, lib.Initialize(ctx, adminAddress))

	_, err = lib.AddBook(ctx, adminAddress, hobbitTitle, hobbitAuthor, hobbitPrice)
	require.NoError(t, err)

	_, err = lib.AddBook(ctx, readerAddress, hobbitTitle, hobbitAuthor, hobbitPrice)
	require.ErrorIs(t, err, ledger.ErrUnauthorized)

	// assert: one log line and one counter tick per successful mutation
	assert.Equal(t, []string{"ledger operation: initialize", "ledger operation: add_book"}, logSpy.infoMessages)
	assert.Equal(t, 1, metricsSpy.operationCounts["initialize"])
	assert.Equal(t, 1, metricsSpy.operationCounts["add_book"])
}

// loggerSpy collects info log messages.
type loggerSpy struct {
	infoMessages []string
}

func (s *loggerSpy) Debug(_ string, _ ...any) {}

func (s *loggerSpy) Info(msg string, _ ...any) {
	s.infoMessages = append(s.infoMessages, msg)
}

func (s *loggerSpy) Warn(_ string, _ ...any) {}

func (s *loggerSpy) Error(_ string, _ ...any) {}

// metricsCollectorSpy counts operation counter increments by operation label.
type metricsCollectorSpy struct {
	operationCounts map[string]int
}

func (s *metricsCollectorSpy) IncrementCounter(_ string, labels map[string]string) {
	if s.operationCounts == nil {
		s.operationCounts = make(map[string]int)
	}

	s.operationCounts[labels["operation"]]++
}

func (s *metricsCollectorSpy) RecordDuration(_ string, _ time.Duration, _ map[string]string) {}

func (s *metricsCollectorSpy) RecordValue(_ string, _ float64, _ map[string]string) {}
