// Command demo runs the full circulation scenario against a ledger engine:
// initialize, add a book, register a reader, borrow, return, withdraw, and
// finally print the journal.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/libledger/library-ledger-go/ledger"
	"github.com/libledger/library-ledger-go/ledger/memoryengine"
	"github.com/libledger/library-ledger-go/ledger/sqliteengine"
)

const (
	engineMemory = "memory"
	engineSQLite = "sqlite"

	adminAddress  = ledger.Address("0xA11CE00000000000000000000000000000000001")
	readerAddress = ledger.Address("0xB0B0000000000000000000000000000000000002")

	hobbitTitle  = "The Hobbit"
	hobbitAuthor = "J.R.R. Tolkien"
	hobbitPrice  = ledger.Money(100)
)

func main() {
	var engineType string
	var dbPath string

	rootCmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the library ledger circulation scenario",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), engineType, dbPath)
		},
	}

	rootCmd.Flags().StringVar(&engineType, "engine", engineMemory, "ledger engine: memory or sqlite")
	rootCmd.Flags().StringVar(&dbPath, "db", ":memory:", "sqlite database path (sqlite engine only)")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, engineType string, dbPath string) error {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	transferer := ledger.TransferFunc(func(_ context.Context, to ledger.Address, amount ledger.Money) error {
		logger.Info("funds transferred", "to", to.String(), "amount", int64(amount))
		return nil
	})

	lib, cleanup, err := buildLedger(ctx, engineType, dbPath, logger, transferer)
	if err != nil {
		return err
	}
	defer cleanup()

	return runScenario(ctx, lib, logger)
}

func buildLedger(
	ctx context.Context,
	engineType string,
	dbPath string,
	logger *slog.Logger,
	transferer ledger.FundsTransferer,
) (ledger.Ledger, func(), error) {

	switch engineType {
	case engineMemory:
		lib, err := memoryengine.NewLedger(
			memoryengine.WithLogger(logger),
			memoryengine.WithFundsTransferer(transferer),
		)
		if err != nil {
			return nil, nil, err
		}

		return lib, func() {}, nil

	case engineSQLite:
		db, err := sql.Open("sqlite", dbPath)
		if err != nil {
			return nil, nil, err
		}
		db.SetMaxOpenConns(1)

		lib, err := sqliteengine.NewLedger(ctx, db,
			sqliteengine.WithLogger(logger),
			sqliteengine.WithFundsTransferer(transferer),
		)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}

		return lib, func() { _ = db.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown engine type: %s", engineType)
	}
}

func runScenario(ctx context.Context, lib ledger.Ledger, logger *slog.Logger) error {
	if err := lib.Initialize(ctx, adminAddress); err != nil {
		return err
	}

	bookID, err := lib.AddBook(ctx, adminAddress, hobbitTitle, hobbitAuthor, hobbitPrice)
	if err != nil {
		return err
	}

	if err = lib.RegisterUser(ctx, readerAddress, "John Doe", "john@example.com"); err != nil {
		return err
	}

	books, err := lib.GetAllBooks(ctx)
	if err != nil {
		return err
	}

	for _, book := range books {
		logger.Info("catalog entry",
			"id", uint64(book.ID), "title", book.Title, "author", book.Author,
			"price", int64(book.BorrowPrice), "available", book.Available)
	}

	if err = lib.BorrowBook(ctx, readerAddress, bookID, hobbitPrice); err != nil {
		return err
	}

	borrowed, err := lib.GetBorrowedBooks(ctx, readerAddress)
	if err != nil {
		return err
	}

	for _, book := range borrowed {
		logger.Info("borrowed by reader", "id", uint64(book.ID), "title", book.Title)
	}

	borrower, err := lib.GetBookBorrower(ctx, adminAddress, bookID)
	if err != nil {
		return err
	}

	logger.Info("borrower on file", "book_id", uint64(bookID), "address", borrower.String())

	if err = lib.ReturnBook(ctx, adminAddress, bookID); err != nil {
		return err
	}

	amount, err := lib.WithdrawFunds(ctx, adminAddress)
	if err != nil {
		return err
	}

	logger.Info("treasury withdrawn", "amount", int64(amount))

	records, err := lib.Journal(ctx)
	if err != nil {
		return err
	}

	for i, record := range records {
		logger.Info("journal record",
			"sequence", i+1, "type", record.RecordType,
			"occurred_at", record.OccurredAt, "payload", string(record.PayloadJSON))
	}

	return nil
}
