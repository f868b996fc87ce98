package ledger

import "time"

// Book is a catalog entry. Title, Author and BorrowPrice are immutable once
// the book has been added; Available is the sole mutable field and flips
// between true and false across borrow/return cycles.
type Book struct {
	ID          BookID
	Title       string
	Author      string
	BorrowPrice Money
	Available   bool
}

// Books is an alias type for a slice of Book.
type Books = []Book

// User is a registered borrower. A user record is created once per address
// and is immutable afterwards; IsRegistered is true on every stored record
// and false on the zero User returned for unknown addresses.
type User struct {
	Address      Address
	Name         string
	Email        string
	RegisteredAt time.Time
	IsRegistered bool
}
