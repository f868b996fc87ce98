package ledger

import (
	"errors"
	"strings"
)

var (
	errEmptyTitle    = errors.New("title must not be empty")
	errEmptyAuthor   = errors.New("author must not be empty")
	errNegativePrice = errors.New("borrow price must not be negative")
	errNegativePaid  = errors.New("paid amount must not be negative")
	errEmptyName     = errors.New("name must not be empty")
	errEmptyEmail    = errors.New("email must not be empty")
	errMalformedMail = errors.New("email is not syntactically valid")
)

// ValidateBookArgs checks the arguments of AddBook before any state is touched.
func ValidateBookArgs(title string, author string, borrowPrice Money) error {
	if strings.TrimSpace(title) == "" {
		return errors.Join(ErrInvalidArgument, errEmptyTitle)
	}

	if strings.TrimSpace(author) == "" {
		return errors.Join(ErrInvalidArgument, errEmptyAuthor)
	}

	if borrowPrice < 0 {
		return errors.Join(ErrInvalidArgument, errNegativePrice)
	}

	return nil
}

// ValidateUserArgs checks the arguments of RegisterUser before any state is touched.
func ValidateUserArgs(name string, email string) error {
	if strings.TrimSpace(name) == "" {
		return errors.Join(ErrInvalidArgument, errEmptyName)
	}

	if strings.TrimSpace(email) == "" {
		return errors.Join(ErrInvalidArgument, errEmptyEmail)
	}

	if !emailIsWellFormed(email) {
		return errors.Join(ErrInvalidArgument, errMalformedMail)
	}

	return nil
}

// ValidatePaidAmount rejects negative tendered amounts on BorrowBook.
func ValidatePaidAmount(paid Money) error {
	if paid < 0 {
		return errors.Join(ErrInvalidArgument, errNegativePaid)
	}

	return nil
}

// emailIsWellFormed applies the basic syntactic check: exactly one '@',
// a non-empty local part, and a domain part containing a '.'.
func emailIsWellFormed(email string) bool {
	if strings.Count(email, "@") != 1 {
		return false
	}

	local, domain, _ := strings.Cut(email, "@")
	if local == "" {
		return false
	}

	return strings.Contains(domain, ".")
}
