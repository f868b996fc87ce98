package ledger

import (
	"strings"
	"time"
)

// ZeroHexAddress is the canonical all-zero address some wallet layers send
// instead of an empty string.
const ZeroHexAddress = "0x0000000000000000000000000000000000000000"

// Address is the opaque, pre-verified identity of a caller.
// It is supplied by the external authentication collaborator and never
// interpreted by the ledger beyond equality and zero checks.
type Address string

// String returns the address as a plain string.
func (a Address) String() string {
	return string(a)
}

// IsZero reports whether the address is empty or the canonical zero address.
func (a Address) IsZero() bool {
	trimmed := strings.TrimSpace(string(a))

	return trimmed == "" || strings.EqualFold(trimmed, ZeroHexAddress)
}

// Money is a monetary amount in the smallest currency unit.
// Amounts are integral; negative values are rejected at the operation boundary.
type Money int64

// BookID identifies a book in the catalog.
// IDs are assigned sequentially starting at 1 and are never reused.
type BookID uint64

// Clock supplies the current time to an engine, overridable in tests.
type Clock func() time.Time
