package ledger

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

// Record type identifiers, one per successful mutation.
const (
	LibraryInitializedRecordType   = "LibraryInitialized"
	OwnershipTransferredRecordType = "OwnershipTransferred"
	BookAddedRecordType            = "BookAdded"
	UserRegisteredRecordType       = "UserRegistered"
	BookBorrowedRecordType         = "BookBorrowed"
	BookReturnedRecordType         = "BookReturned"
	FundsWithdrawnRecordType       = "FundsWithdrawn"
)

// ErrMappingToRecordMetadataFailed is returned when metadata conversion fails.
var ErrMappingToRecordMetadataFailed = errors.New("mapping to record metadata failed")

// RecordMetadata carries tracking information for a journal record.
type RecordMetadata struct {
	MessageID string
}

// BuildRecordMetadata creates RecordMetadata with a fresh message id.
func BuildRecordMetadata() RecordMetadata {
	return RecordMetadata{MessageID: uuid.New().String()}
}

// RecordMetadataFrom extracts RecordMetadata from a Record.
func RecordMetadataFrom(record Record) (RecordMetadata, error) {
	metadata := new(RecordMetadata)
	if err := jsoniter.ConfigFastest.Unmarshal(record.MetadataJSON, metadata); err != nil {
		return RecordMetadata{}, errors.Join(ErrMappingToRecordMetadataFailed, err)
	}

	return *metadata, nil
}

// LibraryInitializedPayload describes the one-time initialization.
type LibraryInitializedPayload struct {
	Owner Address
}

// OwnershipTransferredPayload describes an ownership transfer.
type OwnershipTransferredPayload struct {
	PreviousOwner Address
	NewOwner      Address
}

// BookAddedPayload describes a new catalog entry.
type BookAddedPayload struct {
	BookID      BookID
	Title       string
	Author      string
	BorrowPrice Money
}

// UserRegisteredPayload describes a new user registration.
type UserRegisteredPayload struct {
	Address Address
	Name    string
	Email   string
}

// BookBorrowedPayload describes a successful borrow, including the full
// tendered amount (which may exceed the price; no change is given).
type BookBorrowedPayload struct {
	BookID   BookID
	Borrower Address
	Price    Money
	Paid     Money
}

// BookReturnedPayload describes an owner-mediated return.
type BookReturnedPayload struct {
	BookID   BookID
	Borrower Address
}

// FundsWithdrawnPayload describes a completed treasury payout.
type FundsWithdrawnPayload struct {
	Owner  Address
	Amount Money
}

// RecordFrom converts a typed payload into a Record with fresh metadata.
func RecordFrom(recordType string, occurredAt time.Time, payload any) (Record, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return Record{}, errors.Join(ErrBuildingRecordFailed, err)
	}

	metadataJSON, err := json.Marshal(BuildRecordMetadata())
	if err != nil {
		return Record{}, errors.Join(ErrBuildingRecordFailed, err)
	}

	record, err := BuildRecord(recordType, occurredAt, payloadJSON, metadataJSON)
	if err != nil {
		return Record{}, errors.Join(ErrBuildingRecordFailed, err)
	}

	return record, nil
}

// PayloadFromRecord unmarshals a Record payload into the given target.
func PayloadFromRecord(record Record, target any) error {
	if err := jsoniter.ConfigFastest.Unmarshal(record.PayloadJSON, target); err != nil {
		return errors.Join(ErrBuildingRecordFailed, err)
	}

	return nil
}
