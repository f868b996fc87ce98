package ledger

import (
	"encoding/json"
	"time"
)

// Records is an alias type for a slice of Record.
type Records = []Record

// Record is a journal entry describing one successful ledger mutation.
//
// It is built on scalars so the engines can persist it without knowing the
// payload types. While its properties are exported, it should only be
// constructed with the supplied factory methods:
//   - BuildRecord
//   - BuildRecordWithEmptyMetadata
type Record struct {
	RecordType   string
	OccurredAt   time.Time
	PayloadJSON  []byte
	MetadataJSON []byte
}

// BuildRecord is a factory method for Record.
//
// It populates the Record with the given scalar input.
// Returns an error if payloadJSON or metadataJSON are not valid JSON.
func BuildRecord(recordType string, occurredAt time.Time, payloadJSON []byte, metadataJSON []byte) (Record, error) {
	if !json.Valid(payloadJSON) {
		return Record{}, ErrInvalidPayloadJSON
	}

	if !json.Valid(metadataJSON) {
		return Record{}, ErrInvalidMetadataJSON
	}

	return Record{
		RecordType:   recordType,
		OccurredAt:   occurredAt,
		PayloadJSON:  payloadJSON,
		MetadataJSON: metadataJSON,
	}, nil
}

// BuildRecordWithEmptyMetadata is a factory method for Record.
//
// It populates the Record with the given scalar input and creates valid
// empty JSON for MetadataJSON. Returns an error if payloadJSON is not valid JSON.
func BuildRecordWithEmptyMetadata(recordType string, occurredAt time.Time, payloadJSON []byte) (Record, error) {
	return BuildRecord(recordType, occurredAt, payloadJSON, []byte("{}"))
}
