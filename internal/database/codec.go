package database

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// emptyCollection is what Init writes for blob-style backends.
var emptyCollection = []byte("[]")

// EmptyCollection returns the serialized form of an empty collection.
func EmptyCollection() []byte {
	return bytes.Clone(emptyCollection)
}

// MarshalRecords serializes the collection as a pretty-printed JSON array.
// A nil slice is written as [] rather than null.
func MarshalRecords(records []UserRecord) ([]byte, error) {
	if records == nil {
		records = []UserRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding users: %w", err)
	}
	return data, nil
}

// UnmarshalRecords parses a JSON array of records. A literal null decodes to an empty collection.
func UnmarshalRecords(data []byte) ([]UserRecord, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("decoding users: empty document")
	}
	var records []UserRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decoding users: %w", err)
	}
	if records == nil {
		records = []UserRecord{}
	}
	return records, nil
}
