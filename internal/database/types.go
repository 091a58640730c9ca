package database

import (
	"bytes"
	"encoding/json"
	"time"
)

// Descriptor is a single face descriptor vector as produced by the client.
// The store never interprets it.
type Descriptor []float64

// UserRecord represents a registered person and the descriptors captured for them
type UserRecord struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Descriptors []Descriptor `json:"descriptors"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// createdAtLayouts are tried in order for string timestamps.
var createdAtLayouts = []string{time.RFC3339Nano, time.DateTime, time.DateOnly}

// UnmarshalJSON decodes a record leniently: createdAt may be an RFC 3339
// string, epoch milliseconds, null or missing. Anything unparseable becomes
// the zero time so a single odd record keeps the collection readable.
func (u *UserRecord) UnmarshalJSON(data []byte) error {
	type plain UserRecord
	var raw struct {
		plain
		CreatedAt json.RawMessage `json:"createdAt"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*u = UserRecord(raw.plain)
	u.CreatedAt = parseCreatedAt(raw.CreatedAt)
	return nil
}

func parseCreatedAt(raw json.RawMessage) time.Time {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}
		}
		for _, layout := range createdAtLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC()
			}
		}
		return time.Time{}
	}

	var millis float64
	if err := json.Unmarshal(raw, &millis); err != nil {
		return time.Time{}
	}
	return time.UnixMilli(int64(millis)).UTC()
}

// cloneDescriptors deep-copies descriptors so callers can't mutate stored data.
func cloneDescriptors(in []Descriptor) []Descriptor {
	if in == nil {
		return nil
	}
	out := make([]Descriptor, len(in))
	for i, d := range in {
		out[i] = append(Descriptor(nil), d...)
	}
	return out
}
