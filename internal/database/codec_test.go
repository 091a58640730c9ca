package database

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalRecords_NilIsEmptyArray(t *testing.T) {
	data, err := MarshalRecords(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestMarshalRecords_PrettyPrintedWithOriginalFieldNames(t *testing.T) {
	data, err := MarshalRecords([]UserRecord{{
		ID:          "1",
		Name:        "Bob",
		Descriptors: []Descriptor{{0.1, 0.2}},
		CreatedAt:   time.Date(2024, 1, 2, 3, 4, 5, 6000000, time.UTC),
	}})
	require.NoError(t, err)

	out := string(data)
	assert.True(t, strings.HasPrefix(out, "[\n  {\n    \"id\": \"1\""), out)
	assert.Contains(t, out, `"name": "Bob"`)
	assert.Contains(t, out, `"descriptors": [`)
	assert.Contains(t, out, `"createdAt": "2024-01-02T03:04:05.006Z"`)
}

func TestUnmarshalRecords_AcceptsFilesFromNodeServer(t *testing.T) {
	raw := `[
  {
    "id": "1700000000000",
    "name": "Alice",
    "descriptors": [[-0.1234, 0.5, 1]],
    "createdAt": "2023-11-14T22:13:20.000Z"
  }
]`
	records, err := UnmarshalRecords([]byte(raw))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "1700000000000", records[0].ID)
	assert.Equal(t, []Descriptor{{-0.1234, 0.5, 1}}, records[0].Descriptors)
	assert.Equal(t, time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC), records[0].CreatedAt)
}

func TestUnmarshalRecords_NullIsEmpty(t *testing.T) {
	records, err := UnmarshalRecords([]byte("null"))
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestUnmarshalRecords_Corrupt(t *testing.T) {
	for _, raw := range []string{"", "   ", "{", `{"id": "1"}`, `[{"descriptors": "nope"}]`} {
		t.Run(raw, func(t *testing.T) {
			_, err := UnmarshalRecords([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestEmptyCollectionIsCopied(t *testing.T) {
	a := EmptyCollection()
	a[0] = 'x'
	assert.Equal(t, "[]", string(EmptyCollection()))
}

func TestUnmarshalRecords_LenientCreatedAt(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected time.Time
	}{
		{"iso string", `"2023-11-14T22:13:20.000Z"`, time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)},
		{"offset", `"2023-11-14T23:13:20+01:00"`, time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)},
		{"date time", `"2023-11-14 22:13:20"`, time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)},
		{"epoch millis", `1700000000000`, time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)},
		{"empty string", `""`, time.Time{}},
		{"garbage", `"yesterday"`, time.Time{}},
		{"null", `null`, time.Time{}},
		{"wrong type", `{"a": 1}`, time.Time{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			raw := `[{"id":"1","name":"Alice","descriptors":[[0.5]],"createdAt":` + tc.raw + `},` +
				`{"id":"2","name":"Bob","descriptors":[[0.25]]}]`
			records, err := UnmarshalRecords([]byte(raw))
			require.NoError(t, err)
			require.Len(t, records, 2)
			assert.Equal(t, "Alice", records[0].Name)
			assert.Equal(t, []Descriptor{{0.5}}, records[0].Descriptors)
			assert.True(t, tc.expected.Equal(records[0].CreatedAt), "got %v", records[0].CreatedAt)
			assert.True(t, records[1].CreatedAt.IsZero())
		})
	}
}

func TestUnmarshalRecords_RoundTripKeepsCreatedAt(t *testing.T) {
	in := []UserRecord{{
		ID:          "1",
		Name:        "Bob",
		Descriptors: []Descriptor{{0.1}},
		CreatedAt:   time.Date(2024, 1, 2, 3, 4, 5, 6000000, time.UTC),
	}}
	data, err := MarshalRecords(in)
	require.NoError(t, err)

	out, err := UnmarshalRecords(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
