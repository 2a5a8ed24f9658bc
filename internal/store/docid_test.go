package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocid_RoundTrip(t *testing.T) {
	ids := []int64{1, 35, 36, 1000, 123456789, 2176782335} // zzzzzz in base 36

	for _, id := range ids {
		docid := Docid(id)
		assert.Len(t, docid, 6, "docid %q", docid)

		parsed, ok := ParseDocid(docid)
		require.True(t, ok, "docid %q must parse", docid)
		assert.Equal(t, id, parsed)
	}
}

func TestDocid_RoundTripBeyondSixChars(t *testing.T) {
	// Ids past 36^6-1 render wider than the padded minimum and must
	// still parse back to the same id.
	ids := []int64{2176782336, 2176782337, 1<<63 - 1} // 1000000, 1000001, max int64

	for _, id := range ids {
		docid := Docid(id)
		assert.GreaterOrEqual(t, len(docid), 7, "docid %q", docid)

		parsed, ok := ParseDocid(docid)
		require.True(t, ok, "docid %q must parse", docid)
		assert.Equal(t, id, parsed)
	}
}

func TestDocid_HashPrefixAccepted(t *testing.T) {
	docid := Docid(42)

	parsed, ok := ParseDocid("#" + docid)
	require.True(t, ok)
	assert.Equal(t, int64(42), parsed)
}

func TestIsDocid(t *testing.T) {
	tests := []struct {
		ref string
		is  bool
	}{
		{"00000z", true},
		{"#abc123", true},
		{"abc123", true},
		{"ABC123", false}, // docids are lowercase
		{"abc12", false},  // too short
		{"abc1234", true}, // ids past 36^6 render seven chars
		{"notes/readme.md", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.is, IsDocid(tt.ref), tt.ref)
	}
}

func TestParseDocid_RejectsZeroAndGarbage(t *testing.T) {
	_, ok := ParseDocid("000000")
	assert.False(t, ok, "id 0 never exists")

	_, ok = ParseDocid("../../x")
	assert.False(t, ok)

	// Wider than any int64 can render in base 36.
	_, ok = ParseDocid("zzzzzzzzzzzzzz")
	assert.False(t, ok, "overflow must not parse")
}
