package uuid

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewProducesValidV4(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := New()
		assert.True(t, IsValid(id), "generated id %q must be a valid v4 UUID", id)
		assert.False(t, seen[id], "generated ids must be unique")
		seen[id] = true
	}
}

func TestNewDeviceID(t *testing.T) {
	id := NewDeviceID()
	assert.True(t, strings.HasPrefix(id, "dev-"))
	assert.True(t, IsValid(strings.TrimPrefix(id, "dev-")))
}

func TestIsValid(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"550e8400-e29b-41d4-a716-446655440000", true},
		{"550E8400-E29B-41D4-A716-446655440000", true},
		{"550e8400-e29b-11d4-a716-446655440000", false}, // v1, not v4
		{"550e8400-e29b-41d4-c716-446655440000", false}, // bad variant bits
		{"550e8400e29b41d4a716446655440000", false},     // missing dashes
		{"not-a-uuid", false},
		{"", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, IsValid(tc.in), "input %q", tc.in)
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(New()))
	assert.Error(t, Validate("bogus"))
}
