package keymanager

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLegacyName(t *testing.T) {
	pubkey := "0x" + "ab" // shape does not matter for hashing
	name := LegacyName(pubkey)
	assert.Equal(t, 16, len(name))
	assert.True(t, IsLegacyName(name))

	// Deterministic: same input, same name.
	assert.Equal(t, name, LegacyName(pubkey))
	// Different input, different name.
	assert.NotEqual(t, name, LegacyName("0xcd"))
}

func TestPaths(t *testing.T) {
	assert.Equal(t, "validator-keys/0xabcd", CanonicalPath("0xabcd"))
	assert.Equal(t, "validator-keys/"+LegacyName("0xabcd"), LegacyPath("0xabcd"))
}

func TestIsLegacyName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{name: "0123456789abcdef", want: true},
		{name: "aaaaaaaaaaaaaaaa", want: true},
		{name: "0123456789abcde", want: false},   // too short
		{name: "0123456789abcdef0", want: false}, // too long
		{name: "0123456789ABCDEF", want: false},  // uppercase hex
		{name: "0123456789abcdeg", want: false},  // non-hex
		{name: "0x12345678901234", want: false},  // 0x prefix
		{name: "", want: false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsLegacyName(tt.name), "input %q", tt.name)
	}
}
