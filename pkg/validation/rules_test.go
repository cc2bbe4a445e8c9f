package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidContact(t *testing.T) {
	tests := []struct {
		contact string
		valid   bool
	}{
		{"gompei@wpi.edu", true},
		{"a@b", true},
		{"plain-string", false},
		{"two@at@signs", false},
		{"@missing-local", false},
		{"missing-domain@", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.valid, ValidContact(tt.contact), "contact %q", tt.contact)
	}
}

func TestValidTerm(t *testing.T) {
	for _, term := range []string{"A", "B", "C", "D"} {
		assert.True(t, ValidTerm(term))
	}
	for _, term := range []string{"E", "a", "AB", ""} {
		assert.False(t, ValidTerm(term), "term %q", term)
	}
}

func TestValidYear(t *testing.T) {
	assert.True(t, ValidYear("2018"))
	assert.True(t, ValidYear("0000"))
	assert.False(t, ValidYear("18"))
	assert.False(t, ValidYear("20181"))
	assert.False(t, ValidYear("20a8"))
}

func TestValidTeam(t *testing.T) {
	assert.True(t, ValidTeam("A"))
	assert.True(t, ValidTeam("Z"))
	assert.False(t, ValidTeam("a"))
	assert.False(t, ValidTeam("AA"))
	assert.False(t, ValidTeam("1"))
	assert.False(t, ValidTeam(""))
}

func TestValidDescription(t *testing.T) {
	assert.True(t, ValidDescription("A perfectly normal description"))
	assert.True(t, ValidDescription("[link](https://example.com)"))
	assert.False(t, ValidDescription("[click me](javascript:alert(1))"))
	assert.False(t, ValidDescription("prefix (javascript:void(0)) suffix"))
}

func TestSplitVersion(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		number string
		info   string
		ok     bool
	}{
		{"bare version", "1.2.3", "1.2.3", "", true},
		{"version with notes", "1.2.3 fixed bug", "1.2.3", "fixed bug", true},
		{"multi-digit components", "1.10.0 big release", "1.10.0", "big release", true},
		{"tab separated", "2.0.0\tchangelog", "2.0.0", "changelog", true},
		{"no version prefix", "fixed bug", "", "", false},
		{"incomplete version", "1.2", "", "", false},
		{"empty", "", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			number, info, ok := SplitVersion(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.number, number)
			assert.Equal(t, tt.info, info)
		})
	}
}
