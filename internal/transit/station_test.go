package transit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonical(t *testing.T) {
	tests := []struct {
		raw    string
		want   string
		wantOK bool
	}{
		{"101N", "101", true},
		{"101S", "101", true},
		{"101", "101", true},
		{"A27", "A27", true},
		// direction letter in the middle of the ID is part of the station
		{"N06", "N06", true},
		{"N06S", "N06", true},
		{"R14N", "R14", true},
		// Staten Island Railway is excluded regardless of suffix
		{"S09", "", false},
		{"S09N", "", false},
		{"S09S", "", false},
		{"S", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := Canonical(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanonical_StripsExactlyOneCharacter(t *testing.T) {
	got, ok := Canonical("A1NN")
	assert.True(t, ok)
	assert.Equal(t, "A1N", got)
}

func TestIsStationLevel(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"101", true},
		{"N06", true},
		{"101N", false},
		{"101S", false},
		{"S09", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, IsStationLevel(tt.raw))
		})
	}
}
