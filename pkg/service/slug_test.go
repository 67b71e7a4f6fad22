package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSlug(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"valid passes through with case", "MyAlias-2", "MyAlias-2"},
		{"trimmed passthrough", "  Example  ", "Example"},
		{"spaces become hyphen and lowercase", "Hello World", "hello-world"},
		{"whitespace run collapses", "a \t\n b", "a-b"},
		{"punctuation stripped", "Rock & Roll!", "rock-roll"},
		{"underscore stripped", "my_alias", "myalias"},
		{"non ascii stripped", "Café Olé", "caf-ol"},
		{"only symbols", "!!!", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeSlug(tt.input))
		})
	}
}

func TestNormalizeSlug_Idempotent(t *testing.T) {
	inputs := []string{"Hello World", "Rock & Roll!", "MyAlias", "  a  b  c ", "x_y-z", "Ünïcödé text"}
	for _, in := range inputs {
		once := NormalizeSlug(in)
		assert.Equal(t, once, NormalizeSlug(once), in)
	}
}

func TestValidateAlias(t *testing.T) {
	tests := []struct {
		alias string
		valid bool
	}{
		{"validAlias", true},
		{"valid-alias123", true},
		{"a", true},
		{"", false},
		{"api", false},
		{"Admin", false},
		{"metrics", false},
		{"invalid_alias", false},
		{strings.Repeat("a", maxAliasLength), true},
		{strings.Repeat("a", maxAliasLength+1), false},
	}

	for _, tt := range tests {
		t.Run(tt.alias, func(t *testing.T) {
			err := ValidateAlias(tt.alias)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidAlias)
			}
		})
	}
}
