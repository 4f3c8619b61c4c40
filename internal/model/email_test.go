package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmail_Idempotent(t *testing.T) {
	inputs := []string{
		"Foo@Bar.com ",
		"  foo@bar.com",
		"FOO@BAR.COM",
		"\tMixed.Case+Tag@Example.ORG\n",
		"",
	}
	for _, in := range inputs {
		once := NormalizeEmail(in)
		assert.Equal(t, once, NormalizeEmail(once), "input %q", in)
	}
}

func TestNormalizeEmail_CaseAndWhitespace(t *testing.T) {
	assert.Equal(t, "foo@bar.com", NormalizeEmail("Foo@Bar.com "))
	assert.True(t, SameEmail("B@Example.com", " b@example.com"))
	assert.False(t, SameEmail("b@example.com", "c@example.com"))
}

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		err   error
	}{
		{"plain", "b@example.com", nil},
		{"mixed case with spaces", "  B@Example.com ", nil},
		{"empty", "   ", ErrEmailRequired},
		{"no at", "example.com", ErrInvalidEmail},
		{"display name form", "Bob <b@example.com>", ErrInvalidEmail},
		{"no domain dot", "b@localhost", ErrInvalidEmail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}
}
