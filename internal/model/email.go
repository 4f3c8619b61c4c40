package model

import (
	"errors"
	"net/mail"
	"strings"
)

// ErrInvalidEmail is returned for addresses that do not parse as a bare
// mailbox.
var ErrInvalidEmail = errors.New("invalid email")

// NormalizeEmail trims surrounding whitespace and lower-cases the address.
// It is idempotent.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks that email is a bare address ("a@b.c"), not a display
// form such as "Name <a@b.c>".
func ValidateEmail(email string) error {
	n := NormalizeEmail(email)
	if n == "" {
		return ErrEmailRequired
	}
	addr, err := mail.ParseAddress(n)
	if err != nil || addr.Address != n || addr.Name != "" {
		return ErrInvalidEmail
	}
	at := strings.LastIndex(n, "@")
	if at <= 0 || !strings.Contains(n[at+1:], ".") {
		return ErrInvalidEmail
	}
	return nil
}

// SameEmail compares two addresses case and whitespace insensitively.
func SameEmail(a, b string) bool {
	return NormalizeEmail(a) == NormalizeEmail(b)
}
