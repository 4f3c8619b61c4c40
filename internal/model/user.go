package model

import "time"

// User is an account in the directory. Owners and contacts are both users;
// this core only reads accounts and writes the deceased fields.
type User struct {
	ID                  string     `json:"id"`
	Email               string     `json:"email"`
	Name                string     `json:"name"`
	IsAdmin             bool       `json:"-"`
	DeceasedAt          *time.Time `json:"deceased_at,omitempty"`
	DeceasedConfirmedBy *string    `json:"-"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// IsDeceased returns true once a deceased confirmation has completed.
func (u *User) IsDeceased() bool {
	return u.DeceasedAt != nil
}

// DisplayName falls back to the e-mail address when no name is set.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}
