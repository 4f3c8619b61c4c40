package service

import "errors"

// ErrForbidden is the single denial returned for every failed authorization
// check. It carries no detail about the target.
var ErrForbidden = errors.New("forbidden")

// ErrValidation matches every *ValidationError via errors.Is.
var ErrValidation = errors.New("validation failed")

// ValidationError is a caller mistake. Code is a stable machine-readable
// reason that handlers return to the client.
type ValidationError struct {
	Code string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Code
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(code string) error {
	return &ValidationError{Code: code}
}

// Validation codes.
const (
	CodeInvalidEmail         = "invalid_email"
	CodeFullNameRequired     = "full_name_required"
	CodeInvalidContactType   = "invalid_contact_type"
	CodeInvalidRole          = "invalid_role"
	CodeRoleRequired         = "role_required"
	CodeCannotAddSelf        = "cannot_add_self"
	CodeTargetRequired       = "target_owner_id_required"
	CodeInvalidMethod        = "invalid_verification_method"
	CodeNotesTooLong         = "notes_too_long"
	CodeConfirmationMismatch = "confirmation_mismatch"
)
