package model

import (
	"fmt"
	"strings"
	"time"
)

// VerificationMethod records how the confirming contact learned of the death.
type VerificationMethod string

const (
	VerificationFamilyNotification  VerificationMethod = "family_notification"
	VerificationOfficialDocument    VerificationMethod = "official_document"
	VerificationFuneralService      VerificationMethod = "funeral_service"
	VerificationMedicalProfessional VerificationMethod = "medical_professional"
	VerificationOther               VerificationMethod = "other"
)

// ParseVerificationMethod converts a raw value into a VerificationMethod.
func ParseVerificationMethod(s string) (VerificationMethod, error) {
	m := VerificationMethod(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case VerificationFamilyNotification, VerificationOfficialDocument,
		VerificationFuneralService, VerificationMedicalProfessional, VerificationOther:
		return m, nil
	}
	return "", fmt.Errorf("invalid verification_method %q", s)
}

// ConfirmationOutcome classifies a deceased-confirmation attempt.
type ConfirmationOutcome string

const (
	OutcomeConfirmed            ConfirmationOutcome = "confirmed"
	OutcomeAlreadyConfirmed     ConfirmationOutcome = "already_confirmed"
	OutcomeRejectedUnauthorized ConfirmationOutcome = "rejected_unauthorized"
	OutcomeRejectedInvalid      ConfirmationOutcome = "rejected_invalid"
	OutcomeFailed               ConfirmationOutcome = "failed"
)

// ConfirmationEvent is one row of the deceased-confirmation audit trail.
// Every attempt is recorded, including rejected and duplicate ones.
type ConfirmationEvent struct {
	ID                 string              `json:"id"`
	TargetOwnerID      string              `json:"target_owner_id"`
	CallerID           string              `json:"caller_id"`
	Outcome            ConfirmationOutcome `json:"outcome"`
	VerificationMethod string              `json:"verification_method,omitempty"`
	Notes              string              `json:"notes,omitempty"`
	Grants             int                 `json:"grants"`
	Detail             string              `json:"detail,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
}

// ConfirmationSentence is the exact text a caller must retype to confirm the
// death of the named owner.
func ConfirmationSentence(displayName string) string {
	return fmt.Sprintf("I confirm that %s has passed away", displayName)
}
