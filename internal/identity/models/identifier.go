package models

import (
	"strings"
	"time"

	"identityshelf/pkg/domain"
	dErrors "identityshelf/pkg/domain-errors"
)

// Identifier is one identifier value owned by an identity, typed by an
// identifier type from the schema registry. At most one active identifier per
// identity is primary; for unique identifier types the value is unique across
// all active identifiers system-wide.
type Identifier struct {
	ID               domain.IdentifierID     `json:"id"`
	IdentityID       domain.IdentityID       `json:"identity_id"`
	IdentifierTypeID domain.IdentifierTypeID `json:"identifier_type_id"`
	// IdentifierTypeName is attached by stores on read.
	IdentifierTypeName string `json:"identifier_type_name,omitempty"`

	Value   string `json:"value"`
	Primary bool   `json:"primary"`

	Verified   bool       `json:"verified"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
	VerifiedBy string     `json:"verified_by,omitempty"`

	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewIdentifier constructs an active, unverified identifier.
func NewIdentifier(id domain.IdentifierID, identityID domain.IdentityID, typeID domain.IdentifierTypeID, value string, primary bool, now time.Time) (*Identifier, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "identifier value cannot be empty")
	}
	return &Identifier{
		ID:               id,
		IdentityID:       identityID,
		IdentifierTypeID: typeID,
		Value:            value,
		Primary:          primary,
		Active:           true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// MarkVerified records a verification by the given actor. Verifying twice is
// an invariant violation; verification is not re-entrant.
func (i *Identifier) MarkVerified(by string, now time.Time) error {
	if !i.Active {
		return dErrors.New(dErrors.CodeInvariantViolation, "cannot verify an inactive identifier")
	}
	if i.Verified {
		return dErrors.New(dErrors.CodeInvariantViolation, "identifier is already verified")
	}
	i.Verified = true
	i.VerifiedAt = &now
	i.VerifiedBy = by
	i.UpdatedAt = now
	return nil
}

// Deactivate soft-deletes the identifier. A deactivated primary loses its
// primary flag so the slot frees up for a successor.
func (i *Identifier) Deactivate(now time.Time) error {
	if !i.Active {
		return dErrors.New(dErrors.CodeInvariantViolation, "identifier is already inactive")
	}
	i.Active = false
	i.Primary = false
	i.UpdatedAt = now
	return nil
}
