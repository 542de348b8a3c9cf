package models

import (
	"fmt"
	"strings"
	"time"

	"identityshelf/pkg/domain"
	dErrors "identityshelf/pkg/domain-errors"
)

// Status is the lifecycle state of an identity.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusInactive  Status = "INACTIVE"
	StatusSuspended Status = "SUSPENDED"
	StatusPending   Status = "PENDING"
)

// ParseStatus parses a status value case-insensitively.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusActive:
		return StatusActive, nil
	case StatusInactive:
		return StatusInactive, nil
	case StatusSuspended:
		return StatusSuspended, nil
	case StatusPending:
		return StatusPending, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown identity status %q", s))
}

// CanBeModified reports whether attribute and identifier writes are allowed
// in this state. Suspended and inactive identities are read-only.
func (s Status) CanBeModified() bool {
	return s == StatusActive || s == StatusPending
}

// Identity is one identity record. Its attribute values and identifiers live
// in their own stores; the record itself carries only the type reference and
// lifecycle state.
type Identity struct {
	ID             domain.IdentityID     `json:"id"`
	IdentityTypeID domain.IdentityTypeID `json:"identity_type_id"`
	DisplayName    string                `json:"display_name,omitempty"`
	Status         Status                `json:"status"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// NewIdentity constructs a pending identity of the given type.
func NewIdentity(id domain.IdentityID, identityTypeID domain.IdentityTypeID, displayName string, now time.Time) *Identity {
	return &Identity{
		ID:             id,
		IdentityTypeID: identityTypeID,
		DisplayName:    strings.TrimSpace(displayName),
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Rename replaces the display name.
func (i *Identity) Rename(displayName string, now time.Time) {
	i.DisplayName = strings.TrimSpace(displayName)
	i.UpdatedAt = now
}

// allowedTransitions is the status machine. Terminal reactivation from
// INACTIVE is allowed; SUSPENDED only moves back to ACTIVE or on to INACTIVE.
var allowedTransitions = map[Status][]Status{
	StatusPending:   {StatusActive, StatusInactive},
	StatusActive:    {StatusSuspended, StatusInactive},
	StatusSuspended: {StatusActive, StatusInactive},
	StatusInactive:  {StatusActive},
}

// TransitionTo moves the identity to a new status, enforcing the transition
// machine.
func (i *Identity) TransitionTo(next Status, now time.Time) error {
	if i.Status == next {
		return dErrors.New(dErrors.CodeInvariantViolation,
			fmt.Sprintf("identity is already %s", next))
	}
	for _, allowed := range allowedTransitions[i.Status] {
		if allowed == next {
			i.Status = next
			i.UpdatedAt = now
			return nil
		}
	}
	return dErrors.New(dErrors.CodeInvariantViolation,
		fmt.Sprintf("cannot transition identity from %s to %s", i.Status, next))
}
