package models

import (
	"strings"
	"time"

	"identityshelf/pkg/domain"
	dErrors "identityshelf/pkg/domain-errors"
)

// IdentityType defines one kind of identity (person, organization, device).
// Its attribute and identifier mappings form the schema that identities of
// this type are validated against.
type IdentityType struct {
	ID          domain.IdentityTypeID `json:"id"`
	Name        string                `json:"name"`
	DisplayName string                `json:"display_name"`
	Description string                `json:"description,omitempty"`
	Active      bool                  `json:"active"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// NewIdentityType constructs an active identity type, enforcing naming invariants.
func NewIdentityType(id domain.IdentityTypeID, name, displayName, description string, now time.Time) (*IdentityType, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "identity type name cannot be empty")
	}
	if len(name) > 128 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "identity type name must be 128 characters or less")
	}
	if displayName == "" {
		displayName = name
	}
	return &IdentityType{
		ID:          id,
		Name:        name,
		DisplayName: displayName,
		Description: description,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Deactivate soft-deletes the identity type. Existing identities keep their
// type reference; new identities of this type are rejected.
func (t *IdentityType) Deactivate(now time.Time) error {
	if !t.Active {
		return dErrors.New(dErrors.CodeInvariantViolation, "identity type is already inactive")
	}
	t.Active = false
	t.UpdatedAt = now
	return nil
}

// Reactivate is the only resurrection path for a deactivated type.
func (t *IdentityType) Reactivate(now time.Time) error {
	if t.Active {
		return dErrors.New(dErrors.CodeInvariantViolation, "identity type is already active")
	}
	t.Active = true
	t.UpdatedAt = now
	return nil
}

// AttributeType is a reusable field schema: a data type plus optional base
// validation regex and base default value. It is independent of any identity
// type; mappings bind it with per-identity-type overrides.
type AttributeType struct {
	ID              domain.AttributeTypeID `json:"id"`
	Name            string                 `json:"name"`
	DisplayName     string                 `json:"display_name"`
	Description     string                 `json:"description,omitempty"`
	DataType        DataType               `json:"data_type"`
	ValidationRegex string                 `json:"validation_regex,omitempty"`
	DefaultValue    string                 `json:"default_value,omitempty"`
	Active          bool                   `json:"active"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// NewAttributeType constructs an active attribute type.
func NewAttributeType(id domain.AttributeTypeID, name, displayName string, dataType DataType, validationRegex, defaultValue string, now time.Time) (*AttributeType, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "attribute type name cannot be empty")
	}
	if displayName == "" {
		displayName = name
	}
	return &AttributeType{
		ID:              id,
		Name:            name,
		DisplayName:     displayName,
		DataType:        dataType,
		ValidationRegex: validationRegex,
		DefaultValue:    defaultValue,
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// Deactivate soft-deletes the attribute type.
func (t *AttributeType) Deactivate(now time.Time) error {
	if !t.Active {
		return dErrors.New(dErrors.CodeInvariantViolation, "attribute type is already inactive")
	}
	t.Active = false
	t.UpdatedAt = now
	return nil
}

// IdentifierType is an attribute-type-shaped schema for identity identifiers.
// Unique identifier types enforce global value uniqueness across active
// identifiers; searchable ones participate in free-text identifier search.
type IdentifierType struct {
	ID              domain.IdentifierTypeID `json:"id"`
	Name            string                  `json:"name"`
	DisplayName     string                  `json:"display_name"`
	Description     string                  `json:"description,omitempty"`
	DataType        DataType                `json:"data_type"`
	ValidationRegex string                  `json:"validation_regex,omitempty"`
	DefaultValue    string                  `json:"default_value,omitempty"`
	Unique          bool                    `json:"unique"`
	Searchable      bool                    `json:"searchable"`
	Active          bool                    `json:"active"`
	CreatedAt       time.Time               `json:"created_at"`
	UpdatedAt       time.Time               `json:"updated_at"`
}

// NewIdentifierType constructs an active identifier type.
func NewIdentifierType(id domain.IdentifierTypeID, name, displayName string, dataType DataType, validationRegex string, unique, searchable bool, now time.Time) (*IdentifierType, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "identifier type name cannot be empty")
	}
	if displayName == "" {
		displayName = name
	}
	return &IdentifierType{
		ID:              id,
		Name:            name,
		DisplayName:     displayName,
		DataType:        dataType,
		ValidationRegex: validationRegex,
		Unique:          unique,
		Searchable:      searchable,
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// Deactivate soft-deletes the identifier type.
func (t *IdentifierType) Deactivate(now time.Time) error {
	if !t.Active {
		return dErrors.New(dErrors.CodeInvariantViolation, "identifier type is already inactive")
	}
	t.Active = false
	t.UpdatedAt = now
	return nil
}
