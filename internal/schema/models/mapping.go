package models

import (
	"strings"
	"time"

	"identityshelf/pkg/domain"
)

// EffectiveRules is the validation regex and default value actually applied
// to a field after combining the base type with the mapping override.
type EffectiveRules struct {
	ValidationRegex string `json:"validation_regex,omitempty"`
	DefaultValue    string `json:"default_value,omitempty"`
}

// AttributeMapping binds an AttributeType into an IdentityType's schema,
// carrying per-identity-type overrides. At most one active mapping exists per
// (identity type, attribute type) pair.
type AttributeMapping struct {
	ID             domain.AttributeMappingID `json:"id"`
	IdentityTypeID domain.IdentityTypeID     `json:"identity_type_id"`
	// AttributeType is the attached base type. Stores populate it on read so
	// one resolved schema snapshot serves a whole validation pass.
	AttributeType *AttributeType `json:"attribute_type"`

	SortOrder               int    `json:"sort_order"`
	Required                bool   `json:"required"`
	OverrideValidationRegex string `json:"override_validation_regex,omitempty"`
	OverrideDefaultValue    string `json:"override_default_value,omitempty"`

	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EffectiveValidationRegex returns the override regex when present and
// non-blank, else the base type's regex, else empty.
func (m *AttributeMapping) EffectiveValidationRegex() string {
	if strings.TrimSpace(m.OverrideValidationRegex) != "" {
		return m.OverrideValidationRegex
	}
	if m.AttributeType != nil {
		return m.AttributeType.ValidationRegex
	}
	return ""
}

// EffectiveDefaultValue returns the override default when present and
// non-blank, else the base type's default, else empty.
func (m *AttributeMapping) EffectiveDefaultValue() string {
	if strings.TrimSpace(m.OverrideDefaultValue) != "" {
		return m.OverrideDefaultValue
	}
	if m.AttributeType != nil {
		return m.AttributeType.DefaultValue
	}
	return ""
}

// EffectiveRules resolves both effective values at once.
func (m *AttributeMapping) EffectiveRules() EffectiveRules {
	return EffectiveRules{
		ValidationRegex: m.EffectiveValidationRegex(),
		DefaultValue:    m.EffectiveDefaultValue(),
	}
}

// IdentifierMapping binds an IdentifierType into an IdentityType's schema.
// PrimaryCandidate gates whether identifiers of this type may be promoted to
// the identity's primary identifier.
type IdentifierMapping struct {
	ID             domain.IdentifierMappingID `json:"id"`
	IdentityTypeID domain.IdentityTypeID      `json:"identity_type_id"`
	IdentifierType *IdentifierType            `json:"identifier_type"`

	SortOrder               int    `json:"sort_order"`
	Required                bool   `json:"required"`
	PrimaryCandidate        bool   `json:"primary_candidate"`
	OverrideValidationRegex string `json:"override_validation_regex,omitempty"`
	OverrideDefaultValue    string `json:"override_default_value,omitempty"`

	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EffectiveValidationRegex returns the override regex when present and
// non-blank, else the base type's regex, else empty.
func (m *IdentifierMapping) EffectiveValidationRegex() string {
	if strings.TrimSpace(m.OverrideValidationRegex) != "" {
		return m.OverrideValidationRegex
	}
	if m.IdentifierType != nil {
		return m.IdentifierType.ValidationRegex
	}
	return ""
}

// EffectiveDefaultValue returns the override default when present and
// non-blank, else the base type's default, else empty.
func (m *IdentifierMapping) EffectiveDefaultValue() string {
	if strings.TrimSpace(m.OverrideDefaultValue) != "" {
		return m.OverrideDefaultValue
	}
	if m.IdentifierType != nil {
		return m.IdentifierType.DefaultValue
	}
	return ""
}

// EffectiveRules resolves both effective values at once.
func (m *IdentifierMapping) EffectiveRules() EffectiveRules {
	return EffectiveRules{
		ValidationRegex: m.EffectiveValidationRegex(),
		DefaultValue:    m.EffectiveDefaultValue(),
	}
}

// ResolvedSchema is one snapshot of an identity type's full schema: the type
// plus its active mappings ordered by sort order. A single snapshot is used
// throughout one validate-then-write pass.
type ResolvedSchema struct {
	IdentityType       IdentityType        `json:"identity_type"`
	AttributeMappings  []AttributeMapping  `json:"attribute_mappings"`
	IdentifierMappings []IdentifierMapping `json:"identifier_mappings"`
}

// AttributeMappingByName finds the attribute mapping whose base type carries
// the given field name, or nil.
func (s *ResolvedSchema) AttributeMappingByName(name string) *AttributeMapping {
	for i := range s.AttributeMappings {
		if s.AttributeMappings[i].AttributeType != nil && s.AttributeMappings[i].AttributeType.Name == name {
			return &s.AttributeMappings[i]
		}
	}
	return nil
}
