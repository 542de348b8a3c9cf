// Package domain defines typed identifiers shared across features.
//
// Each entity gets its own UUID-backed type so that an identity ID can never
// be passed where an attribute type ID is expected. Conversions to and from
// uuid.UUID are explicit.
package domain

import "github.com/google/uuid"

type (
	// IdentityTypeID identifies an identity type definition.
	IdentityTypeID uuid.UUID
	// AttributeTypeID identifies a reusable attribute type definition.
	AttributeTypeID uuid.UUID
	// IdentifierTypeID identifies a reusable identifier type definition.
	IdentifierTypeID uuid.UUID
	// AttributeMappingID identifies an identity-type/attribute-type mapping.
	AttributeMappingID uuid.UUID
	// IdentifierMappingID identifies an identity-type/identifier-type mapping.
	IdentifierMappingID uuid.UUID
	// IdentityID identifies an identity record.
	IdentityID uuid.UUID
	// IdentifierID identifies a single identifier row owned by an identity.
	IdentifierID uuid.UUID
	// ValueID identifies a stored attribute value row.
	ValueID uuid.UUID
)

func (id IdentityTypeID) String() string   { return uuid.UUID(id).String() }
func (id IdentityTypeID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id AttributeTypeID) String() string  { return uuid.UUID(id).String() }
func (id AttributeTypeID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id IdentifierTypeID) String() string { return uuid.UUID(id).String() }
func (id IdentifierTypeID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id AttributeMappingID) String() string  { return uuid.UUID(id).String() }
func (id AttributeMappingID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id IdentifierMappingID) String() string { return uuid.UUID(id).String() }
func (id IdentifierMappingID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id IdentityID) String() string   { return uuid.UUID(id).String() }
func (id IdentityID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id IdentifierID) String() string { return uuid.UUID(id).String() }
func (id IdentifierID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ValueID) String() string      { return uuid.UUID(id).String() }
func (id ValueID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }

// The text marshalling round-trips through the canonical UUID string so the
// typed IDs serialize the same way in JSON bodies and cache entries.

func (id IdentityTypeID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id *IdentityTypeID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id AttributeTypeID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id *AttributeTypeID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id IdentifierTypeID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id *IdentifierTypeID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id AttributeMappingID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id *AttributeMappingID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id IdentifierMappingID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id *IdentifierMappingID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id IdentityID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }
func (id *IdentityID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

func (id IdentifierID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }
func (id *IdentifierID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

func (id ValueID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }
func (id *ValueID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

// NewIdentityTypeID generates a fresh random identity type ID.
func NewIdentityTypeID() IdentityTypeID { return IdentityTypeID(uuid.New()) }

// NewAttributeTypeID generates a fresh random attribute type ID.
func NewAttributeTypeID() AttributeTypeID { return AttributeTypeID(uuid.New()) }

// NewIdentifierTypeID generates a fresh random identifier type ID.
func NewIdentifierTypeID() IdentifierTypeID { return IdentifierTypeID(uuid.New()) }

// NewAttributeMappingID generates a fresh random attribute mapping ID.
func NewAttributeMappingID() AttributeMappingID { return AttributeMappingID(uuid.New()) }

// NewIdentifierMappingID generates a fresh random identifier mapping ID.
func NewIdentifierMappingID() IdentifierMappingID { return IdentifierMappingID(uuid.New()) }

// NewIdentityID generates a fresh random identity ID.
func NewIdentityID() IdentityID { return IdentityID(uuid.New()) }

// NewIdentifierID generates a fresh random identifier ID.
func NewIdentifierID() IdentifierID { return IdentifierID(uuid.New()) }

// NewValueID generates a fresh random value ID.
func NewValueID() ValueID { return ValueID(uuid.New()) }

// ParseIdentityTypeID parses the canonical string form of an identity type ID.
func ParseIdentityTypeID(s string) (IdentityTypeID, error) {
	u, err := uuid.Parse(s)
	return IdentityTypeID(u), err
}

// ParseAttributeTypeID parses the canonical string form of an attribute type ID.
func ParseAttributeTypeID(s string) (AttributeTypeID, error) {
	u, err := uuid.Parse(s)
	return AttributeTypeID(u), err
}

// ParseIdentifierTypeID parses the canonical string form of an identifier type ID.
func ParseIdentifierTypeID(s string) (IdentifierTypeID, error) {
	u, err := uuid.Parse(s)
	return IdentifierTypeID(u), err
}

// ParseAttributeMappingID parses the canonical string form of an attribute mapping ID.
func ParseAttributeMappingID(s string) (AttributeMappingID, error) {
	u, err := uuid.Parse(s)
	return AttributeMappingID(u), err
}

// ParseIdentifierMappingID parses the canonical string form of an identifier mapping ID.
func ParseIdentifierMappingID(s string) (IdentifierMappingID, error) {
	u, err := uuid.Parse(s)
	return IdentifierMappingID(u), err
}

// ParseIdentityID parses the canonical string form of an identity ID.
func ParseIdentityID(s string) (IdentityID, error) {
	u, err := uuid.Parse(s)
	return IdentityID(u), err
}

// ParseIdentifierID parses the canonical string form of an identifier ID.
func ParseIdentifierID(s string) (IdentifierID, error) {
	u, err := uuid.Parse(s)
	return IdentifierID(u), err
}
