package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	schema "identityshelf/internal/schema/models"
	"identityshelf/pkg/domain"
	dErrors "identityshelf/pkg/domain-errors"
)

// ValueKind tags which slot of an AttributeValue is populated.
type ValueKind string

const (
	KindNull     ValueKind = "NULL"
	KindString   ValueKind = "STRING"
	KindInteger  ValueKind = "INTEGER"
	KindDecimal  ValueKind = "DECIMAL"
	KindBoolean  ValueKind = "BOOLEAN"
	KindDate     ValueKind = "DATE"
	KindDateTime ValueKind = "DATETIME"
)

// DateLayout is the wire and storage layout for date-only values.
const DateLayout = "2006-01-02"

// AttributeValue is a typed attribute value: a kind tag plus exactly one
// populated slot. Construct through the typed constructors or Coerce;
// the zero value is the null value.
type AttributeValue struct {
	kind ValueKind
	str  string
	num  int64
	dec  float64
	b    bool
	t    time.Time
}

// NullValue is the explicit absent value.
func NullValue() AttributeValue { return AttributeValue{kind: KindNull} }

// StringValue wraps a textual value.
func StringValue(s string) AttributeValue { return AttributeValue{kind: KindString, str: s} }

// IntValue wraps an integer value.
func IntValue(i int64) AttributeValue { return AttributeValue{kind: KindInteger, num: i} }

// DecimalValue wraps a decimal value.
func DecimalValue(f float64) AttributeValue { return AttributeValue{kind: KindDecimal, dec: f} }

// BoolValue wraps a boolean value.
func BoolValue(b bool) AttributeValue { return AttributeValue{kind: KindBoolean, b: b} }

// DateValue wraps a date-only value; the time portion is truncated.
func DateValue(t time.Time) AttributeValue {
	return AttributeValue{kind: KindDate, t: t.Truncate(24 * time.Hour)}
}

// DateTimeValue wraps a timestamp value.
func DateTimeValue(t time.Time) AttributeValue { return AttributeValue{kind: KindDateTime, t: t} }

// Kind reports which slot is populated. The zero value reports KindNull.
func (v AttributeValue) Kind() ValueKind {
	if v.kind == "" {
		return KindNull
	}
	return v.kind
}

// IsNull reports whether no slot is populated.
func (v AttributeValue) IsNull() bool { return v.Kind() == KindNull }

// AsString returns the string slot.
func (v AttributeValue) AsString() (string, bool) { return v.str, v.kind == KindString }

// AsInt returns the integer slot.
func (v AttributeValue) AsInt() (int64, bool) { return v.num, v.kind == KindInteger }

// AsDecimal returns the decimal slot.
func (v AttributeValue) AsDecimal() (float64, bool) { return v.dec, v.kind == KindDecimal }

// AsBool returns the boolean slot.
func (v AttributeValue) AsBool() (bool, bool) { return v.b, v.kind == KindBoolean }

// AsTime returns the temporal slot, shared by dates and timestamps.
func (v AttributeValue) AsTime() (time.Time, bool) {
	return v.t, v.kind == KindDate || v.kind == KindDateTime
}

// String renders the value back to its canonical string form. Null renders
// as the empty string.
func (v AttributeValue) String() string {
	switch v.Kind() {
	case KindString:
		return v.str
	case KindInteger:
		return strconv.FormatInt(v.num, 10)
	case KindDecimal:
		return strconv.FormatFloat(v.dec, 'f', -1, 64)
	case KindBoolean:
		return strconv.FormatBool(v.b)
	case KindDate:
		return v.t.Format(DateLayout)
	case KindDateTime:
		return v.t.Format(time.RFC3339)
	default:
		return ""
	}
}

// CoercionPolicy controls what happens when a raw string does not parse as
// its attribute's data type.
type CoercionPolicy string

const (
	// CoercionLenient stores null for unparseable values.
	CoercionLenient CoercionPolicy = "lenient"
	// CoercionStrict rejects unparseable values with a validation error.
	CoercionStrict CoercionPolicy = "strict"
)

// Coerce converts a raw string into the typed value for the attribute's data
// type. Blank input always coerces to null. Under the lenient policy an
// unparseable value also becomes null; under the strict policy it is a
// validation error.
func Coerce(dataType schema.DataType, raw string, policy CoercionPolicy) (AttributeValue, error) {
	if strings.TrimSpace(raw) == "" {
		return NullValue(), nil
	}

	v, err := coerce(dataType, raw)
	if err != nil {
		if policy == CoercionStrict {
			return NullValue(), dErrors.New(dErrors.CodeValidation,
				fmt.Sprintf("value %q is not a valid %s", raw, dataType))
		}
		return NullValue(), nil
	}
	return v, nil
}

func coerce(dataType schema.DataType, raw string) (AttributeValue, error) {
	switch dataType {
	case schema.DataTypeInteger:
		i, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return NullValue(), err
		}
		return IntValue(i), nil
	case schema.DataTypeDecimal:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return NullValue(), err
		}
		return DecimalValue(f), nil
	case schema.DataTypeBoolean:
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "true":
			return BoolValue(true), nil
		case "false":
			return BoolValue(false), nil
		}
		return NullValue(), fmt.Errorf("not a boolean: %q", raw)
	case schema.DataTypeDate:
		// Dates arrive as offset timestamps like datetimes; only the date
		// portion is kept. A bare date is accepted too.
		s := strings.TrimSpace(raw)
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			t, err = time.Parse(DateLayout, s)
			if err != nil {
				return NullValue(), err
			}
		}
		return DateValue(t), nil
	case schema.DataTypeDateTime:
		t, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
		if err != nil {
			return NullValue(), err
		}
		return DateTimeValue(t), nil
	default:
		// STRING, EMAIL, URL, PHONE carry the text as-is; format rules live
		// in the validation regexes, not in coercion.
		return StringValue(raw), nil
	}
}

// ValueColumns is the flattened multi-column form an AttributeValue is
// persisted in. Exactly one pointer is non-nil for non-null values.
type ValueColumns struct {
	String   *string
	Integer  *int64
	Decimal  *float64
	Boolean  *bool
	Date     *time.Time
	DateTime *time.Time
}

// Columns splits the value into its storage columns.
func (v AttributeValue) Columns() ValueColumns {
	var c ValueColumns
	switch v.Kind() {
	case KindString:
		s := v.str
		c.String = &s
	case KindInteger:
		i := v.num
		c.Integer = &i
	case KindDecimal:
		f := v.dec
		c.Decimal = &f
	case KindBoolean:
		b := v.b
		c.Boolean = &b
	case KindDate:
		t := v.t
		c.Date = &t
	case KindDateTime:
		t := v.t
		c.DateTime = &t
	}
	return c
}

// HydrateValue rebuilds an AttributeValue from its storage columns. The data
// type decides which column is authoritative; a row where that column is null
// hydrates to the null value.
func HydrateValue(dataType schema.DataType, c ValueColumns) AttributeValue {
	switch dataType {
	case schema.DataTypeInteger:
		if c.Integer != nil {
			return IntValue(*c.Integer)
		}
	case schema.DataTypeDecimal:
		if c.Decimal != nil {
			return DecimalValue(*c.Decimal)
		}
	case schema.DataTypeBoolean:
		if c.Boolean != nil {
			return BoolValue(*c.Boolean)
		}
	case schema.DataTypeDate:
		if c.Date != nil {
			return DateValue(*c.Date)
		}
	case schema.DataTypeDateTime:
		if c.DateTime != nil {
			return DateTimeValue(*c.DateTime)
		}
	default:
		if c.String != nil {
			return StringValue(*c.String)
		}
	}
	return NullValue()
}

// AttributeValueRecord is one stored attribute value owned by an identity.
type AttributeValueRecord struct {
	ID              domain.ValueID         `json:"id"`
	IdentityID      domain.IdentityID      `json:"identity_id"`
	AttributeTypeID domain.AttributeTypeID `json:"attribute_type_id"`
	// AttributeName is the base type's name, attached by stores on read.
	AttributeName string          `json:"attribute_name,omitempty"`
	DataType      schema.DataType `json:"data_type"`
	Value         AttributeValue  `json:"-"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
