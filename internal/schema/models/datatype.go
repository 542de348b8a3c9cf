package models

import (
	"fmt"
	"strings"
)

// DataType is the declared storage/coercion type of an attribute or
// identifier type. It selects which typed slot an attribute value populates.
type DataType string

const (
	DataTypeString   DataType = "STRING"
	DataTypeInteger  DataType = "INTEGER"
	DataTypeDecimal  DataType = "DECIMAL"
	DataTypeBoolean  DataType = "BOOLEAN"
	DataTypeDate     DataType = "DATE"
	DataTypeDateTime DataType = "DATETIME"
	DataTypeEmail    DataType = "EMAIL"
	DataTypeURL      DataType = "URL"
	DataTypePhone    DataType = "PHONE"
)

// DataTypes lists every valid data type.
func DataTypes() []DataType {
	return []DataType{
		DataTypeString, DataTypeInteger, DataTypeDecimal, DataTypeBoolean,
		DataTypeDate, DataTypeDateTime, DataTypeEmail, DataTypeURL, DataTypePhone,
	}
}

// ParseDataType parses a case-insensitive data type name.
func ParseDataType(s string) (DataType, error) {
	dt := DataType(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range DataTypes() {
		if dt == known {
			return dt, nil
		}
	}
	return "", fmt.Errorf("invalid data type: %q", s)
}

// IsTextual reports whether values of this type live in the string slot.
func (dt DataType) IsTextual() bool {
	switch dt {
	case DataTypeString, DataTypeEmail, DataTypeURL, DataTypePhone:
		return true
	}
	return false
}

// IsTemporal reports whether values of this type live in the timestamp slot.
func (dt DataType) IsTemporal() bool {
	return dt == DataTypeDate || dt == DataTypeDateTime
}
