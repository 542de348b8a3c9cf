package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"identityshelf/pkg/domain"
)

func newMapping(baseRegex, baseDefault, overrideRegex, overrideDefault string) *AttributeMapping {
	now := time.Now()
	return &AttributeMapping{
		ID:             domain.NewAttributeMappingID(),
		IdentityTypeID: domain.NewIdentityTypeID(),
		AttributeType: &AttributeType{
			ID:              domain.NewAttributeTypeID(),
			Name:            "age",
			DisplayName:     "Age",
			DataType:        DataTypeInteger,
			ValidationRegex: baseRegex,
			DefaultValue:    baseDefault,
			Active:          true,
			CreatedAt:       now,
			UpdatedAt:       now,
		},
		Active:                  true,
		OverrideValidationRegex: overrideRegex,
		OverrideDefaultValue:    overrideDefault,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
}

// TestEffectiveValidationRegex covers every combination of base and override
// presence: override wins when non-blank, base applies otherwise, and no
// rule resolves when both are absent.
func TestEffectiveValidationRegex(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		override string
		want     string
	}{
		{"override wins over base", `^[0-9]+$`, `^[0-9]{1,3}$`, `^[0-9]{1,3}$`},
		{"base applies when no override", `^[0-9]+$`, "", `^[0-9]+$`},
		{"override applies when no base", "", `^[0-9]{1,3}$`, `^[0-9]{1,3}$`},
		{"none when both absent", "", "", ""},
		{"blank override falls back to base", `^[0-9]+$`, "   ", `^[0-9]+$`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMapping(tt.base, "", tt.override, "")
			assert.Equal(t, tt.want, m.EffectiveValidationRegex())
		})
	}
}

func TestEffectiveDefaultValue(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		override string
		want     string
	}{
		{"override wins over base", "0", "18", "18"},
		{"base applies when no override", "0", "", "0"},
		{"override applies when no base", "", "18", "18"},
		{"none when both absent", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMapping("", tt.base, "", tt.override)
			assert.Equal(t, tt.want, m.EffectiveDefaultValue())
		})
	}
}

func TestEffectiveRulesWithoutBaseType(t *testing.T) {
	m := &AttributeMapping{OverrideValidationRegex: `^x$`}
	rules := m.EffectiveRules()
	assert.Equal(t, `^x$`, rules.ValidationRegex)
	assert.Empty(t, rules.DefaultValue)
}

func TestParseDataType(t *testing.T) {
	dt, err := ParseDataType("integer")
	require.NoError(t, err)
	assert.Equal(t, DataTypeInteger, dt)

	_, err = ParseDataType("blob")
	assert.Error(t, err)
}

func TestIdentityTypeLifecycle(t *testing.T) {
	now := time.Now()
	it, err := NewIdentityType(domain.NewIdentityTypeID(), "person", "Person", "", now)
	require.NoError(t, err)
	require.True(t, it.Active)

	require.NoError(t, it.Deactivate(now))
	assert.False(t, it.Active)
	assert.Error(t, it.Deactivate(now), "double deactivation violates the transition invariant")

	require.NoError(t, it.Reactivate(now))
	assert.True(t, it.Active)
}

func TestNewIdentityTypeRejectsEmptyName(t *testing.T) {
	_, err := NewIdentityType(domain.NewIdentityTypeID(), "  ", "", "", time.Now())
	assert.Error(t, err)
}
