package service

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"identityshelf/internal/schema/models"
	"identityshelf/pkg/domain"
)

func testMapping(name, displayName, baseRegex, overrideRegex string, required bool) models.AttributeMapping {
	now := time.Now()
	return models.AttributeMapping{
		ID:             domain.NewAttributeMappingID(),
		IdentityTypeID: domain.NewIdentityTypeID(),
		AttributeType: &models.AttributeType{
			ID:              domain.NewAttributeTypeID(),
			Name:            name,
			DisplayName:     displayName,
			DataType:        models.DataTypeString,
			ValidationRegex: baseRegex,
			Active:          true,
			CreatedAt:       now,
			UpdatedAt:       now,
		},
		Required:                required,
		OverrideValidationRegex: overrideRegex,
		Active:                  true,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
}

func str(s string) *string { return &s }

func newTestValidator() *Validator {
	return NewValidator(slog.New(slog.DiscardHandler))
}

func TestValidateRequiredField(t *testing.T) {
	v := newTestValidator()
	mappings := []models.AttributeMapping{testMapping("email", "Email", "", "", true)}

	tests := []struct {
		name   string
		fields map[string]*string
	}{
		{"absent", map[string]*string{}},
		{"nil value", map[string]*string{"email": nil}},
		{"blank value", map[string]*string{"email": str("   ")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := v.Validate(tt.fields, mappings)
			require.Len(t, errs, 1)
			assert.Equal(t, "email", errs[0].Field)
			assert.Equal(t, "Field 'Email' is required", errs[0].Message)
		})
	}
}

func TestValidateBaseRegexFailureStopsOverrideCheck(t *testing.T) {
	v := newTestValidator()
	mappings := []models.AttributeMapping{
		testMapping("age", "Age", `[0-9]+`, `[0-9]{1,3}`, false),
	}

	errs := v.Validate(map[string]*string{"age": str("abc")}, mappings)
	require.Len(t, errs, 1, "base failure must not stack an override failure on the same field")
	assert.Equal(t, "Age format is invalid (base rule)", errs[0].Message)
}

func TestValidateOverrideIsIndependentSecondCheck(t *testing.T) {
	v := newTestValidator()
	mappings := []models.AttributeMapping{
		testMapping("age", "Age", `[0-9]+`, `[0-9]{1,3}`, false),
	}

	// Passes the base rule, fails the tighter override.
	errs := v.Validate(map[string]*string{"age": str("1234")}, mappings)
	require.Len(t, errs, 1)
	assert.Equal(t, "Age format is invalid (additional rule)", errs[0].Message)

	errs = v.Validate(map[string]*string{"age": str("123")}, mappings)
	assert.Empty(t, errs)
}

func TestValidateFullMatchAnchoring(t *testing.T) {
	v := newTestValidator()
	mappings := []models.AttributeMapping{
		testMapping("code", "Code", `[A-Z]{3}`, "", false),
	}

	// A substring match is not enough; the whole value must match.
	errs := v.Validate(map[string]*string{"code": str("xxABCxx")}, mappings)
	require.Len(t, errs, 1)

	errs = v.Validate(map[string]*string{"code": str("ABC")}, mappings)
	assert.Empty(t, errs)
}

func TestValidateBlankOptionalFieldSkipsRegex(t *testing.T) {
	v := newTestValidator()
	mappings := []models.AttributeMapping{
		testMapping("nickname", "Nickname", `[a-z]+`, "", false),
	}

	errs := v.Validate(map[string]*string{"nickname": str("")}, mappings)
	assert.Empty(t, errs)
}

func TestValidateUncompilablePatternIsSkipped(t *testing.T) {
	v := newTestValidator()
	mappings := []models.AttributeMapping{
		testMapping("email", "Email", `([`, "", false),
	}

	errs := v.Validate(map[string]*string{"email": str("whatever")}, mappings)
	assert.Empty(t, errs, "a broken stored pattern must not fail the request")
}

func TestValidateAccumulatesAcrossFields(t *testing.T) {
	v := newTestValidator()
	mappings := []models.AttributeMapping{
		testMapping("email", "Email", `[^@\s]+@[^@\s]+`, "", true),
		testMapping("age", "Age", `[0-9]+`, "", true),
		testMapping("name", "Name", "", "", true),
	}

	errs := v.Validate(map[string]*string{
		"email": str("not-an-email"),
		"age":   str("abc"),
	}, mappings)
	assert.Len(t, errs, 3, "two format failures plus one missing required field")
}
