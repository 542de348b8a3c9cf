package service

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"identityshelf/internal/schema/models"
	dErrors "identityshelf/pkg/domain-errors"
)

// Validator evaluates a set of proposed field values against the attribute
// mappings of one resolved schema snapshot. All fields are evaluated
// independently and every failure is accumulated; a single bad field never
// short-circuits the rest.
type Validator struct {
	logger *slog.Logger
}

// NewValidator constructs a Validator.
func NewValidator(logger *slog.Logger) *Validator {
	return &Validator{logger: logger}
}

// Validate checks fields against mappings and returns all field errors.
//
// Rules, in order per field:
//   - required mappings with an absent or blank value produce a required-field
//     error and nothing else for that field;
//   - present values are checked against the base regex first; a base failure
//     stops further checks on that field;
//   - the override regex is then applied as an independent second check;
//   - fields without a mapping are ignored, and blank optional fields skip
//     regex checks entirely.
//
// Both patterns use full-match semantics. A stored pattern that fails to
// compile is logged and skipped rather than failing the request.
func (v *Validator) Validate(fields map[string]*string, mappings []models.AttributeMapping) []dErrors.FieldError {
	var errs []dErrors.FieldError

	for i := range mappings {
		m := &mappings[i]
		if m.AttributeType == nil || !m.Required {
			continue
		}
		if isBlank(fields[m.AttributeType.Name]) {
			errs = append(errs, dErrors.FieldError{
				Field:   m.AttributeType.Name,
				Message: fmt.Sprintf("Field '%s' is required", m.AttributeType.DisplayName),
			})
		}
	}

	for name, value := range fields {
		if isBlank(value) {
			continue
		}
		m := mappingByName(mappings, name)
		if m == nil {
			// Not part of the schema; ignored, not rejected.
			continue
		}
		errs = append(errs, v.checkPatterns(name, *value, m)...)
	}

	return errs
}

// checkPatterns applies the base regex and then, independently, the override
// regex. The two patterns are compiled and matched separately; combining them
// into one lookahead expression is exactly the kind of trick that breaks on
// anchoring and escaping.
func (v *Validator) checkPatterns(field, value string, m *models.AttributeMapping) []dErrors.FieldError {
	var errs []dErrors.FieldError
	display := field
	if m.AttributeType != nil {
		display = m.AttributeType.DisplayName
	}

	if base := baseRegex(m); strings.TrimSpace(base) != "" {
		matched, err := matchFull(base, value)
		if err != nil {
			v.logger.Warn("invalid base regex pattern for attribute",
				"field", field, "pattern", base, "error", err)
		} else if !matched {
			errs = append(errs, dErrors.FieldError{
				Field:   field,
				Message: fmt.Sprintf("%s format is invalid (base rule)", display),
			})
			return errs
		}
	}

	if override := m.OverrideValidationRegex; strings.TrimSpace(override) != "" {
		matched, err := matchFull(override, value)
		if err != nil {
			v.logger.Warn("invalid override regex pattern for attribute",
				"field", field, "pattern", override, "error", err)
		} else if !matched {
			errs = append(errs, dErrors.FieldError{
				Field:   field,
				Message: fmt.Sprintf("%s format is invalid (additional rule)", display),
			})
		}
	}

	return errs
}

// matchFull compiles pattern with full-match anchoring and matches value
// against it.
func matchFull(pattern, value string) (bool, error) {
	re, err := regexp.Compile(`\A(?:` + pattern + `)\z`)
	if err != nil {
		return false, err
	}
	return re.MatchString(value), nil
}

func baseRegex(m *models.AttributeMapping) string {
	if m.AttributeType == nil {
		return ""
	}
	return m.AttributeType.ValidationRegex
}

func mappingByName(mappings []models.AttributeMapping, name string) *models.AttributeMapping {
	for i := range mappings {
		if mappings[i].AttributeType != nil && mappings[i].AttributeType.Name == name {
			return &mappings[i]
		}
	}
	return nil
}

func isBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}
