package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"identityshelf/internal/identity/models"
	schema "identityshelf/internal/schema/models"
	"identityshelf/pkg/domain"
	dErrors "identityshelf/pkg/domain-errors"
	"identityshelf/pkg/platform/sentinel"
	"identityshelf/pkg/requestcontext"
)

// AddIdentifierParams carries the fields for a new identifier.
type AddIdentifierParams struct {
	IdentifierTypeID domain.IdentifierTypeID
	Value            string
	Primary          bool
}

// AddIdentifier attaches an identifier to an identity. Gates run in order:
// the identifier type must be mapped into the identity's schema, the value
// must match the effective regex, unique identifier types must not collide
// with another active identifier, and only primary-candidate mappings may
// produce a primary. Promoting to primary demotes the current primary in the
// same transaction.
func (s *Service) AddIdentifier(ctx context.Context, identityID domain.IdentityID, p AddIdentifierParams) (*models.Identifier, error) {
	ctx, span := s.tracer.Start(ctx, "identity.AddIdentifier")
	defer span.End()

	identity, err := s.modifiableIdentity(ctx, identityID)
	if err != nil {
		return nil, err
	}
	mapping, err := s.identifierMapping(ctx, identity.IdentityTypeID, p.IdentifierTypeID)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	identifier, err := models.NewIdentifier(domain.NewIdentifierID(), identityID, p.IdentifierTypeID, p.Value, p.Primary, now)
	if err != nil {
		return nil, err
	}
	identifier.IdentifierTypeName = mapping.IdentifierType.Name

	if err := s.checkIdentifierValue(ctx, mapping, identifier.Value, domain.IdentifierID{}); err != nil {
		return nil, err
	}
	if p.Primary && !mapping.PrimaryCandidate {
		return nil, dErrors.New(dErrors.CodeInvariantViolation,
			fmt.Sprintf("identifier type %q is not a primary candidate for this identity type", mapping.IdentifierType.Name))
	}

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if p.Primary {
			if err := s.demoteCurrentPrimary(ctx, identityID, now); err != nil {
				return err
			}
		}
		if err := s.identifiers.Create(ctx, identifier, mapping.IdentifierType.Unique); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return s.uniqueConflict(mapping)
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create identifier")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IdentifiersCreated.Inc()
	}
	s.logger.InfoContext(ctx, "identifier added",
		"identity_id", identityID.String(),
		"identifier_type", mapping.IdentifierType.Name,
		"primary", p.Primary)
	return identifier, nil
}

// UpdateIdentifierValue changes an identifier's value, re-running the format
// and uniqueness gates with the identifier itself excluded from the
// uniqueness check.
func (s *Service) UpdateIdentifierValue(ctx context.Context, id domain.IdentifierID, value string) (*models.Identifier, error) {
	identifier, err := s.loadIdentifier(ctx, id)
	if err != nil {
		return nil, err
	}
	if !identifier.Active {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "cannot update an inactive identifier")
	}
	identity, err := s.modifiableIdentity(ctx, identifier.IdentityID)
	if err != nil {
		return nil, err
	}
	mapping, err := s.identifierMapping(ctx, identity.IdentityTypeID, identifier.IdentifierTypeID)
	if err != nil {
		return nil, err
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "identifier value cannot be empty")
	}
	if value == identifier.Value {
		return identifier, nil
	}
	if err := s.checkIdentifierValue(ctx, mapping, value, id); err != nil {
		return nil, err
	}

	identifier.Value = value
	// A changed value invalidates any earlier verification.
	identifier.Verified = false
	identifier.VerifiedAt = nil
	identifier.VerifiedBy = ""
	identifier.UpdatedAt = requestcontext.Now(ctx)

	if err := s.identifiers.Save(ctx, identifier, mapping.IdentifierType.Unique); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, s.uniqueConflict(mapping)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save identifier")
	}
	return identifier, nil
}

// VerifyIdentifier marks an identifier verified by the authenticated actor.
func (s *Service) VerifyIdentifier(ctx context.Context, id domain.IdentifierID) (*models.Identifier, error) {
	identifier, err := s.loadIdentifier(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := identifier.MarkVerified(requestcontext.Actor(ctx), requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if err := s.saveIdentifier(ctx, identifier); err != nil {
		return nil, err
	}
	return identifier, nil
}

// DeactivateIdentifier soft-deletes an identifier, clearing its primary flag.
func (s *Service) DeactivateIdentifier(ctx context.Context, id domain.IdentifierID) (*models.Identifier, error) {
	identifier, err := s.loadIdentifier(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := identifier.Deactivate(requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if err := s.saveIdentifier(ctx, identifier); err != nil {
		return nil, err
	}
	return identifier, nil
}

// SetPrimaryIdentifier promotes an identifier to primary, demoting the
// current primary in the same transaction so at most one active primary ever
// exists per identity.
func (s *Service) SetPrimaryIdentifier(ctx context.Context, id domain.IdentifierID) (*models.Identifier, error) {
	identifier, err := s.loadIdentifier(ctx, id)
	if err != nil {
		return nil, err
	}
	if !identifier.Active {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "cannot promote an inactive identifier")
	}
	if identifier.Primary {
		return identifier, nil
	}
	identity, err := s.loadIdentity(ctx, identifier.IdentityID)
	if err != nil {
		return nil, err
	}
	mapping, err := s.identifierMapping(ctx, identity.IdentityTypeID, identifier.IdentifierTypeID)
	if err != nil {
		return nil, err
	}
	if !mapping.PrimaryCandidate {
		return nil, dErrors.New(dErrors.CodeInvariantViolation,
			fmt.Sprintf("identifier type %q is not a primary candidate for this identity type", mapping.IdentifierType.Name))
	}

	now := requestcontext.Now(ctx)
	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.demoteCurrentPrimary(ctx, identifier.IdentityID, now); err != nil {
			return err
		}
		identifier.Primary = true
		identifier.UpdatedAt = now
		return s.saveIdentifier(ctx, identifier)
	})
	if err != nil {
		return nil, err
	}
	return identifier, nil
}

// GetPrimaryIdentifier returns the identity's active primary identifier.
func (s *Service) GetPrimaryIdentifier(ctx context.Context, identityID domain.IdentityID) (*models.Identifier, error) {
	if _, err := s.loadIdentity(ctx, identityID); err != nil {
		return nil, err
	}
	identifier, err := s.identifiers.FindPrimary(ctx, identityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "identity has no primary identifier")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load primary identifier")
	}
	return identifier, nil
}

// ListIdentifiers lists all identifiers owned by the identity.
func (s *Service) ListIdentifiers(ctx context.Context, identityID domain.IdentityID) ([]models.Identifier, error) {
	if _, err := s.loadIdentity(ctx, identityID); err != nil {
		return nil, err
	}
	list, err := s.identifiers.ListByIdentity(ctx, identityID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list identifiers")
	}
	return list, nil
}

// SearchByIdentifier finds identities whose active identifiers of searchable
// types match the value exactly. A non-empty typeName restricts the search to
// that single identifier type.
func (s *Service) SearchByIdentifier(ctx context.Context, value, typeName string, limit int) ([]models.Identity, error) {
	return s.search(ctx, value, typeName, limit, s.identifiers.Search)
}

// SuggestByIdentifier finds identities whose active identifiers of
// searchable types start with the given prefix.
func (s *Service) SuggestByIdentifier(ctx context.Context, prefix, typeName string, limit int) ([]models.Identity, error) {
	return s.search(ctx, prefix, typeName, limit, s.identifiers.SuggestByPrefix)
}

func (s *Service) search(ctx context.Context, value, typeName string, limit int, fn func(ctx context.Context, value string, typeIDs []domain.IdentifierTypeID, limit int) ([]models.Identifier, error)) ([]models.Identity, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "search value cannot be empty")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	typeIDs, err := s.searchableTypeIDs(ctx, typeName)
	if err != nil {
		return nil, err
	}
	if len(typeIDs) == 0 {
		return nil, nil
	}

	matches, err := fn(ctx, value, typeIDs, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "identifier search failed")
	}

	seen := make(map[domain.IdentityID]struct{}, len(matches))
	var out []models.Identity
	for i := range matches {
		if _, dup := seen[matches[i].IdentityID]; dup {
			continue
		}
		seen[matches[i].IdentityID] = struct{}{}
		identity, err := s.identities.FindByID(ctx, matches[i].IdentityID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				continue
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load identity")
		}
		out = append(out, *identity)
	}
	return out, nil
}

func (s *Service) searchableTypeIDs(ctx context.Context, typeName string) ([]domain.IdentifierTypeID, error) {
	types, err := s.schemas.ListIdentifierTypes(ctx)
	if err != nil {
		return nil, err
	}
	typeName = strings.TrimSpace(typeName)
	var out []domain.IdentifierTypeID
	for i := range types {
		if !types[i].Active || !types[i].Searchable {
			continue
		}
		if typeName != "" && !strings.EqualFold(types[i].Name, typeName) {
			continue
		}
		out = append(out, types[i].ID)
	}
	if typeName != "" && len(out) == 0 {
		return nil, dErrors.New(dErrors.CodeNotFound,
			fmt.Sprintf("no searchable identifier type named %q", typeName))
	}
	return out, nil
}

// ---------------------------------------------------------------------------

func (s *Service) identifierMapping(ctx context.Context, identityTypeID domain.IdentityTypeID, identifierTypeID domain.IdentifierTypeID) (*schema.IdentifierMapping, error) {
	resolved, err := s.schemas.ResolveSchema(ctx, identityTypeID)
	if err != nil {
		return nil, err
	}
	for i := range resolved.IdentifierMappings {
		m := &resolved.IdentifierMappings[i]
		if m.IdentifierType != nil && m.IdentifierType.ID == identifierTypeID {
			return m, nil
		}
	}
	return nil, dErrors.New(dErrors.CodeValidation, "identifier type is not mapped into this identity type's schema")
}

// checkIdentifierValue runs the format gate and, for unique identifier
// types, the application-level uniqueness gate. The partial unique index is
// the durable backstop behind the latter.
func (s *Service) checkIdentifierValue(ctx context.Context, mapping *schema.IdentifierMapping, value string, exclude domain.IdentifierID) error {
	if pattern := mapping.EffectiveValidationRegex(); strings.TrimSpace(pattern) != "" {
		re, err := regexp.Compile(`\A(?:` + pattern + `)\z`)
		if err != nil {
			s.logger.WarnContext(ctx, "invalid identifier regex pattern",
				"identifier_type", mapping.IdentifierType.Name, "pattern", pattern, "error", err)
		} else if !re.MatchString(value) {
			return dErrors.NewValidation("identifier value failed validation", []dErrors.FieldError{{
				Field:   mapping.IdentifierType.Name,
				Message: fmt.Sprintf("%s format is invalid", mapping.IdentifierType.DisplayName),
			}})
		}
	}

	if mapping.IdentifierType.Unique {
		taken, err := s.identifiers.ExistsActiveValue(ctx, mapping.IdentifierType.ID, value, exclude)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "uniqueness check failed")
		}
		if taken {
			return s.uniqueConflict(mapping)
		}
	}
	return nil
}

func (s *Service) uniqueConflict(mapping *schema.IdentifierMapping) error {
	return dErrors.New(dErrors.CodeConflict,
		fmt.Sprintf("an active identifier of type %q already uses this value", mapping.IdentifierType.Name))
}

func (s *Service) demoteCurrentPrimary(ctx context.Context, identityID domain.IdentityID, now time.Time) error {
	current, err := s.identifiers.FindPrimary(ctx, identityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load primary identifier")
	}
	current.Primary = false
	current.UpdatedAt = now
	return s.saveIdentifier(ctx, current)
}

func (s *Service) loadIdentifier(ctx context.Context, id domain.IdentifierID) (*models.Identifier, error) {
	identifier, err := s.identifiers.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "identifier not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load identifier")
	}
	return identifier, nil
}

// saveIdentifier persists without re-flagging uniqueness; the value is
// unchanged on these paths.
func (s *Service) saveIdentifier(ctx context.Context, i *models.Identifier) error {
	if err := s.identifiers.Save(ctx, i, false); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save identifier")
	}
	return nil
}
