package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"identityshelf/internal/platform/metrics"
	"identityshelf/internal/schema/models"
	"identityshelf/pkg/domain"
	dErrors "identityshelf/pkg/domain-errors"
	"identityshelf/pkg/platform/sentinel"
	"identityshelf/pkg/requestcontext"
)

// TypeStore persists identity, attribute, and identifier type definitions.
// Create calls return sentinel.ErrConflict when the natural key (name) is
// already taken.
type TypeStore interface {
	CreateIdentityType(ctx context.Context, t *models.IdentityType) error
	FindIdentityTypeByID(ctx context.Context, id domain.IdentityTypeID) (*models.IdentityType, error)
	FindIdentityTypeByName(ctx context.Context, name string) (*models.IdentityType, error)
	ListIdentityTypes(ctx context.Context) ([]models.IdentityType, error)
	SaveIdentityType(ctx context.Context, t *models.IdentityType) error

	CreateAttributeType(ctx context.Context, t *models.AttributeType) error
	FindAttributeTypeByID(ctx context.Context, id domain.AttributeTypeID) (*models.AttributeType, error)
	FindAttributeTypeByName(ctx context.Context, name string) (*models.AttributeType, error)
	ListAttributeTypes(ctx context.Context) ([]models.AttributeType, error)
	SaveAttributeType(ctx context.Context, t *models.AttributeType) error

	CreateIdentifierType(ctx context.Context, t *models.IdentifierType) error
	FindIdentifierTypeByID(ctx context.Context, id domain.IdentifierTypeID) (*models.IdentifierType, error)
	FindIdentifierTypeByName(ctx context.Context, name string) (*models.IdentifierType, error)
	ListIdentifierTypes(ctx context.Context) ([]models.IdentifierType, error)
	SaveIdentifierType(ctx context.Context, t *models.IdentifierType) error
}

// MappingStore persists the identity-type/base-type mappings. Create calls
// return sentinel.ErrConflict when an active mapping for the pair exists.
// List calls return active mappings ordered by sort order with base types
// attached.
type MappingStore interface {
	CreateAttributeMapping(ctx context.Context, m *models.AttributeMapping) error
	FindAttributeMapping(ctx context.Context, id domain.AttributeMappingID) (*models.AttributeMapping, error)
	ListActiveAttributeMappings(ctx context.Context, identityTypeID domain.IdentityTypeID) ([]models.AttributeMapping, error)
	SaveAttributeMapping(ctx context.Context, m *models.AttributeMapping) error
	DeleteAttributeMapping(ctx context.Context, id domain.AttributeMappingID) error

	CreateIdentifierMapping(ctx context.Context, m *models.IdentifierMapping) error
	FindIdentifierMapping(ctx context.Context, id domain.IdentifierMappingID) (*models.IdentifierMapping, error)
	FindActiveIdentifierMapping(ctx context.Context, identityTypeID domain.IdentityTypeID, identifierTypeID domain.IdentifierTypeID) (*models.IdentifierMapping, error)
	ListActiveIdentifierMappings(ctx context.Context, identityTypeID domain.IdentityTypeID) ([]models.IdentifierMapping, error)
	SaveIdentifierMapping(ctx context.Context, m *models.IdentifierMapping) error
	DeleteIdentifierMapping(ctx context.Context, id domain.IdentifierMappingID) error
}

// SchemaCache caches resolved schema snapshots. The registry is read-mostly;
// admin writes invalidate so stale reads last at most one cache TTL across
// requests, while a single validation pass always uses one snapshot.
type SchemaCache interface {
	Get(ctx context.Context, id domain.IdentityTypeID) (*models.ResolvedSchema, bool)
	Set(ctx context.Context, schema *models.ResolvedSchema)
	Invalidate(ctx context.Context, id domain.IdentityTypeID)
}

type nopCache struct{}

func (nopCache) Get(context.Context, domain.IdentityTypeID) (*models.ResolvedSchema, bool) {
	return nil, false
}
func (nopCache) Set(context.Context, *models.ResolvedSchema)        {}
func (nopCache) Invalidate(context.Context, domain.IdentityTypeID) {}

// Service is the schema registry: type definitions, mappings, effective-rule
// resolution, and schema validation.
type Service struct {
	types     TypeStore
	mappings  MappingStore
	cache     SchemaCache
	validator *Validator
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

// Option configures optional Service collaborators.
type Option func(s *Service)

// WithCache installs a schema resolution cache.
func WithCache(cache SchemaCache) Option {
	return func(s *Service) {
		if cache != nil {
			s.cache = cache
		}
	}
}

// WithMetrics installs prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs the schema Service.
func New(types TypeStore, mappings MappingStore, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		types:     types,
		mappings:  mappings,
		cache:     nopCache{},
		validator: NewValidator(logger),
		logger:    logger,
		tracer:    otel.Tracer("identityshelf/schema"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ---------------------------------------------------------------------------
// Type administration
// ---------------------------------------------------------------------------

// CreateIdentityType registers a new identity type.
func (s *Service) CreateIdentityType(ctx context.Context, name, displayName, description string) (*models.IdentityType, error) {
	t, err := models.NewIdentityType(domain.NewIdentityTypeID(), name, displayName, description, requestcontext.Now(ctx))
	if err != nil {
		return nil, invariantToValidation(err)
	}
	if err := s.types.CreateIdentityType(ctx, t); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "identity type name must be unique")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create identity type")
	}
	s.logger.InfoContext(ctx, "identity type created", "identity_type_id", t.ID.String(), "name", t.Name)
	return t, nil
}

// GetIdentityType loads an identity type by ID.
func (s *Service) GetIdentityType(ctx context.Context, id domain.IdentityTypeID) (*models.IdentityType, error) {
	t, err := s.types.FindIdentityTypeByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "identity type not found", "failed to load identity type")
	}
	return t, nil
}

// GetIdentityTypeByName loads an identity type by its natural key.
func (s *Service) GetIdentityTypeByName(ctx context.Context, name string) (*models.IdentityType, error) {
	t, err := s.types.FindIdentityTypeByName(ctx, name)
	if err != nil {
		return nil, notFoundOr(err, "identity type not found", "failed to load identity type")
	}
	return t, nil
}

// ListIdentityTypes lists all identity types, active and inactive.
func (s *Service) ListIdentityTypes(ctx context.Context) ([]models.IdentityType, error) {
	list, err := s.types.ListIdentityTypes(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list identity types")
	}
	return list, nil
}

// DeactivateIdentityType soft-deletes an identity type and invalidates its
// cached schema.
func (s *Service) DeactivateIdentityType(ctx context.Context, id domain.IdentityTypeID) (*models.IdentityType, error) {
	t, err := s.types.FindIdentityTypeByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "identity type not found", "failed to load identity type")
	}
	if err := t.Deactivate(requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if err := s.types.SaveIdentityType(ctx, t); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save identity type")
	}
	s.cache.Invalidate(ctx, id)
	return t, nil
}

// CreateAttributeTypeParams carries the fields for a new attribute type.
type CreateAttributeTypeParams struct {
	Name            string
	DisplayName     string
	Description     string
	DataType        models.DataType
	ValidationRegex string
	DefaultValue    string
}

// CreateAttributeType registers a new reusable attribute type.
func (s *Service) CreateAttributeType(ctx context.Context, p CreateAttributeTypeParams) (*models.AttributeType, error) {
	t, err := models.NewAttributeType(domain.NewAttributeTypeID(), p.Name, p.DisplayName, p.DataType, p.ValidationRegex, p.DefaultValue, requestcontext.Now(ctx))
	if err != nil {
		return nil, invariantToValidation(err)
	}
	t.Description = p.Description
	if err := s.types.CreateAttributeType(ctx, t); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "attribute type name must be unique")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create attribute type")
	}
	return t, nil
}

// GetAttributeType loads an attribute type by ID.
func (s *Service) GetAttributeType(ctx context.Context, id domain.AttributeTypeID) (*models.AttributeType, error) {
	t, err := s.types.FindAttributeTypeByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "attribute type not found", "failed to load attribute type")
	}
	return t, nil
}

// ListAttributeTypes lists all attribute types.
func (s *Service) ListAttributeTypes(ctx context.Context) ([]models.AttributeType, error) {
	list, err := s.types.ListAttributeTypes(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list attribute types")
	}
	return list, nil
}

// DeactivateAttributeType soft-deletes an attribute type.
func (s *Service) DeactivateAttributeType(ctx context.Context, id domain.AttributeTypeID) (*models.AttributeType, error) {
	t, err := s.types.FindAttributeTypeByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "attribute type not found", "failed to load attribute type")
	}
	if err := t.Deactivate(requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if err := s.types.SaveAttributeType(ctx, t); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save attribute type")
	}
	return t, nil
}

// CreateIdentifierTypeParams carries the fields for a new identifier type.
type CreateIdentifierTypeParams struct {
	Name            string
	DisplayName     string
	Description     string
	DataType        models.DataType
	ValidationRegex string
	Unique          bool
	Searchable      bool
}

// CreateIdentifierType registers a new reusable identifier type.
func (s *Service) CreateIdentifierType(ctx context.Context, p CreateIdentifierTypeParams) (*models.IdentifierType, error) {
	t, err := models.NewIdentifierType(domain.NewIdentifierTypeID(), p.Name, p.DisplayName, p.DataType, p.ValidationRegex, p.Unique, p.Searchable, requestcontext.Now(ctx))
	if err != nil {
		return nil, invariantToValidation(err)
	}
	t.Description = p.Description
	if err := s.types.CreateIdentifierType(ctx, t); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "identifier type name must be unique")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create identifier type")
	}
	return t, nil
}

// GetIdentifierType loads an identifier type by ID.
func (s *Service) GetIdentifierType(ctx context.Context, id domain.IdentifierTypeID) (*models.IdentifierType, error) {
	t, err := s.types.FindIdentifierTypeByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "identifier type not found", "failed to load identifier type")
	}
	return t, nil
}

// GetIdentifierTypeByName loads an identifier type by its natural key.
func (s *Service) GetIdentifierTypeByName(ctx context.Context, name string) (*models.IdentifierType, error) {
	t, err := s.types.FindIdentifierTypeByName(ctx, name)
	if err != nil {
		return nil, notFoundOr(err, "identifier type not found", "failed to load identifier type")
	}
	return t, nil
}

// ListIdentifierTypes lists all identifier types.
func (s *Service) ListIdentifierTypes(ctx context.Context) ([]models.IdentifierType, error) {
	list, err := s.types.ListIdentifierTypes(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list identifier types")
	}
	return list, nil
}

// DeactivateIdentifierType soft-deletes an identifier type.
func (s *Service) DeactivateIdentifierType(ctx context.Context, id domain.IdentifierTypeID) (*models.IdentifierType, error) {
	t, err := s.types.FindIdentifierTypeByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "identifier type not found", "failed to load identifier type")
	}
	if err := t.Deactivate(requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if err := s.types.SaveIdentifierType(ctx, t); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save identifier type")
	}
	return t, nil
}

// ---------------------------------------------------------------------------
// Mapping administration
// ---------------------------------------------------------------------------

// MappingParams carries the mapping-specific fields shared by create and
// update operations.
type MappingParams struct {
	SortOrder               int
	Required                bool
	PrimaryCandidate        bool // identifier mappings only
	OverrideValidationRegex string
	OverrideDefaultValue    string
}

// CreateAttributeMapping binds an attribute type into an identity type's
// schema. Duplicate active mappings for the pair are a conflict.
func (s *Service) CreateAttributeMapping(ctx context.Context, identityTypeID domain.IdentityTypeID, attributeTypeID domain.AttributeTypeID, p MappingParams) (*models.AttributeMapping, error) {
	if _, err := s.GetIdentityType(ctx, identityTypeID); err != nil {
		return nil, err
	}
	at, err := s.GetAttributeType(ctx, attributeTypeID)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	m := &models.AttributeMapping{
		ID:                      domain.NewAttributeMappingID(),
		IdentityTypeID:          identityTypeID,
		AttributeType:           at,
		SortOrder:               p.SortOrder,
		Required:                p.Required,
		OverrideValidationRegex: p.OverrideValidationRegex,
		OverrideDefaultValue:    p.OverrideDefaultValue,
		Active:                  true,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	if err := s.mappings.CreateAttributeMapping(ctx, m); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "an active mapping already exists for this identity type and attribute type")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create mapping")
	}
	s.cache.Invalidate(ctx, identityTypeID)
	return m, nil
}

// UpdateAttributeMapping edits the mapping-specific fields of an existing
// attribute mapping.
func (s *Service) UpdateAttributeMapping(ctx context.Context, id domain.AttributeMappingID, p MappingParams) (*models.AttributeMapping, error) {
	m, err := s.mappings.FindAttributeMapping(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "mapping not found", "failed to load mapping")
	}
	m.SortOrder = p.SortOrder
	m.Required = p.Required
	m.OverrideValidationRegex = p.OverrideValidationRegex
	m.OverrideDefaultValue = p.OverrideDefaultValue
	m.UpdatedAt = requestcontext.Now(ctx)
	if err := s.mappings.SaveAttributeMapping(ctx, m); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save mapping")
	}
	s.cache.Invalidate(ctx, m.IdentityTypeID)
	return m, nil
}

// DeactivateAttributeMapping soft-deletes an attribute mapping.
func (s *Service) DeactivateAttributeMapping(ctx context.Context, id domain.AttributeMappingID) error {
	m, err := s.mappings.FindAttributeMapping(ctx, id)
	if err != nil {
		return notFoundOr(err, "mapping not found", "failed to load mapping")
	}
	if !m.Active {
		return dErrors.New(dErrors.CodeInvariantViolation, "mapping is already inactive")
	}
	m.Active = false
	m.UpdatedAt = requestcontext.Now(ctx)
	if err := s.mappings.SaveAttributeMapping(ctx, m); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save mapping")
	}
	s.cache.Invalidate(ctx, m.IdentityTypeID)
	return nil
}

// DeleteAttributeMappingPermanently hard-deletes a mapping. Explicit
// maintenance escape hatch; normal removal is deactivation.
func (s *Service) DeleteAttributeMappingPermanently(ctx context.Context, id domain.AttributeMappingID) error {
	m, err := s.mappings.FindAttributeMapping(ctx, id)
	if err != nil {
		return notFoundOr(err, "mapping not found", "failed to load mapping")
	}
	if err := s.mappings.DeleteAttributeMapping(ctx, id); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete mapping")
	}
	s.cache.Invalidate(ctx, m.IdentityTypeID)
	return nil
}

// CreateIdentifierMapping binds an identifier type into an identity type's
// schema.
func (s *Service) CreateIdentifierMapping(ctx context.Context, identityTypeID domain.IdentityTypeID, identifierTypeID domain.IdentifierTypeID, p MappingParams) (*models.IdentifierMapping, error) {
	if _, err := s.GetIdentityType(ctx, identityTypeID); err != nil {
		return nil, err
	}
	it, err := s.GetIdentifierType(ctx, identifierTypeID)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	m := &models.IdentifierMapping{
		ID:                      domain.NewIdentifierMappingID(),
		IdentityTypeID:          identityTypeID,
		IdentifierType:          it,
		SortOrder:               p.SortOrder,
		Required:                p.Required,
		PrimaryCandidate:        p.PrimaryCandidate,
		OverrideValidationRegex: p.OverrideValidationRegex,
		OverrideDefaultValue:    p.OverrideDefaultValue,
		Active:                  true,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	if err := s.mappings.CreateIdentifierMapping(ctx, m); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "an active mapping already exists for this identity type and identifier type")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create mapping")
	}
	s.cache.Invalidate(ctx, identityTypeID)
	return m, nil
}

// UpdateIdentifierMapping edits the mapping-specific fields of an existing
// identifier mapping.
func (s *Service) UpdateIdentifierMapping(ctx context.Context, id domain.IdentifierMappingID, p MappingParams) (*models.IdentifierMapping, error) {
	m, err := s.mappings.FindIdentifierMapping(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "mapping not found", "failed to load mapping")
	}
	m.SortOrder = p.SortOrder
	m.Required = p.Required
	m.PrimaryCandidate = p.PrimaryCandidate
	m.OverrideValidationRegex = p.OverrideValidationRegex
	m.OverrideDefaultValue = p.OverrideDefaultValue
	m.UpdatedAt = requestcontext.Now(ctx)
	if err := s.mappings.SaveIdentifierMapping(ctx, m); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save mapping")
	}
	s.cache.Invalidate(ctx, m.IdentityTypeID)
	return m, nil
}

// DeactivateIdentifierMapping soft-deletes an identifier mapping.
func (s *Service) DeactivateIdentifierMapping(ctx context.Context, id domain.IdentifierMappingID) error {
	m, err := s.mappings.FindIdentifierMapping(ctx, id)
	if err != nil {
		return notFoundOr(err, "mapping not found", "failed to load mapping")
	}
	if !m.Active {
		return dErrors.New(dErrors.CodeInvariantViolation, "mapping is already inactive")
	}
	m.Active = false
	m.UpdatedAt = requestcontext.Now(ctx)
	if err := s.mappings.SaveIdentifierMapping(ctx, m); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save mapping")
	}
	s.cache.Invalidate(ctx, m.IdentityTypeID)
	return nil
}

// DeleteIdentifierMappingPermanently hard-deletes an identifier mapping.
// Explicit maintenance escape hatch; normal removal is deactivation.
func (s *Service) DeleteIdentifierMappingPermanently(ctx context.Context, id domain.IdentifierMappingID) error {
	m, err := s.mappings.FindIdentifierMapping(ctx, id)
	if err != nil {
		return notFoundOr(err, "mapping not found", "failed to load mapping")
	}
	if err := s.mappings.DeleteIdentifierMapping(ctx, id); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete mapping")
	}
	s.cache.Invalidate(ctx, m.IdentityTypeID)
	return nil
}

// ---------------------------------------------------------------------------
// Effective rules, schema resolution, validation
// ---------------------------------------------------------------------------

// AttributeMappingEffectiveRules resolves the effective regex and default for
// one attribute mapping.
func (s *Service) AttributeMappingEffectiveRules(ctx context.Context, id domain.AttributeMappingID) (models.EffectiveRules, error) {
	m, err := s.mappings.FindAttributeMapping(ctx, id)
	if err != nil {
		return models.EffectiveRules{}, notFoundOr(err, "mapping not found", "failed to load mapping")
	}
	return m.EffectiveRules(), nil
}

// IdentifierMappingEffectiveRules resolves the effective regex and default
// for one identifier mapping.
func (s *Service) IdentifierMappingEffectiveRules(ctx context.Context, id domain.IdentifierMappingID) (models.EffectiveRules, error) {
	m, err := s.mappings.FindIdentifierMapping(ctx, id)
	if err != nil {
		return models.EffectiveRules{}, notFoundOr(err, "mapping not found", "failed to load mapping")
	}
	return m.EffectiveRules(), nil
}

// ResolveSchema loads one snapshot of the identity type's schema: the type
// plus its active mappings in sort order. The snapshot may come from the
// cache; callers use one snapshot for a whole validate-then-write pass.
func (s *Service) ResolveSchema(ctx context.Context, identityTypeID domain.IdentityTypeID) (*models.ResolvedSchema, error) {
	ctx, span := s.tracer.Start(ctx, "schema.ResolveSchema")
	defer span.End()

	if cached, ok := s.cache.Get(ctx, identityTypeID); ok {
		if s.metrics != nil {
			s.metrics.SchemaCacheHits.Inc()
		}
		return cached, nil
	}
	if s.metrics != nil {
		s.metrics.SchemaCacheMisses.Inc()
	}

	t, err := s.types.FindIdentityTypeByID(ctx, identityTypeID)
	if err != nil {
		return nil, notFoundOr(err, "identity type not found", "failed to load identity type")
	}
	if !t.Active {
		return nil, dErrors.New(dErrors.CodeNotFound, "identity type is inactive")
	}

	attrs, err := s.mappings.ListActiveAttributeMappings(ctx, identityTypeID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load attribute mappings")
	}
	idents, err := s.mappings.ListActiveIdentifierMappings(ctx, identityTypeID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load identifier mappings")
	}

	schema := &models.ResolvedSchema{
		IdentityType:       *t,
		AttributeMappings:  attrs,
		IdentifierMappings: idents,
	}
	s.cache.Set(ctx, schema)
	return schema, nil
}

// ResolveSchemaByName resolves a schema snapshot by identity type name.
func (s *Service) ResolveSchemaByName(ctx context.Context, name string) (*models.ResolvedSchema, error) {
	t, err := s.GetIdentityTypeByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.ResolveSchema(ctx, t.ID)
}

// Validate evaluates fields against the identity type's schema and returns
// all accumulated field errors. An empty result means the value set is valid.
func (s *Service) Validate(ctx context.Context, identityTypeID domain.IdentityTypeID, fields map[string]*string) ([]dErrors.FieldError, error) {
	schema, err := s.ResolveSchema(ctx, identityTypeID)
	if err != nil {
		return nil, err
	}
	return s.validator.Validate(fields, schema.AttributeMappings), nil
}

// ---------------------------------------------------------------------------

func invariantToValidation(err error) error {
	if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		return dErrors.New(dErrors.CodeValidation, err.Error())
	}
	return err
}

func notFoundOr(err error, notFoundMsg, internalMsg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, notFoundMsg)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, internalMsg)
}
