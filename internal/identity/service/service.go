package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"identityshelf/internal/identity/models"
	"identityshelf/internal/platform/metrics"
	schema "identityshelf/internal/schema/models"
	"identityshelf/pkg/domain"
	dErrors "identityshelf/pkg/domain-errors"
	"identityshelf/pkg/platform/sentinel"
	"identityshelf/pkg/platform/tx"
	"identityshelf/pkg/requestcontext"
)

// SchemaRegistry is the slice of the schema service the identity feature
// depends on.
type SchemaRegistry interface {
	ResolveSchema(ctx context.Context, identityTypeID domain.IdentityTypeID) (*schema.ResolvedSchema, error)
	ResolveSchemaByName(ctx context.Context, name string) (*schema.ResolvedSchema, error)
	ListIdentifierTypes(ctx context.Context) ([]schema.IdentifierType, error)
}

// IdentityStore persists identity records.
type IdentityStore interface {
	Create(ctx context.Context, i *models.Identity) error
	FindByID(ctx context.Context, id domain.IdentityID) (*models.Identity, error)
	List(ctx context.Context, f IdentityFilter) ([]models.Identity, error)
	Save(ctx context.Context, i *models.Identity) error
	Delete(ctx context.Context, id domain.IdentityID) error
}

// IdentityFilter narrows identity listings.
type IdentityFilter struct {
	IdentityTypeID domain.IdentityTypeID
	Status         models.Status
	Limit          int
	Offset         int
}

// ValueStore persists typed attribute values.
type ValueStore interface {
	Upsert(ctx context.Context, rec *models.AttributeValueRecord) error
	Find(ctx context.Context, identityID domain.IdentityID, attributeTypeID domain.AttributeTypeID) (*models.AttributeValueRecord, error)
	ListByIdentity(ctx context.Context, identityID domain.IdentityID) ([]models.AttributeValueRecord, error)
	DeleteByIdentity(ctx context.Context, identityID domain.IdentityID) error
}

// IdentifierStore persists identity identifiers. enforceUnique marks the row
// for the store's durable per-type uniqueness backstop.
type IdentifierStore interface {
	Create(ctx context.Context, i *models.Identifier, enforceUnique bool) error
	FindByID(ctx context.Context, id domain.IdentifierID) (*models.Identifier, error)
	Save(ctx context.Context, i *models.Identifier, enforceUnique bool) error
	ListByIdentity(ctx context.Context, identityID domain.IdentityID) ([]models.Identifier, error)
	FindPrimary(ctx context.Context, identityID domain.IdentityID) (*models.Identifier, error)
	ExistsActiveValue(ctx context.Context, typeID domain.IdentifierTypeID, value string, exclude domain.IdentifierID) (bool, error)
	Search(ctx context.Context, value string, typeIDs []domain.IdentifierTypeID, limit int) ([]models.Identifier, error)
	SuggestByPrefix(ctx context.Context, prefix string, typeIDs []domain.IdentifierTypeID, limit int) ([]models.Identifier, error)
	DeleteByIdentity(ctx context.Context, identityID domain.IdentityID) error
}

// Service owns identity records, their typed attribute values, and their
// identifiers.
type Service struct {
	identities  IdentityStore
	values      ValueStore
	identifiers IdentifierStore
	schemas     SchemaRegistry
	runner      tx.Runner
	validator   SchemaValidator
	policy      models.CoercionPolicy
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
}

// SchemaValidator validates field maps against a resolved schema. The schema
// feature's validator satisfies this through a thin adapter.
type SchemaValidator interface {
	Validate(fields map[string]*string, mappings []schema.AttributeMapping) []dErrors.FieldError
}

// Option configures optional Service collaborators.
type Option func(s *Service)

// WithMetrics installs prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithCoercionPolicy overrides the default lenient coercion policy.
func WithCoercionPolicy(p models.CoercionPolicy) Option {
	return func(s *Service) {
		if p != "" {
			s.policy = p
		}
	}
}

// New constructs the identity Service.
func New(identities IdentityStore, values ValueStore, identifiers IdentifierStore, schemas SchemaRegistry, validator SchemaValidator, runner tx.Runner, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		identities:  identities,
		values:      values,
		identifiers: identifiers,
		schemas:     schemas,
		runner:      runner,
		validator:   validator,
		policy:      models.CoercionLenient,
		logger:      logger,
		tracer:      otel.Tracer("identityshelf/identity"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IdentityDetail is an identity with its attribute values rendered back to
// strings and its identifiers attached.
type IdentityDetail struct {
	Identity    models.Identity     `json:"identity"`
	Attributes  map[string]string   `json:"attributes"`
	Identifiers []models.Identifier `json:"identifiers"`
}

// CreateIdentityParams describes a new identity. The type is selected by ID,
// or by name when IdentityTypeName is set. Status optionally moves the
// identity past PENDING at birth, subject to the transition machine.
type CreateIdentityParams struct {
	IdentityTypeID   domain.IdentityTypeID
	IdentityTypeName string
	DisplayName      string
	Status           models.Status
	Attributes       map[string]*string
}

// CreateIdentity creates an identity of the given type. The attribute set is
// merged with effective defaults, validated as one batch, then coerced and
// persisted atomically with the identity record.
func (s *Service) CreateIdentity(ctx context.Context, p CreateIdentityParams) (*IdentityDetail, error) {
	ctx, span := s.tracer.Start(ctx, "identity.CreateIdentity")
	defer span.End()

	var (
		resolved *schema.ResolvedSchema
		err      error
	)
	if p.IdentityTypeName != "" {
		resolved, err = s.schemas.ResolveSchemaByName(ctx, p.IdentityTypeName)
	} else {
		resolved, err = s.schemas.ResolveSchema(ctx, p.IdentityTypeID)
	}
	if err != nil {
		return nil, err
	}

	merged := applyDefaults(p.Attributes, resolved.AttributeMappings)
	if fieldErrs := s.validator.Validate(merged, resolved.AttributeMappings); len(fieldErrs) > 0 {
		if s.metrics != nil {
			s.metrics.ValidationFailures.Inc()
		}
		return nil, dErrors.NewValidation("identity attributes failed validation", fieldErrs)
	}

	now := requestcontext.Now(ctx)
	identity := models.NewIdentity(domain.NewIdentityID(), resolved.IdentityType.ID, p.DisplayName, now)
	if p.Status != "" && p.Status != models.StatusPending {
		if err := identity.TransitionTo(p.Status, now); err != nil {
			return nil, err
		}
	}

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.identities.Create(ctx, identity); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create identity")
		}
		return s.writeValues(ctx, identity.ID, merged, resolved.AttributeMappings, now)
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IdentitiesCreated.Inc()
	}
	s.logger.InfoContext(ctx, "identity created",
		"identity_id", identity.ID.String(),
		"identity_type", resolved.IdentityType.Name)
	return s.detail(ctx, identity)
}

// writeValues coerces and upserts the merged attribute set. Blank values are
// skipped entirely; unparseable values follow the coercion policy.
func (s *Service) writeValues(ctx context.Context, identityID domain.IdentityID, fields map[string]*string, mappings []schema.AttributeMapping, now time.Time) error {
	for i := range mappings {
		m := &mappings[i]
		if m.AttributeType == nil {
			continue
		}
		raw := fields[m.AttributeType.Name]
		if raw == nil || strings.TrimSpace(*raw) == "" {
			continue
		}
		value, err := models.Coerce(m.AttributeType.DataType, *raw, s.policy)
		if err != nil {
			return err
		}
		rec := &models.AttributeValueRecord{
			ID:              domain.NewValueID(),
			IdentityID:      identityID,
			AttributeTypeID: m.AttributeType.ID,
			AttributeName:   m.AttributeType.Name,
			DataType:        m.AttributeType.DataType,
			Value:           value,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.values.Upsert(ctx, rec); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store attribute value")
		}
	}
	return nil
}

// applyDefaults overlays effective default values onto fields for mapped
// attributes that were not provided or were provided blank.
func applyDefaults(fields map[string]*string, mappings []schema.AttributeMapping) map[string]*string {
	merged := make(map[string]*string, len(fields))
	for k, v := range fields {
		merged[k] = v
	}
	for i := range mappings {
		m := &mappings[i]
		if m.AttributeType == nil {
			continue
		}
		name := m.AttributeType.Name
		if v, ok := merged[name]; ok && v != nil && strings.TrimSpace(*v) != "" {
			continue
		}
		if def := m.EffectiveDefaultValue(); strings.TrimSpace(def) != "" {
			def := def
			merged[name] = &def
		}
	}
	return merged
}

// GetIdentity loads an identity with its rendered attributes and identifiers.
func (s *Service) GetIdentity(ctx context.Context, id domain.IdentityID) (*IdentityDetail, error) {
	identity, err := s.loadIdentity(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, identity)
}

// ListIdentities lists identity records matching the filter.
func (s *Service) ListIdentities(ctx context.Context, f IdentityFilter) ([]models.Identity, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	list, err := s.identities.List(ctx, f)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list identities")
	}
	return list, nil
}

// UpdateAttributes overlays the given fields onto the identity's current
// attribute set, re-validates the merged whole, and persists the changes
// atomically.
func (s *Service) UpdateAttributes(ctx context.Context, id domain.IdentityID, fields map[string]*string) (*IdentityDetail, error) {
	ctx, span := s.tracer.Start(ctx, "identity.UpdateAttributes")
	defer span.End()

	identity, err := s.modifiableIdentity(ctx, id)
	if err != nil {
		return nil, err
	}
	resolved, err := s.schemas.ResolveSchema(ctx, identity.IdentityTypeID)
	if err != nil {
		return nil, err
	}

	current, err := s.currentFields(ctx, id)
	if err != nil {
		return nil, err
	}
	merged := make(map[string]*string, len(current)+len(fields))
	for k, v := range current {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}

	if fieldErrs := s.validator.Validate(merged, resolved.AttributeMappings); len(fieldErrs) > 0 {
		if s.metrics != nil {
			s.metrics.ValidationFailures.Inc()
		}
		return nil, dErrors.NewValidation("identity attributes failed validation", fieldErrs)
	}

	now := requestcontext.Now(ctx)
	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.writeValues(ctx, id, fields, resolved.AttributeMappings, now); err != nil {
			return err
		}
		identity.UpdatedAt = now
		if err := s.identities.Save(ctx, identity); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save identity")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, identity)
}

// Rename replaces the identity's display name.
func (s *Service) Rename(ctx context.Context, id domain.IdentityID, displayName string) (*models.Identity, error) {
	identity, err := s.loadIdentity(ctx, id)
	if err != nil {
		return nil, err
	}
	identity.Rename(displayName, requestcontext.Now(ctx))
	if err := s.identities.Save(ctx, identity); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save identity")
	}
	return identity, nil
}

// ChangeStatus moves the identity through its lifecycle machine.
func (s *Service) ChangeStatus(ctx context.Context, id domain.IdentityID, next models.Status) (*models.Identity, error) {
	identity, err := s.loadIdentity(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := identity.TransitionTo(next, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if err := s.identities.Save(ctx, identity); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save identity")
	}
	s.logger.InfoContext(ctx, "identity status changed",
		"identity_id", id.String(), "status", string(next))
	return identity, nil
}

// DeleteIdentity hard-deletes an identity with its values and identifiers.
func (s *Service) DeleteIdentity(ctx context.Context, id domain.IdentityID) error {
	if _, err := s.loadIdentity(ctx, id); err != nil {
		return err
	}
	return s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.values.DeleteByIdentity(ctx, id); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete attribute values")
		}
		if err := s.identifiers.DeleteByIdentity(ctx, id); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete identifiers")
		}
		if err := s.identities.Delete(ctx, id); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete identity")
		}
		return nil
	})
}

// SetTypedValue coerces and stores one attribute value for the identity.
func (s *Service) SetTypedValue(ctx context.Context, id domain.IdentityID, attributeName string, raw string) (*models.AttributeValueRecord, error) {
	identity, err := s.modifiableIdentity(ctx, id)
	if err != nil {
		return nil, err
	}
	resolved, err := s.schemas.ResolveSchema(ctx, identity.IdentityTypeID)
	if err != nil {
		return nil, err
	}
	m := resolved.AttributeMappingByName(attributeName)
	if m == nil || m.AttributeType == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "attribute is not part of this identity type's schema")
	}

	if fieldErrs := s.validator.Validate(map[string]*string{attributeName: &raw}, []schema.AttributeMapping{*m}); len(fieldErrs) > 0 {
		if s.metrics != nil {
			s.metrics.ValidationFailures.Inc()
		}
		return nil, dErrors.NewValidation("attribute value failed validation", fieldErrs)
	}

	value, err := models.Coerce(m.AttributeType.DataType, raw, s.policy)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	rec := &models.AttributeValueRecord{
		ID:              domain.NewValueID(),
		IdentityID:      id,
		AttributeTypeID: m.AttributeType.ID,
		AttributeName:   m.AttributeType.Name,
		DataType:        m.AttributeType.DataType,
		Value:           value,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.values.Upsert(ctx, rec); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store attribute value")
	}
	return rec, nil
}

// GetTypedValue loads one stored attribute value by attribute name.
func (s *Service) GetTypedValue(ctx context.Context, id domain.IdentityID, attributeName string) (*models.AttributeValueRecord, error) {
	identity, err := s.loadIdentity(ctx, id)
	if err != nil {
		return nil, err
	}
	resolved, err := s.schemas.ResolveSchema(ctx, identity.IdentityTypeID)
	if err != nil {
		return nil, err
	}
	m := resolved.AttributeMappingByName(attributeName)
	if m == nil || m.AttributeType == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "attribute is not part of this identity type's schema")
	}
	rec, err := s.values.Find(ctx, id, m.AttributeType.ID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no value stored for this attribute")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load attribute value")
	}
	return rec, nil
}

// ---------------------------------------------------------------------------

func (s *Service) loadIdentity(ctx context.Context, id domain.IdentityID) (*models.Identity, error) {
	identity, err := s.identities.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "identity not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load identity")
	}
	return identity, nil
}

func (s *Service) modifiableIdentity(ctx context.Context, id domain.IdentityID) (*models.Identity, error) {
	identity, err := s.loadIdentity(ctx, id)
	if err != nil {
		return nil, err
	}
	if !identity.Status.CanBeModified() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation,
			"identity cannot be modified in its current status")
	}
	return identity, nil
}

func (s *Service) currentFields(ctx context.Context, id domain.IdentityID) (map[string]*string, error) {
	records, err := s.values.ListByIdentity(ctx, id)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load attribute values")
	}
	fields := make(map[string]*string, len(records))
	for i := range records {
		rendered := records[i].Value.String()
		fields[records[i].AttributeName] = &rendered
	}
	return fields, nil
}

func (s *Service) detail(ctx context.Context, identity *models.Identity) (*IdentityDetail, error) {
	records, err := s.values.ListByIdentity(ctx, identity.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load attribute values")
	}
	attrs := make(map[string]string, len(records))
	for i := range records {
		if !records[i].Value.IsNull() {
			attrs[records[i].AttributeName] = records[i].Value.String()
		}
	}
	idents, err := s.identifiers.ListByIdentity(ctx, identity.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load identifiers")
	}
	return &IdentityDetail{Identity: *identity, Attributes: attrs, Identifiers: idents}, nil
}
