package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"identityshelf/internal/platform/postgres"
	"identityshelf/internal/schema/models"
	"identityshelf/pkg/domain"
	txcontext "identityshelf/pkg/platform/tx"
)

// Postgres is the durable schema store. Uniqueness of type names and of
// active mapping pairs is enforced by unique indexes; violations surface as
// sentinel.ErrConflict through postgres.MapError.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a Postgres schema store over db.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// execer returns the context transaction when one is active, else the pool.
func (s *Postgres) execer(ctx context.Context) execer {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// ---------------------------------------------------------------------------
// Identity types
// ---------------------------------------------------------------------------

const identityTypeColumns = `id, name, display_name, description, active, created_at, updated_at`

func (s *Postgres) CreateIdentityType(ctx context.Context, t *models.IdentityType) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO identity_types (`+identityTypeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.UUID(t.ID), t.Name, t.DisplayName, t.Description, t.Active, t.CreatedAt, t.UpdatedAt)
	return postgres.MapError(err)
}

func (s *Postgres) FindIdentityTypeByID(ctx context.Context, id domain.IdentityTypeID) (*models.IdentityType, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT `+identityTypeColumns+` FROM identity_types WHERE id = $1`, uuid.UUID(id))
	return scanIdentityType(row)
}

func (s *Postgres) FindIdentityTypeByName(ctx context.Context, name string) (*models.IdentityType, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT `+identityTypeColumns+` FROM identity_types WHERE lower(name) = lower($1)`, name)
	return scanIdentityType(row)
}

func (s *Postgres) ListIdentityTypes(ctx context.Context) ([]models.IdentityType, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT `+identityTypeColumns+` FROM identity_types ORDER BY name`)
	if err != nil {
		return nil, postgres.MapError(err)
	}
	defer rows.Close()

	var out []models.IdentityType
	for rows.Next() {
		t, err := scanIdentityType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, postgres.MapError(rows.Err())
}

func (s *Postgres) SaveIdentityType(ctx context.Context, t *models.IdentityType) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE identity_types
		SET name = $2, display_name = $3, description = $4, active = $5, updated_at = $6
		WHERE id = $1`,
		uuid.UUID(t.ID), t.Name, t.DisplayName, t.Description, t.Active, t.UpdatedAt)
	if err != nil {
		return postgres.MapError(err)
	}
	return requireRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentityType(row rowScanner) (*models.IdentityType, error) {
	var (
		t  models.IdentityType
		id uuid.UUID
	)
	err := row.Scan(&id, &t.Name, &t.DisplayName, &t.Description, &t.Active, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, postgres.MapError(err)
	}
	t.ID = domain.IdentityTypeID(id)
	return &t, nil
}

// ---------------------------------------------------------------------------
// Attribute types
// ---------------------------------------------------------------------------

const attributeTypeColumns = `id, name, display_name, description, data_type, validation_regex, default_value, active, created_at, updated_at`

func (s *Postgres) CreateAttributeType(ctx context.Context, t *models.AttributeType) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO attribute_types (`+attributeTypeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.UUID(t.ID), t.Name, t.DisplayName, t.Description, string(t.DataType),
		t.ValidationRegex, t.DefaultValue, t.Active, t.CreatedAt, t.UpdatedAt)
	return postgres.MapError(err)
}

func (s *Postgres) FindAttributeTypeByID(ctx context.Context, id domain.AttributeTypeID) (*models.AttributeType, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT `+attributeTypeColumns+` FROM attribute_types WHERE id = $1`, uuid.UUID(id))
	return scanAttributeType(row)
}

func (s *Postgres) FindAttributeTypeByName(ctx context.Context, name string) (*models.AttributeType, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT `+attributeTypeColumns+` FROM attribute_types WHERE lower(name) = lower($1)`, name)
	return scanAttributeType(row)
}

func (s *Postgres) ListAttributeTypes(ctx context.Context) ([]models.AttributeType, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT `+attributeTypeColumns+` FROM attribute_types ORDER BY name`)
	if err != nil {
		return nil, postgres.MapError(err)
	}
	defer rows.Close()

	var out []models.AttributeType
	for rows.Next() {
		t, err := scanAttributeType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, postgres.MapError(rows.Err())
}

func (s *Postgres) SaveAttributeType(ctx context.Context, t *models.AttributeType) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE attribute_types
		SET name = $2, display_name = $3, description = $4, data_type = $5,
		    validation_regex = $6, default_value = $7, active = $8, updated_at = $9
		WHERE id = $1`,
		uuid.UUID(t.ID), t.Name, t.DisplayName, t.Description, string(t.DataType),
		t.ValidationRegex, t.DefaultValue, t.Active, t.UpdatedAt)
	if err != nil {
		return postgres.MapError(err)
	}
	return requireRow(res)
}

func scanAttributeType(row rowScanner) (*models.AttributeType, error) {
	var (
		t        models.AttributeType
		id       uuid.UUID
		dataType string
	)
	err := row.Scan(&id, &t.Name, &t.DisplayName, &t.Description, &dataType,
		&t.ValidationRegex, &t.DefaultValue, &t.Active, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, postgres.MapError(err)
	}
	t.ID = domain.AttributeTypeID(id)
	t.DataType = models.DataType(dataType)
	return &t, nil
}

// ---------------------------------------------------------------------------
// Identifier types
// ---------------------------------------------------------------------------

const identifierTypeColumns = `id, name, display_name, description, data_type, validation_regex, default_value, is_unique, searchable, active, created_at, updated_at`

func (s *Postgres) CreateIdentifierType(ctx context.Context, t *models.IdentifierType) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO identifier_types (`+identifierTypeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		uuid.UUID(t.ID), t.Name, t.DisplayName, t.Description, string(t.DataType),
		t.ValidationRegex, t.DefaultValue, t.Unique, t.Searchable, t.Active, t.CreatedAt, t.UpdatedAt)
	return postgres.MapError(err)
}

func (s *Postgres) FindIdentifierTypeByID(ctx context.Context, id domain.IdentifierTypeID) (*models.IdentifierType, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT `+identifierTypeColumns+` FROM identifier_types WHERE id = $1`, uuid.UUID(id))
	return scanIdentifierType(row)
}

func (s *Postgres) FindIdentifierTypeByName(ctx context.Context, name string) (*models.IdentifierType, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT `+identifierTypeColumns+` FROM identifier_types WHERE lower(name) = lower($1)`, name)
	return scanIdentifierType(row)
}

func (s *Postgres) ListIdentifierTypes(ctx context.Context) ([]models.IdentifierType, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT `+identifierTypeColumns+` FROM identifier_types ORDER BY name`)
	if err != nil {
		return nil, postgres.MapError(err)
	}
	defer rows.Close()

	var out []models.IdentifierType
	for rows.Next() {
		t, err := scanIdentifierType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, postgres.MapError(rows.Err())
}

func (s *Postgres) SaveIdentifierType(ctx context.Context, t *models.IdentifierType) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE identifier_types
		SET name = $2, display_name = $3, description = $4, data_type = $5,
		    validation_regex = $6, default_value = $7, is_unique = $8, searchable = $9,
		    active = $10, updated_at = $11
		WHERE id = $1`,
		uuid.UUID(t.ID), t.Name, t.DisplayName, t.Description, string(t.DataType),
		t.ValidationRegex, t.DefaultValue, t.Unique, t.Searchable, t.Active, t.UpdatedAt)
	if err != nil {
		return postgres.MapError(err)
	}
	return requireRow(res)
}

func scanIdentifierType(row rowScanner) (*models.IdentifierType, error) {
	var (
		t        models.IdentifierType
		id       uuid.UUID
		dataType string
	)
	err := row.Scan(&id, &t.Name, &t.DisplayName, &t.Description, &dataType,
		&t.ValidationRegex, &t.DefaultValue, &t.Unique, &t.Searchable,
		&t.Active, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, postgres.MapError(err)
	}
	t.ID = domain.IdentifierTypeID(id)
	t.DataType = models.DataType(dataType)
	return &t, nil
}

// ---------------------------------------------------------------------------
// Attribute mappings
// ---------------------------------------------------------------------------

// Mapping reads join the base type so every returned mapping carries a fully
// populated AttributeType, ready for effective-rule resolution.
const attributeMappingSelect = `
	SELECT m.id, m.identity_type_id, m.sort_order, m.required,
	       m.override_validation_regex, m.override_default_value,
	       m.active, m.created_at, m.updated_at,
	       t.id, t.name, t.display_name, t.description, t.data_type,
	       t.validation_regex, t.default_value, t.active, t.created_at, t.updated_at
	FROM attribute_mappings m
	JOIN attribute_types t ON t.id = m.attribute_type_id`

func (s *Postgres) CreateAttributeMapping(ctx context.Context, m *models.AttributeMapping) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO attribute_mappings
			(id, identity_type_id, attribute_type_id, sort_order, required,
			 override_validation_regex, override_default_value, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.UUID(m.ID), uuid.UUID(m.IdentityTypeID), uuid.UUID(m.AttributeType.ID),
		m.SortOrder, m.Required, m.OverrideValidationRegex, m.OverrideDefaultValue,
		m.Active, m.CreatedAt, m.UpdatedAt)
	return postgres.MapError(err)
}

func (s *Postgres) FindAttributeMapping(ctx context.Context, id domain.AttributeMappingID) (*models.AttributeMapping, error) {
	row := s.execer(ctx).QueryRowContext(ctx, attributeMappingSelect+` WHERE m.id = $1`, uuid.UUID(id))
	return scanAttributeMapping(row)
}

func (s *Postgres) ListActiveAttributeMappings(ctx context.Context, identityTypeID domain.IdentityTypeID) ([]models.AttributeMapping, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, attributeMappingSelect+`
		WHERE m.identity_type_id = $1 AND m.active
		ORDER BY m.sort_order, t.name`, uuid.UUID(identityTypeID))
	if err != nil {
		return nil, postgres.MapError(err)
	}
	defer rows.Close()

	var out []models.AttributeMapping
	for rows.Next() {
		m, err := scanAttributeMapping(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, postgres.MapError(rows.Err())
}

func (s *Postgres) SaveAttributeMapping(ctx context.Context, m *models.AttributeMapping) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE attribute_mappings
		SET sort_order = $2, required = $3, override_validation_regex = $4,
		    override_default_value = $5, active = $6, updated_at = $7
		WHERE id = $1`,
		uuid.UUID(m.ID), m.SortOrder, m.Required, m.OverrideValidationRegex,
		m.OverrideDefaultValue, m.Active, m.UpdatedAt)
	if err != nil {
		return postgres.MapError(err)
	}
	return requireRow(res)
}

func (s *Postgres) DeleteAttributeMapping(ctx context.Context, id domain.AttributeMappingID) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		DELETE FROM attribute_mappings WHERE id = $1`, uuid.UUID(id))
	if err != nil {
		return postgres.MapError(err)
	}
	return requireRow(res)
}

func scanAttributeMapping(row rowScanner) (*models.AttributeMapping, error) {
	var (
		m              models.AttributeMapping
		at             models.AttributeType
		id             uuid.UUID
		identityTypeID uuid.UUID
		atID           uuid.UUID
		dataType       string
	)
	err := row.Scan(&id, &identityTypeID, &m.SortOrder, &m.Required,
		&m.OverrideValidationRegex, &m.OverrideDefaultValue,
		&m.Active, &m.CreatedAt, &m.UpdatedAt,
		&atID, &at.Name, &at.DisplayName, &at.Description, &dataType,
		&at.ValidationRegex, &at.DefaultValue, &at.Active, &at.CreatedAt, &at.UpdatedAt)
	if err != nil {
		return nil, postgres.MapError(err)
	}
	m.ID = domain.AttributeMappingID(id)
	m.IdentityTypeID = domain.IdentityTypeID(identityTypeID)
	at.ID = domain.AttributeTypeID(atID)
	at.DataType = models.DataType(dataType)
	m.AttributeType = &at
	return &m, nil
}

// ---------------------------------------------------------------------------
// Identifier mappings
// ---------------------------------------------------------------------------

const identifierMappingSelect = `
	SELECT m.id, m.identity_type_id, m.sort_order, m.required, m.primary_candidate,
	       m.override_validation_regex, m.override_default_value,
	       m.active, m.created_at, m.updated_at,
	       t.id, t.name, t.display_name, t.description, t.data_type,
	       t.validation_regex, t.default_value, t.is_unique, t.searchable,
	       t.active, t.created_at, t.updated_at
	FROM identifier_mappings m
	JOIN identifier_types t ON t.id = m.identifier_type_id`

func (s *Postgres) CreateIdentifierMapping(ctx context.Context, m *models.IdentifierMapping) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO identifier_mappings
			(id, identity_type_id, identifier_type_id, sort_order, required, primary_candidate,
			 override_validation_regex, override_default_value, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		uuid.UUID(m.ID), uuid.UUID(m.IdentityTypeID), uuid.UUID(m.IdentifierType.ID),
		m.SortOrder, m.Required, m.PrimaryCandidate,
		m.OverrideValidationRegex, m.OverrideDefaultValue,
		m.Active, m.CreatedAt, m.UpdatedAt)
	return postgres.MapError(err)
}

func (s *Postgres) FindIdentifierMapping(ctx context.Context, id domain.IdentifierMappingID) (*models.IdentifierMapping, error) {
	row := s.execer(ctx).QueryRowContext(ctx, identifierMappingSelect+` WHERE m.id = $1`, uuid.UUID(id))
	return scanIdentifierMapping(row)
}

func (s *Postgres) FindActiveIdentifierMapping(ctx context.Context, identityTypeID domain.IdentityTypeID, identifierTypeID domain.IdentifierTypeID) (*models.IdentifierMapping, error) {
	row := s.execer(ctx).QueryRowContext(ctx, identifierMappingSelect+`
		WHERE m.identity_type_id = $1 AND m.identifier_type_id = $2 AND m.active`,
		uuid.UUID(identityTypeID), uuid.UUID(identifierTypeID))
	return scanIdentifierMapping(row)
}

func (s *Postgres) ListActiveIdentifierMappings(ctx context.Context, identityTypeID domain.IdentityTypeID) ([]models.IdentifierMapping, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, identifierMappingSelect+`
		WHERE m.identity_type_id = $1 AND m.active
		ORDER BY m.sort_order, t.name`, uuid.UUID(identityTypeID))
	if err != nil {
		return nil, postgres.MapError(err)
	}
	defer rows.Close()

	var out []models.IdentifierMapping
	for rows.Next() {
		m, err := scanIdentifierMapping(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, postgres.MapError(rows.Err())
}

func (s *Postgres) SaveIdentifierMapping(ctx context.Context, m *models.IdentifierMapping) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE identifier_mappings
		SET sort_order = $2, required = $3, primary_candidate = $4,
		    override_validation_regex = $5, override_default_value = $6,
		    active = $7, updated_at = $8
		WHERE id = $1`,
		uuid.UUID(m.ID), m.SortOrder, m.Required, m.PrimaryCandidate,
		m.OverrideValidationRegex, m.OverrideDefaultValue, m.Active, m.UpdatedAt)
	if err != nil {
		return postgres.MapError(err)
	}
	return requireRow(res)
}

func (s *Postgres) DeleteIdentifierMapping(ctx context.Context, id domain.IdentifierMappingID) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		DELETE FROM identifier_mappings WHERE id = $1`, uuid.UUID(id))
	if err != nil {
		return postgres.MapError(err)
	}
	return requireRow(res)
}

func scanIdentifierMapping(row rowScanner) (*models.IdentifierMapping, error) {
	var (
		m              models.IdentifierMapping
		it             models.IdentifierType
		id             uuid.UUID
		identityTypeID uuid.UUID
		itID           uuid.UUID
		dataType       string
	)
	err := row.Scan(&id, &identityTypeID, &m.SortOrder, &m.Required, &m.PrimaryCandidate,
		&m.OverrideValidationRegex, &m.OverrideDefaultValue,
		&m.Active, &m.CreatedAt, &m.UpdatedAt,
		&itID, &it.Name, &it.DisplayName, &it.Description, &dataType,
		&it.ValidationRegex, &it.DefaultValue, &it.Unique, &it.Searchable,
		&it.Active, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return nil, postgres.MapError(err)
	}
	m.ID = domain.IdentifierMappingID(id)
	m.IdentityTypeID = domain.IdentityTypeID(identityTypeID)
	it.ID = domain.IdentifierTypeID(itID)
	it.DataType = models.DataType(dataType)
	m.IdentifierType = &it
	return &m, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return postgres.MapError(sql.ErrNoRows)
	}
	return nil
}
