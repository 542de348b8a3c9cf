package store

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"identityshelf/internal/identity/models"
	"identityshelf/internal/identity/service"
	"identityshelf/internal/platform/postgres"
	schema "identityshelf/internal/schema/models"
	"identityshelf/pkg/domain"
	txcontext "identityshelf/pkg/platform/tx"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func pick(ctx context.Context, db *sql.DB) execer {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return db
}

type rowScanner interface {
	Scan(dest ...any) error
}

// ---------------------------------------------------------------------------
// Identities
// ---------------------------------------------------------------------------

// PostgresIdentities implements service.IdentityStore.
type PostgresIdentities struct {
	db *sql.DB
}

// NewPostgresIdentities constructs a durable identity store over db.
func NewPostgresIdentities(db *sql.DB) *PostgresIdentities {
	return &PostgresIdentities{db: db}
}

const identityColumns = `id, identity_type_id, display_name, status, created_at, updated_at`

func (s *PostgresIdentities) Create(ctx context.Context, i *models.Identity) error {
	_, err := pick(ctx, s.db).ExecContext(ctx, `
		INSERT INTO identities (`+identityColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.UUID(i.ID), uuid.UUID(i.IdentityTypeID), i.DisplayName, string(i.Status), i.CreatedAt, i.UpdatedAt)
	return postgres.MapError(err)
}

func (s *PostgresIdentities) FindByID(ctx context.Context, id domain.IdentityID) (*models.Identity, error) {
	row := pick(ctx, s.db).QueryRowContext(ctx, `
		SELECT `+identityColumns+` FROM identities WHERE id = $1`, uuid.UUID(id))
	return scanIdentity(row)
}

func (s *PostgresIdentities) List(ctx context.Context, f service.IdentityFilter) ([]models.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE 1=1`
	var args []any
	if !f.IdentityTypeID.IsNil() {
		args = append(args, uuid.UUID(f.IdentityTypeID))
		query += ` AND identity_type_id = $` + itoa(len(args))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		query += ` AND status = $` + itoa(len(args))
	}
	args = append(args, f.Limit)
	query += ` ORDER BY created_at, id LIMIT $` + itoa(len(args))
	args = append(args, f.Offset)
	query += ` OFFSET $` + itoa(len(args))

	rows, err := pick(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, postgres.MapError(err)
	}
	defer rows.Close()

	var out []models.Identity
	for rows.Next() {
		i, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *i)
	}
	return out, postgres.MapError(rows.Err())
}

func (s *PostgresIdentities) Save(ctx context.Context, i *models.Identity) error {
	res, err := pick(ctx, s.db).ExecContext(ctx, `
		UPDATE identities SET display_name = $2, status = $3, updated_at = $4 WHERE id = $1`,
		uuid.UUID(i.ID), i.DisplayName, string(i.Status), i.UpdatedAt)
	if err != nil {
		return postgres.MapError(err)
	}
	return requireRow(res)
}

func (s *PostgresIdentities) Delete(ctx context.Context, id domain.IdentityID) error {
	res, err := pick(ctx, s.db).ExecContext(ctx, `
		DELETE FROM identities WHERE id = $1`, uuid.UUID(id))
	if err != nil {
		return postgres.MapError(err)
	}
	return requireRow(res)
}

func scanIdentity(row rowScanner) (*models.Identity, error) {
	var (
		i      models.Identity
		id     uuid.UUID
		typeID uuid.UUID
		status string
	)
	if err := row.Scan(&id, &typeID, &i.DisplayName, &status, &i.CreatedAt, &i.UpdatedAt); err != nil {
		return nil, postgres.MapError(err)
	}
	i.ID = domain.IdentityID(id)
	i.IdentityTypeID = domain.IdentityTypeID(typeID)
	i.Status = models.Status(status)
	return &i, nil
}

// ---------------------------------------------------------------------------
// Attribute values
// ---------------------------------------------------------------------------

// PostgresValues implements service.ValueStore over the multi-column typed
// value table. Exactly one value column is non-null per row; the attribute's
// data type decides which one.
type PostgresValues struct {
	db *sql.DB
}

// NewPostgresValues constructs a durable attribute value store over db.
func NewPostgresValues(db *sql.DB) *PostgresValues {
	return &PostgresValues{db: db}
}

const valueSelect = `
	SELECT v.id, v.identity_id, v.attribute_type_id, t.name, t.data_type,
	       v.string_value, v.integer_value, v.decimal_value, v.boolean_value,
	       v.date_value, v.datetime_value, v.created_at, v.updated_at
	FROM identity_attribute_values v
	JOIN attribute_types t ON t.id = v.attribute_type_id`

// Upsert writes the value, replacing any existing row for the
// (identity, attribute type) pair.
func (s *PostgresValues) Upsert(ctx context.Context, rec *models.AttributeValueRecord) error {
	c := rec.Value.Columns()
	_, err := pick(ctx, s.db).ExecContext(ctx, `
		INSERT INTO identity_attribute_values
			(id, identity_id, attribute_type_id, string_value, integer_value,
			 decimal_value, boolean_value, date_value, datetime_value, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (identity_id, attribute_type_id) DO UPDATE SET
			string_value = EXCLUDED.string_value,
			integer_value = EXCLUDED.integer_value,
			decimal_value = EXCLUDED.decimal_value,
			boolean_value = EXCLUDED.boolean_value,
			date_value = EXCLUDED.date_value,
			datetime_value = EXCLUDED.datetime_value,
			updated_at = EXCLUDED.updated_at`,
		uuid.UUID(rec.ID), uuid.UUID(rec.IdentityID), uuid.UUID(rec.AttributeTypeID),
		c.String, c.Integer, c.Decimal, c.Boolean, c.Date, c.DateTime,
		rec.CreatedAt, rec.UpdatedAt)
	return postgres.MapError(err)
}

func (s *PostgresValues) Find(ctx context.Context, identityID domain.IdentityID, attributeTypeID domain.AttributeTypeID) (*models.AttributeValueRecord, error) {
	row := pick(ctx, s.db).QueryRowContext(ctx, valueSelect+`
		WHERE v.identity_id = $1 AND v.attribute_type_id = $2`,
		uuid.UUID(identityID), uuid.UUID(attributeTypeID))
	return scanValue(row)
}

func (s *PostgresValues) ListByIdentity(ctx context.Context, identityID domain.IdentityID) ([]models.AttributeValueRecord, error) {
	rows, err := pick(ctx, s.db).QueryContext(ctx, valueSelect+`
		WHERE v.identity_id = $1 ORDER BY t.name`, uuid.UUID(identityID))
	if err != nil {
		return nil, postgres.MapError(err)
	}
	defer rows.Close()

	var out []models.AttributeValueRecord
	for rows.Next() {
		rec, err := scanValue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, postgres.MapError(rows.Err())
}

func (s *PostgresValues) DeleteByIdentity(ctx context.Context, identityID domain.IdentityID) error {
	_, err := pick(ctx, s.db).ExecContext(ctx, `
		DELETE FROM identity_attribute_values WHERE identity_id = $1`, uuid.UUID(identityID))
	return postgres.MapError(err)
}

func scanValue(row rowScanner) (*models.AttributeValueRecord, error) {
	var (
		rec      models.AttributeValueRecord
		id       uuid.UUID
		idenID   uuid.UUID
		attrID   uuid.UUID
		dataType string
		c        models.ValueColumns
	)
	err := row.Scan(&id, &idenID, &attrID, &rec.AttributeName, &dataType,
		&c.String, &c.Integer, &c.Decimal, &c.Boolean, &c.Date, &c.DateTime,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, postgres.MapError(err)
	}
	rec.ID = domain.ValueID(id)
	rec.IdentityID = domain.IdentityID(idenID)
	rec.AttributeTypeID = domain.AttributeTypeID(attrID)
	rec.DataType = schema.DataType(dataType)
	rec.Value = models.HydrateValue(rec.DataType, c)
	return &rec, nil
}

// ---------------------------------------------------------------------------
// Identifiers
// ---------------------------------------------------------------------------

// PostgresIdentifiers implements service.IdentifierStore. The unique_value
// column mirrors value for identifiers of unique types; the partial unique
// index over it is the durable backstop behind the service's uniqueness gate.
type PostgresIdentifiers struct {
	db *sql.DB
}

// NewPostgresIdentifiers constructs a durable identifier store over db.
func NewPostgresIdentifiers(db *sql.DB) *PostgresIdentifiers {
	return &PostgresIdentifiers{db: db}
}

const identifierSelect = `
	SELECT i.id, i.identity_id, i.identifier_type_id, t.name, i.value,
	       i.is_primary, i.verified, i.verified_at, i.verified_by,
	       i.active, i.created_at, i.updated_at
	FROM identifiers i
	JOIN identifier_types t ON t.id = i.identifier_type_id`

func (s *PostgresIdentifiers) Create(ctx context.Context, i *models.Identifier, enforceUnique bool) error {
	var uniqueValue *string
	if enforceUnique {
		uniqueValue = &i.Value
	}
	_, err := pick(ctx, s.db).ExecContext(ctx, `
		INSERT INTO identifiers
			(id, identity_id, identifier_type_id, value, unique_value, is_primary,
			 verified, verified_at, verified_by, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		uuid.UUID(i.ID), uuid.UUID(i.IdentityID), uuid.UUID(i.IdentifierTypeID),
		i.Value, uniqueValue, i.Primary, i.Verified, i.VerifiedAt, nullIfEmpty(i.VerifiedBy),
		i.Active, i.CreatedAt, i.UpdatedAt)
	return postgres.MapError(err)
}

func (s *PostgresIdentifiers) FindByID(ctx context.Context, id domain.IdentifierID) (*models.Identifier, error) {
	row := pick(ctx, s.db).QueryRowContext(ctx, identifierSelect+` WHERE i.id = $1`, uuid.UUID(id))
	return scanIdentifier(row)
}

// Save updates the row. unique_value is rewritten only when enforceUnique is
// set; status-only saves leave the uniqueness backstop untouched.
func (s *PostgresIdentifiers) Save(ctx context.Context, i *models.Identifier, enforceUnique bool) error {
	query := `
		UPDATE identifiers
		SET value = $2, is_primary = $3, verified = $4, verified_at = $5,
		    verified_by = $6, active = $7, updated_at = $8`
	args := []any{uuid.UUID(i.ID), i.Value, i.Primary, i.Verified, i.VerifiedAt,
		nullIfEmpty(i.VerifiedBy), i.Active, i.UpdatedAt}
	if enforceUnique {
		args = append(args, i.Value)
		query += `, unique_value = $` + itoa(len(args))
	}
	query += ` WHERE id = $1`

	res, err := pick(ctx, s.db).ExecContext(ctx, query, args...)
	if err != nil {
		return postgres.MapError(err)
	}
	return requireRow(res)
}

func (s *PostgresIdentifiers) ListByIdentity(ctx context.Context, identityID domain.IdentityID) ([]models.Identifier, error) {
	rows, err := pick(ctx, s.db).QueryContext(ctx, identifierSelect+`
		WHERE i.identity_id = $1
		ORDER BY i.is_primary DESC, i.created_at`, uuid.UUID(identityID))
	if err != nil {
		return nil, postgres.MapError(err)
	}
	defer rows.Close()
	return collectIdentifiers(rows)
}

func (s *PostgresIdentifiers) FindPrimary(ctx context.Context, identityID domain.IdentityID) (*models.Identifier, error) {
	row := pick(ctx, s.db).QueryRowContext(ctx, identifierSelect+`
		WHERE i.identity_id = $1 AND i.active AND i.is_primary`, uuid.UUID(identityID))
	return scanIdentifier(row)
}

func (s *PostgresIdentifiers) ExistsActiveValue(ctx context.Context, typeID domain.IdentifierTypeID, value string, exclude domain.IdentifierID) (bool, error) {
	var exists bool
	err := pick(ctx, s.db).QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM identifiers
			WHERE identifier_type_id = $1 AND value = $2 AND active AND id <> $3
		)`, uuid.UUID(typeID), value, uuid.UUID(exclude)).Scan(&exists)
	return exists, postgres.MapError(err)
}

func (s *PostgresIdentifiers) Search(ctx context.Context, value string, typeIDs []domain.IdentifierTypeID, limit int) ([]models.Identifier, error) {
	rows, err := pick(ctx, s.db).QueryContext(ctx, identifierSelect+`
		WHERE lower(i.value) = lower($1) AND i.active AND i.identifier_type_id = ANY($2)
		ORDER BY i.value LIMIT $3`,
		value, typeIDArray(typeIDs), limit)
	if err != nil {
		return nil, postgres.MapError(err)
	}
	defer rows.Close()
	return collectIdentifiers(rows)
}

func (s *PostgresIdentifiers) SuggestByPrefix(ctx context.Context, prefix string, typeIDs []domain.IdentifierTypeID, limit int) ([]models.Identifier, error) {
	rows, err := pick(ctx, s.db).QueryContext(ctx, identifierSelect+`
		WHERE lower(i.value) LIKE lower($1) || '%' AND i.active AND i.identifier_type_id = ANY($2)
		ORDER BY i.value LIMIT $3`,
		escapeLike(prefix), typeIDArray(typeIDs), limit)
	if err != nil {
		return nil, postgres.MapError(err)
	}
	defer rows.Close()
	return collectIdentifiers(rows)
}

func (s *PostgresIdentifiers) DeleteByIdentity(ctx context.Context, identityID domain.IdentityID) error {
	_, err := pick(ctx, s.db).ExecContext(ctx, `
		DELETE FROM identifiers WHERE identity_id = $1`, uuid.UUID(identityID))
	return postgres.MapError(err)
}

func collectIdentifiers(rows *sql.Rows) ([]models.Identifier, error) {
	var out []models.Identifier
	for rows.Next() {
		i, err := scanIdentifier(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *i)
	}
	return out, postgres.MapError(rows.Err())
}

func scanIdentifier(row rowScanner) (*models.Identifier, error) {
	var (
		i          models.Identifier
		id         uuid.UUID
		identityID uuid.UUID
		typeID     uuid.UUID
		verifiedAt sql.NullTime
		verifiedBy sql.NullString
	)
	err := row.Scan(&id, &identityID, &typeID, &i.IdentifierTypeName, &i.Value,
		&i.Primary, &i.Verified, &verifiedAt, &verifiedBy,
		&i.Active, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return nil, postgres.MapError(err)
	}
	i.ID = domain.IdentifierID(id)
	i.IdentityID = domain.IdentityID(identityID)
	i.IdentifierTypeID = domain.IdentifierTypeID(typeID)
	if verifiedAt.Valid {
		t := verifiedAt.Time
		i.VerifiedAt = &t
	}
	i.VerifiedBy = verifiedBy.String
	return &i, nil
}

// ---------------------------------------------------------------------------

func typeIDArray(ids []domain.IdentifierTypeID) any {
	out := make([]uuid.UUID, len(ids))
	for n, id := range ids {
		out[n] = uuid.UUID(id)
	}
	return pq.Array(out)
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// escapeLike neutralizes LIKE metacharacters in user-supplied prefixes.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func itoa(n int) string {
	return strconv.Itoa(n)
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
