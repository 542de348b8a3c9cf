//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"identityshelf/internal/identity/models"
	"identityshelf/internal/identity/service"
	"identityshelf/internal/identity/store"
	"identityshelf/internal/platform/postgres"
	schemamodels "identityshelf/internal/schema/models"
	schemastore "identityshelf/internal/schema/store"
	"identityshelf/pkg/domain"
	"identityshelf/pkg/platform/sentinel"
	"identityshelf/pkg/testutil/containers"
)

type IdentityPostgresSuite struct {
	suite.Suite
	postgres    *containers.PostgresContainer
	identities  *store.PostgresIdentities
	values      *store.PostgresValues
	identifiers *store.PostgresIdentifiers
	schemas     *schemastore.Postgres

	personID domain.IdentityTypeID
	emailID  domain.IdentifierTypeID
	ageID    domain.AttributeTypeID
}

func TestIdentityPostgresSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(IdentityPostgresSuite))
}

func (s *IdentityPostgresSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.identities = store.NewPostgresIdentities(s.postgres.DB)
	s.values = store.NewPostgresValues(s.postgres.DB)
	s.identifiers = store.NewPostgresIdentifiers(s.postgres.DB)
	s.schemas = schemastore.NewPostgres(s.postgres.DB)
}

// SetupTest wipes all rows and reseeds the minimal schema the foreign keys
// demand: a person type, an age attribute, and a unique email identifier.
func (s *IdentityPostgresSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx,
		"identifiers", "identity_attribute_values", "identities",
		"attribute_mappings", "identifier_mappings",
		"attribute_types", "identifier_types", "identity_types")
	s.Require().NoError(err)

	now := time.Now().UTC()
	person, err := schemamodels.NewIdentityType(domain.IdentityTypeID(uuid.New()), "person", "", "", now)
	s.Require().NoError(err)
	s.Require().NoError(s.schemas.CreateIdentityType(ctx, person))
	s.personID = person.ID

	age, err := schemamodels.NewAttributeType(domain.AttributeTypeID(uuid.New()), "age", "", schemamodels.DataTypeInteger, "", "", now)
	s.Require().NoError(err)
	s.Require().NoError(s.schemas.CreateAttributeType(ctx, age))
	s.ageID = age.ID

	email, err := schemamodels.NewIdentifierType(domain.IdentifierTypeID(uuid.New()), "email", "", schemamodels.DataTypeEmail, "", true, true, now)
	s.Require().NoError(err)
	s.Require().NoError(s.schemas.CreateIdentifierType(ctx, email))
	s.emailID = email.ID
}

func (s *IdentityPostgresSuite) newIdentity() *models.Identity {
	i := models.NewIdentity(domain.IdentityID(uuid.New()), s.personID, "Ada Lovelace", time.Now().UTC())
	s.Require().NoError(s.identities.Create(context.Background(), i))
	return i
}

func (s *IdentityPostgresSuite) newIdentifier(identityID domain.IdentityID, value string, primary bool) *models.Identifier {
	i, err := models.NewIdentifier(domain.IdentifierID(uuid.New()), identityID, s.emailID, value, primary, time.Now().UTC())
	s.Require().NoError(err)
	return i
}

func (s *IdentityPostgresSuite) TestIdentityLifecycle() {
	ctx := context.Background()
	created := s.newIdentity()

	found, err := s.identities.FindByID(ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, found.Status)

	s.Require().NoError(found.TransitionTo(models.StatusActive, time.Now().UTC()))
	s.Require().NoError(s.identities.Save(ctx, found))

	found, err = s.identities.FindByID(ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusActive, found.Status)

	s.Require().NoError(s.identities.Delete(ctx, created.ID))
	_, err = s.identities.FindByID(ctx, created.ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *IdentityPostgresSuite) TestListFiltersByStatus() {
	ctx := context.Background()
	pending := s.newIdentity()
	active := s.newIdentity()
	s.Require().NoError(active.TransitionTo(models.StatusActive, time.Now().UTC()))
	s.Require().NoError(s.identities.Save(ctx, active))

	list, err := s.identities.List(ctx, service.IdentityFilter{Status: models.StatusPending, Limit: 10})
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal(pending.ID, list[0].ID)

	list, err = s.identities.List(ctx, service.IdentityFilter{IdentityTypeID: s.personID, Limit: 10})
	s.Require().NoError(err)
	s.Len(list, 2)
}

func (s *IdentityPostgresSuite) TestTypedValueUpsertRoundTrip() {
	ctx := context.Background()
	identity := s.newIdentity()
	now := time.Now().UTC()

	rec := &models.AttributeValueRecord{
		ID:              domain.ValueID(uuid.New()),
		IdentityID:      identity.ID,
		AttributeTypeID: s.ageID,
		DataType:        schemamodels.DataTypeInteger,
		Value:           models.IntValue(36),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.Require().NoError(s.values.Upsert(ctx, rec))

	found, err := s.values.Find(ctx, identity.ID, s.ageID)
	s.Require().NoError(err)
	s.Equal("age", found.AttributeName)
	got, ok := found.Value.AsInt()
	s.Require().True(ok, "value hydrates into the integer column")
	s.Equal(int64(36), got)

	// A second upsert for the same pair replaces the value in place.
	rec.ID = domain.ValueID(uuid.New())
	rec.Value = models.IntValue(37)
	rec.UpdatedAt = time.Now().UTC()
	s.Require().NoError(s.values.Upsert(ctx, rec))

	list, err := s.values.ListByIdentity(ctx, identity.ID)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	got, _ = list[0].Value.AsInt()
	s.Equal(int64(37), got)
}

func (s *IdentityPostgresSuite) TestUniqueValueBackstop() {
	ctx := context.Background()
	first := s.newIdentity()
	second := s.newIdentity()

	a := s.newIdentifier(first.ID, "ada@example.com", false)
	s.Require().NoError(s.identifiers.Create(ctx, a, true))

	// The partial unique index rejects a second active row with the same
	// value even if the application-level check was raced past.
	b := s.newIdentifier(second.ID, "ada@example.com", false)
	err := s.identifiers.Create(ctx, b, true)
	s.Require().ErrorIs(err, sentinel.ErrConflict)

	// Deactivation drops the row out of the partial index.
	s.Require().NoError(a.Deactivate(time.Now().UTC()))
	s.Require().NoError(s.identifiers.Save(ctx, a, false))
	s.Require().NoError(s.identifiers.Create(ctx, b, true))
}

func (s *IdentityPostgresSuite) TestSinglePrimaryBackstop() {
	ctx := context.Background()
	identity := s.newIdentity()

	first := s.newIdentifier(identity.ID, "ada@example.com", true)
	s.Require().NoError(s.identifiers.Create(ctx, first, true))

	second := s.newIdentifier(identity.ID, "ada@work.example", true)
	err := s.identifiers.Create(ctx, second, true)
	s.Require().ErrorIs(err, sentinel.ErrConflict, "two active primaries must not coexist")
}

func (s *IdentityPostgresSuite) TestExistsActiveValueExcludesSelf() {
	ctx := context.Background()
	identity := s.newIdentity()

	ident := s.newIdentifier(identity.ID, "ada@example.com", false)
	s.Require().NoError(s.identifiers.Create(ctx, ident, true))

	taken, err := s.identifiers.ExistsActiveValue(ctx, s.emailID, "ada@example.com", domain.IdentifierID(uuid.New()))
	s.Require().NoError(err)
	s.True(taken)

	taken, err = s.identifiers.ExistsActiveValue(ctx, s.emailID, "ada@example.com", ident.ID)
	s.Require().NoError(err)
	s.False(taken, "an identifier does not collide with itself")
}

func (s *IdentityPostgresSuite) TestVerificationColumnsRoundTrip() {
	ctx := context.Background()
	identity := s.newIdentity()

	ident := s.newIdentifier(identity.ID, "ada@example.com", false)
	s.Require().NoError(s.identifiers.Create(ctx, ident, true))

	found, err := s.identifiers.FindByID(ctx, ident.ID)
	s.Require().NoError(err)
	s.False(found.Verified)
	s.Nil(found.VerifiedAt)
	s.Empty(found.VerifiedBy)

	s.Require().NoError(found.MarkVerified("admin@example.com", time.Now().UTC()))
	s.Require().NoError(s.identifiers.Save(ctx, found, false))

	found, err = s.identifiers.FindByID(ctx, ident.ID)
	s.Require().NoError(err)
	s.True(found.Verified)
	s.Require().NotNil(found.VerifiedAt)
	s.Equal("admin@example.com", found.VerifiedBy)
	s.Equal("email", found.IdentifierTypeName, "reads join the identifier type")
}

func (s *IdentityPostgresSuite) TestSearchAndSuggest() {
	ctx := context.Background()
	identity := s.newIdentity()

	s.Require().NoError(s.identifiers.Create(ctx, s.newIdentifier(identity.ID, "ada@example.com", false), true))
	s.Require().NoError(s.identifiers.Create(ctx, s.newIdentifier(identity.ID, "grace@example.com", false), true))

	types := []domain.IdentifierTypeID{s.emailID}

	found, err := s.identifiers.Search(ctx, "ADA@EXAMPLE.COM", types, 10)
	s.Require().NoError(err)
	s.Require().Len(found, 1, "exact match is case-insensitive")
	s.Equal("ada@example.com", found[0].Value)

	found, err = s.identifiers.SuggestByPrefix(ctx, "gr", types, 10)
	s.Require().NoError(err)
	s.Require().Len(found, 1)
	s.Equal("grace@example.com", found[0].Value)

	// LIKE metacharacters in the prefix are literal, not wildcards.
	found, err = s.identifiers.SuggestByPrefix(ctx, "%", types, 10)
	s.Require().NoError(err)
	s.Empty(found)
}

func (s *IdentityPostgresSuite) TestTxRunnerRollsBackOnError() {
	ctx := context.Background()
	runner := postgres.NewTxRunner(s.postgres.DB)
	identity := models.NewIdentity(domain.IdentityID(uuid.New()), s.personID, "Ada Lovelace", time.Now().UTC())

	err := runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.identities.Create(ctx, identity); err != nil {
			return err
		}
		return context.Canceled
	})
	s.Require().Error(err)

	_, err = s.identities.FindByID(ctx, identity.ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound, "the insert rolled back with the transaction")
}

func (s *IdentityPostgresSuite) TestDeleteByIdentityCascades() {
	ctx := context.Background()
	identity := s.newIdentity()
	now := time.Now().UTC()

	rec := &models.AttributeValueRecord{
		ID: domain.ValueID(uuid.New()), IdentityID: identity.ID, AttributeTypeID: s.ageID,
		DataType: schemamodels.DataTypeInteger, Value: models.IntValue(36),
		CreatedAt: now, UpdatedAt: now,
	}
	s.Require().NoError(s.values.Upsert(ctx, rec))
	s.Require().NoError(s.identifiers.Create(ctx, s.newIdentifier(identity.ID, "ada@example.com", false), true))

	s.Require().NoError(s.values.DeleteByIdentity(ctx, identity.ID))
	s.Require().NoError(s.identifiers.DeleteByIdentity(ctx, identity.ID))

	values, err := s.values.ListByIdentity(ctx, identity.ID)
	s.Require().NoError(err)
	s.Empty(values)

	identifiers, err := s.identifiers.ListByIdentity(ctx, identity.ID)
	s.Require().NoError(err)
	s.Empty(identifiers)
}
