package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"identityshelf/internal/schema/models"
	"identityshelf/pkg/domain"
	"identityshelf/pkg/platform/sentinel"
)

type InMemorySuite struct {
	suite.Suite
	ctx   context.Context
	store *InMemory
}

func (s *InMemorySuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemory()
}

func TestInMemorySuite(t *testing.T) {
	suite.Run(t, new(InMemorySuite))
}

func (s *InMemorySuite) newIdentityType(name string) *models.IdentityType {
	t, err := models.NewIdentityType(domain.NewIdentityTypeID(), name, "", "", time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateIdentityType(s.ctx, t))
	return t
}

func (s *InMemorySuite) newAttributeType(name string) *models.AttributeType {
	t, err := models.NewAttributeType(domain.NewAttributeTypeID(), name, "", models.DataTypeString, "", "", time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateAttributeType(s.ctx, t))
	return t
}

func (s *InMemorySuite) TestIdentityTypeNameConflictIsCaseInsensitive() {
	s.newIdentityType("person")
	dup, err := models.NewIdentityType(domain.NewIdentityTypeID(), "Person", "", "", time.Now())
	s.Require().NoError(err)
	s.ErrorIs(s.store.CreateIdentityType(s.ctx, dup), sentinel.ErrConflict)
}

func (s *InMemorySuite) TestFindIdentityTypeByName() {
	created := s.newIdentityType("person")
	found, err := s.store.FindIdentityTypeByName(s.ctx, "PERSON")
	s.Require().NoError(err)
	s.Equal(created.ID, found.ID)
}

func (s *InMemorySuite) TestFindUnknownReturnsNotFound() {
	_, err := s.store.FindIdentityTypeByID(s.ctx, domain.NewIdentityTypeID())
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.FindAttributeTypeByName(s.ctx, "nope")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemorySuite) TestSaveUnknownIdentityTypeReturnsNotFound() {
	t, err := models.NewIdentityType(domain.NewIdentityTypeID(), "ghost", "", "", time.Now())
	s.Require().NoError(err)
	s.ErrorIs(s.store.SaveIdentityType(s.ctx, t), sentinel.ErrNotFound)
}

func (s *InMemorySuite) mapping(it *models.IdentityType, at *models.AttributeType, sortOrder int) *models.AttributeMapping {
	now := time.Now()
	return &models.AttributeMapping{
		ID:             domain.NewAttributeMappingID(),
		IdentityTypeID: it.ID,
		AttributeType:  at,
		SortOrder:      sortOrder,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (s *InMemorySuite) TestActiveMappingPairConflict() {
	it := s.newIdentityType("person")
	at := s.newAttributeType("email")

	s.Require().NoError(s.store.CreateAttributeMapping(s.ctx, s.mapping(it, at, 1)))
	s.ErrorIs(s.store.CreateAttributeMapping(s.ctx, s.mapping(it, at, 2)), sentinel.ErrConflict)
}

func (s *InMemorySuite) TestListActiveMappingsSortedAndFiltered() {
	it := s.newIdentityType("person")
	a := s.newAttributeType("a")
	b := s.newAttributeType("b")
	c := s.newAttributeType("c")

	mb := s.mapping(it, b, 2)
	s.Require().NoError(s.store.CreateAttributeMapping(s.ctx, mb))
	s.Require().NoError(s.store.CreateAttributeMapping(s.ctx, s.mapping(it, a, 1)))
	inactive := s.mapping(it, c, 3)
	s.Require().NoError(s.store.CreateAttributeMapping(s.ctx, inactive))
	inactive.Active = false
	s.Require().NoError(s.store.SaveAttributeMapping(s.ctx, inactive))

	list, err := s.store.ListActiveAttributeMappings(s.ctx, it.ID)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal("a", list[0].AttributeType.Name)
	s.Equal("b", list[1].AttributeType.Name)
}

func (s *InMemorySuite) TestReturnedMappingIsDetachedFromStore() {
	it := s.newIdentityType("person")
	at := s.newAttributeType("email")
	s.Require().NoError(s.store.CreateAttributeMapping(s.ctx, s.mapping(it, at, 1)))

	list, err := s.store.ListActiveAttributeMappings(s.ctx, it.ID)
	s.Require().NoError(err)
	list[0].AttributeType.Name = "mutated"

	again, err := s.store.ListActiveAttributeMappings(s.ctx, it.ID)
	s.Require().NoError(err)
	s.Equal("email", again[0].AttributeType.Name)
}

func (s *InMemorySuite) TestDeleteMapping() {
	it := s.newIdentityType("person")
	at := s.newAttributeType("email")
	m := s.mapping(it, at, 1)
	s.Require().NoError(s.store.CreateAttributeMapping(s.ctx, m))

	s.Require().NoError(s.store.DeleteAttributeMapping(s.ctx, m.ID))
	_, err := s.store.FindAttributeMapping(s.ctx, m.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.ErrorIs(s.store.DeleteAttributeMapping(s.ctx, m.ID), sentinel.ErrNotFound)
}
