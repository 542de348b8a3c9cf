//go:build integration

package store_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"identityshelf/internal/schema/models"
	"identityshelf/internal/schema/store"
	"identityshelf/pkg/domain"
	"identityshelf/pkg/testutil/containers"
)

type RedisCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *store.RedisCache
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.cache = store.NewRedisCache(s.redis.Client, time.Minute, slog.New(slog.DiscardHandler))
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func testSchema() *models.ResolvedSchema {
	now := time.Now().UTC().Truncate(time.Second)
	attrType := &models.AttributeType{
		ID: domain.AttributeTypeID(uuid.New()), Name: "age", DisplayName: "Age",
		DataType: models.DataTypeInteger, ValidationRegex: `[0-9]+`,
		Active: true, CreatedAt: now, UpdatedAt: now,
	}
	identityTypeID := domain.IdentityTypeID(uuid.New())
	return &models.ResolvedSchema{
		IdentityType: models.IdentityType{
			ID: identityTypeID, Name: "person", DisplayName: "Person",
			Active: true, CreatedAt: now, UpdatedAt: now,
		},
		AttributeMappings: []models.AttributeMapping{{
			ID: domain.AttributeMappingID(uuid.New()), IdentityTypeID: identityTypeID,
			AttributeType: attrType, Required: true, Active: true,
			CreatedAt: now, UpdatedAt: now,
		}},
	}
}

func (s *RedisCacheSuite) TestSetThenGet() {
	ctx := context.Background()
	schema := testSchema()

	s.cache.Set(ctx, schema)

	got, ok := s.cache.Get(ctx, schema.IdentityType.ID)
	s.Require().True(ok)
	s.Equal(schema.IdentityType.Name, got.IdentityType.Name)
	s.Require().Len(got.AttributeMappings, 1)
	s.Require().NotNil(got.AttributeMappings[0].AttributeType)
	s.Equal("age", got.AttributeMappings[0].AttributeType.Name)
	s.True(got.AttributeMappings[0].Required)
}

func (s *RedisCacheSuite) TestMissReturnsFalse() {
	_, ok := s.cache.Get(context.Background(), domain.IdentityTypeID(uuid.New()))
	s.False(ok)
}

func (s *RedisCacheSuite) TestInvalidateRemovesEntry() {
	ctx := context.Background()
	schema := testSchema()

	s.cache.Set(ctx, schema)
	s.cache.Invalidate(ctx, schema.IdentityType.ID)

	_, ok := s.cache.Get(ctx, schema.IdentityType.ID)
	s.False(ok)
}

func (s *RedisCacheSuite) TestCorruptEntryIsDroppedSilently() {
	ctx := context.Background()
	schema := testSchema()
	key := "schema:" + schema.IdentityType.ID.String()

	s.Require().NoError(s.redis.Client.Set(ctx, key, "not json", time.Minute).Err())

	_, ok := s.cache.Get(ctx, schema.IdentityType.ID)
	s.False(ok, "corrupt entries behave like misses")

	// The bad entry is evicted so the next write is clean.
	exists, err := s.redis.Client.Exists(ctx, key).Result()
	s.Require().NoError(err)
	s.Zero(exists)
}

func (s *RedisCacheSuite) TestEntriesExpire() {
	ctx := context.Background()
	shortCache := store.NewRedisCache(s.redis.Client, 50*time.Millisecond, slog.New(slog.DiscardHandler))
	schema := testSchema()

	shortCache.Set(ctx, schema)
	time.Sleep(100 * time.Millisecond)

	_, ok := shortCache.Get(ctx, schema.IdentityType.ID)
	s.False(ok)
}
