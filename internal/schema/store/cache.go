package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"identityshelf/internal/schema/models"
	"identityshelf/pkg/domain"
)

// RedisCache caches resolved schema snapshots in Redis. The cache is a pure
// accelerator: any Redis failure degrades to a store read, never to a request
// failure.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisCache constructs a schema cache with the given entry TTL.
func NewRedisCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

func schemaKey(id domain.IdentityTypeID) string {
	return "schema:" + id.String()
}

// Get returns the cached snapshot for the identity type, if present.
func (c *RedisCache) Get(ctx context.Context, id domain.IdentityTypeID) (*models.ResolvedSchema, bool) {
	raw, err := c.client.Get(ctx, schemaKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WarnContext(ctx, "schema cache read failed", "identity_type_id", id.String(), "error", err)
		}
		return nil, false
	}
	var schema models.ResolvedSchema
	if err := json.Unmarshal(raw, &schema); err != nil {
		c.logger.WarnContext(ctx, "schema cache entry corrupt, dropping", "identity_type_id", id.String(), "error", err)
		c.Invalidate(ctx, id)
		return nil, false
	}
	return &schema, true
}

// Set stores a snapshot under the identity type's key.
func (c *RedisCache) Set(ctx context.Context, schema *models.ResolvedSchema) {
	raw, err := json.Marshal(schema)
	if err != nil {
		c.logger.WarnContext(ctx, "schema cache encode failed", "error", err)
		return
	}
	if err := c.client.Set(ctx, schemaKey(schema.IdentityType.ID), raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "schema cache write failed", "identity_type_id", schema.IdentityType.ID.String(), "error", err)
	}
}

// Invalidate drops the cached snapshot for the identity type.
func (c *RedisCache) Invalidate(ctx context.Context, id domain.IdentityTypeID) {
	if err := c.client.Del(ctx, schemaKey(id)).Err(); err != nil {
		c.logger.WarnContext(ctx, "schema cache invalidation failed", "identity_type_id", id.String(), "error", err)
	}
}
