package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Namespaces of cached upstream answers.
const (
	NamespaceLocations = "locations"
	NamespaceAgency    = "agency"
)

type Cache interface {
	Get(ctx context.Context, namespace, key string, out any) bool
	Set(ctx context.Context, namespace, key string, value any) error
	Close() error
}

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *RedisCache) Get(ctx context.Context, namespace, key string, out any) bool {
	data, err := c.client.Get(ctx, generateKey(namespace, key)).Bytes()
	if err != nil {
		return false
	}

	if err := json.Unmarshal(data, out); err != nil {
		return false
	}

	return true
}

func (c *RedisCache) Set(ctx context.Context, namespace, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, generateKey(namespace, key), data, c.ttl).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

type NoOpCache struct{}

func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

func (c *NoOpCache) Get(ctx context.Context, namespace, key string, out any) bool {
	return false
}

func (c *NoOpCache) Set(ctx context.Context, namespace, key string, value any) error {
	return nil
}

func (c *NoOpCache) Close() error {
	return nil
}

// generateKey folds case and surrounding space so "Bari" and " bari" share an entry.
func generateKey(namespace, key string) string {
	normalized := strings.ToLower(strings.TrimSpace(key))
	hash := sha256.Sum256([]byte(normalized))
	return "cache:" + namespace + ":" + hex.EncodeToString(hash[:])
}
