// Package rendercache caches linkified clause HTML in Redis so repeated
// contract views do not re-run citation resolution over every clause body.
package rendercache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned when no cached rendering exists for the key.
var ErrMiss = errors.New("rendercache: miss")

// Cache stores rendered clause HTML keyed by contract, clause and revision.
// A nil *Cache is valid and behaves as a cache that always misses.
type Cache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// New connects to Redis and verifies the connection.
func New(redisURL string, ttl time.Duration) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewWithClient(client, ttl), nil
}

// NewWithClient creates a cache from an existing Redis client.
func NewWithClient(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Cache{
		client: client,
		prefix: "render:",
		ttl:    ttl,
	}
}

func (c *Cache) key(contractID, clauseID, rev string) string {
	return c.prefix + contractID + ":" + clauseID + ":" + rev
}

// Get returns the cached HTML for a clause revision, or ErrMiss.
func (c *Cache) Get(ctx context.Context, contractID, clauseID, rev string) (string, error) {
	if c == nil {
		return "", ErrMiss
	}
	html, err := c.client.Get(ctx, c.key(contractID, clauseID, rev)).Result()
	if err == redis.Nil {
		return "", ErrMiss
	}
	if err != nil {
		return "", fmt.Errorf("rendercache get: %w", err)
	}
	return html, nil
}

// Put stores rendered HTML for a clause revision.
func (c *Cache) Put(ctx context.Context, contractID, clauseID, rev, html string) error {
	if c == nil {
		return nil
	}
	if err := c.client.Set(ctx, c.key(contractID, clauseID, rev), html, c.ttl).Err(); err != nil {
		return fmt.Errorf("rendercache put: %w", err)
	}
	return nil
}

// InvalidateContract drops all cached renderings for a contract. Called
// whenever any clause of the contract changes, since a single edit can
// change link targets in every other clause.
func (c *Cache) InvalidateContract(ctx context.Context, contractID string) error {
	if c == nil {
		return nil
	}
	pattern := c.prefix + contractID + ":*"
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("rendercache scan: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("rendercache invalidate: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}

// Ping checks if Redis is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	if c == nil {
		return errors.New("rendercache: not configured")
	}
	return c.client.Ping(ctx).Err()
}
