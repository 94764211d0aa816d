package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/officesync/timeline/internal/application/port"
	"github.com/officesync/timeline/internal/domain/entity"
	"github.com/officesync/timeline/internal/domain/timeline"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// LayoutCache keeps computed day layouts in Redis. Backend failures degrade
// to a miss so the timeline is always served from the database.
type LayoutCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger *zap.Logger
}

// Config holds Redis connection settings
type Config struct {
	Addr      string
	Password  string
	DB        int
	TTL       time.Duration
	KeyPrefix string
}

var _ port.LayoutCache = (*LayoutCache)(nil)

// NewClient opens a Redis client and verifies the connection
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// NewLayoutCache creates a new LayoutCache
func NewLayoutCache(client *redis.Client, cfg Config, logger *zap.Logger) *LayoutCache {
	ttl := cfg.TTL
	if ttl < 0 {
		ttl = 0
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "timeline"
	}
	return &LayoutCache{
		client: client,
		ttl:    ttl,
		prefix: prefix,
		logger: logger,
	}
}

// Get returns the cached layout of one staff member's day
func (c *LayoutCache) Get(ctx context.Context, staffID int64, date time.Time) (*timeline.Layout, bool) {
	key := c.key(staffID, date)
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Layout cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var layout timeline.Layout
	if err := json.Unmarshal(data, &layout); err != nil {
		c.logger.Warn("Dropping corrupt layout cache entry", zap.String("key", key), zap.Error(err))
		_ = c.client.Del(ctx, key).Err()
		return nil, false
	}
	return &layout, true
}

// Set stores a layout. A zero TTL disables caching.
func (c *LayoutCache) Set(ctx context.Context, staffID int64, date time.Time, layout *timeline.Layout) {
	if c.ttl == 0 || layout == nil {
		return
	}
	data, err := json.Marshal(layout)
	if err != nil {
		c.logger.Warn("Failed to encode layout", zap.Int64("staff_id", staffID), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, c.key(staffID, date), data, c.ttl).Err(); err != nil {
		c.logger.Warn("Layout cache write failed", zap.Int64("staff_id", staffID), zap.Error(err))
	}
}

// Evict drops the cached layout of one staff member's day
func (c *LayoutCache) Evict(ctx context.Context, staffID int64, date time.Time) {
	if err := c.client.Del(ctx, c.key(staffID, date)).Err(); err != nil {
		c.logger.Warn("Layout cache evict failed", zap.Int64("staff_id", staffID), zap.Error(err))
	}
}

func (c *LayoutCache) key(staffID int64, date time.Time) string {
	return fmt.Sprintf("%s:layout:%d:%s", c.prefix, staffID, entity.FormatDate(date))
}
