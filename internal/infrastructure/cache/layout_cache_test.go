package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/officesync/timeline/internal/domain/entity"
	"github.com/officesync/timeline/internal/domain/timeline"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupCache(t *testing.T, ttl time.Duration) (*LayoutCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewLayoutCache(client, Config{TTL: ttl}, zap.NewNop()), mr
}

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := entity.ParseDate(s)
	require.NoError(t, err)
	return d
}

func sampleLayout() *timeline.Layout {
	return &timeline.Layout{
		Placements: []timeline.Placement{
			{TaskID: 1, Top: 80, Height: 80, WidthPct: 100, ZIndex: 20},
			{TaskID: 2, Top: 120, Height: 80, LeftPct: 12, WidthPct: 88, ZIndex: 21, Column: 1},
		},
		Rejected: []timeline.Rejected{{TaskID: 3, Reason: "invalid start time"}},
	}
}

func TestLayoutCache_MissThenHit(t *testing.T) {
	c, mr := setupCache(t, time.Minute)
	ctx := context.Background()
	d := day(t, "2024-06-03")

	_, ok := c.Get(ctx, 7, d)
	assert.False(t, ok)

	c.Set(ctx, 7, d, sampleLayout())

	got, ok := c.Get(ctx, 7, d)
	require.True(t, ok)
	assert.Equal(t, sampleLayout(), got)

	ttl := mr.TTL("timeline:layout:7:2024-06-03")
	assert.True(t, ttl > 0 && ttl <= time.Minute, "ttl %v", ttl)

	_, ok = c.Get(ctx, 7, day(t, "2024-06-04"))
	assert.False(t, ok, "other days are separate entries")
}

func TestLayoutCache_Evict(t *testing.T) {
	c, mr := setupCache(t, time.Minute)
	ctx := context.Background()
	d := day(t, "2024-06-03")

	c.Set(ctx, 7, d, sampleLayout())
	c.Set(ctx, 8, d, sampleLayout())
	c.Evict(ctx, 7, d)

	_, ok := c.Get(ctx, 7, d)
	assert.False(t, ok)
	assert.True(t, mr.Exists("timeline:layout:8:2024-06-03"))
}

func TestLayoutCache_ExpiresWithTTL(t *testing.T) {
	c, mr := setupCache(t, time.Minute)
	ctx := context.Background()
	d := day(t, "2024-06-03")

	c.Set(ctx, 7, d, sampleLayout())
	mr.FastForward(2 * time.Minute)

	_, ok := c.Get(ctx, 7, d)
	assert.False(t, ok)
}

func TestLayoutCache_ZeroTTLDisablesWrites(t *testing.T) {
	c, mr := setupCache(t, 0)
	c.Set(context.Background(), 7, day(t, "2024-06-03"), sampleLayout())
	assert.Empty(t, mr.Keys())
}

func TestLayoutCache_CorruptEntryDropped(t *testing.T) {
	c, mr := setupCache(t, time.Minute)
	require.NoError(t, mr.Set("timeline:layout:7:2024-06-03", "{not json"))

	_, ok := c.Get(context.Background(), 7, day(t, "2024-06-03"))
	assert.False(t, ok)
	assert.False(t, mr.Exists("timeline:layout:7:2024-06-03"))
}

func TestLayoutCache_BackendDownIsAMiss(t *testing.T) {
	c, mr := setupCache(t, time.Minute)
	ctx := context.Background()
	d := day(t, "2024-06-03")
	mr.Close()

	c.Set(ctx, 7, d, sampleLayout())
	_, ok := c.Get(ctx, 7, d)
	assert.False(t, ok)
	c.Evict(ctx, 7, d)
}
