package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skill-ascent/skill-ascent/internal/domain/badge"
)

// memoryCache stores JSON like the real Cache does.
type memoryCache struct {
	data   map[string][]byte
	getErr error
	sets   int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

func (m *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	if m.getErr != nil {
		return m.getErr
	}
	raw, ok := m.data[key]
	if !ok {
		return ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.sets++
	m.data[key] = raw
	return nil
}

func (m *memoryCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

type countingStore struct {
	badges   []badge.Badge
	lists    int
	writeErr error
}

func (s *countingStore) List(context.Context, string) ([]badge.Badge, error) {
	s.lists++
	return badge.CloneAll(s.badges), nil
}

func (s *countingStore) Seed(_ context.Context, _ string, badges []badge.Badge) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	s.badges = badge.Merge(s.badges, badges)
	return nil
}

func (s *countingStore) UpdateAchievedAt(_ context.Context, _ string, updates []badge.AchievedAtUpdate) ([]badge.AchievedAtUpdate, error) {
	if s.writeErr != nil {
		return nil, s.writeErr
	}
	applied := badge.Applicable(s.badges, updates)
	s.badges = badge.Apply(s.badges, updates)
	return applied, nil
}

func TestBadgeCache_ReadThrough(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{badges: badge.Catalog()}
	mem := newMemoryCache()
	c := newBadgeCache(store, mem, time.Minute, nil)

	first, err := c.List(ctx, "u1")
	require.NoError(t, err)
	second, err := c.List(ctx, "u1")
	require.NoError(t, err)

	assert.Equal(t, 1, store.lists, "second read served from cache")
	assert.Equal(t, first, second)
}

func TestBadgeCache_DoesNotCacheUnseededUser(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{}
	mem := newMemoryCache()
	c := newBadgeCache(store, mem, time.Minute, nil)

	_, err := c.List(ctx, "u1")
	require.NoError(t, err)

	assert.Zero(t, mem.sets)
}

func TestBadgeCache_WritesInvalidate(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{badges: badge.Catalog()}
	mem := newMemoryCache()
	c := newBadgeCache(store, mem, time.Minute, nil)

	_, err := c.List(ctx, "u1")
	require.NoError(t, err)

	at := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	applied, err := c.UpdateAchievedAt(ctx, "u1", []badge.AchievedAtUpdate{{BadgeID: "b1", AchievedAt: at}})
	require.NoError(t, err)
	assert.Len(t, applied, 1)

	listed, err := c.List(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, store.lists)
	require.NotNil(t, listed[0].AchievedAt)
	assert.True(t, listed[0].AchievedAt.Equal(at))

	store.writeErr = errors.New("down")
	err = c.Seed(ctx, "u1", badge.Catalog())
	assert.Error(t, err)
	_, cached := mem.data[BadgesKey("u1")]
	assert.False(t, cached, "failed writes still drop the snapshot")
}

func TestBadgeCache_FallsBackOnCacheError(t *testing.T) {
	store := &countingStore{badges: badge.Catalog()}
	mem := newMemoryCache()
	mem.getErr = errors.New("redis down")
	c := newBadgeCache(store, mem, time.Minute, nil)

	listed, err := c.List(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, listed, len(badge.Catalog()))
}

func TestBadgeCache_IgnoresStaleCatalogVersion(t *testing.T) {
	store := &countingStore{badges: badge.Catalog()}
	mem := newMemoryCache()
	stale := toSnapshot(badge.Catalog()[:1])
	stale.CatalogVersion = badge.CatalogVersion - 1
	require.NoError(t, mem.Set(context.Background(), BadgesKey("u1"), stale, 0))

	c := newBadgeCache(store, mem, time.Minute, nil)
	listed, err := c.List(context.Background(), "u1")
	require.NoError(t, err)

	assert.Len(t, listed, len(badge.Catalog()))
	assert.Equal(t, 1, store.lists)
}

func TestDecodeChangeNotice(t *testing.T) {
	notice, err := DecodeChangeNotice(`{"user_id":"u1","version":7}`)
	require.NoError(t, err)
	assert.Equal(t, ChangeNotice{UserID: "u1", Version: 7}, notice)

	_, err = DecodeChangeNotice(`{"version":7}`)
	assert.True(t, errors.Is(err, ErrCacheSerialization))

	_, err = DecodeChangeNotice(`nope`)
	assert.True(t, errors.Is(err, ErrCacheSerialization))
}

func TestChangeFeed_DispatchSkipsStaleVersions(t *testing.T) {
	feed := NewChangeFeed(nil, "", nil)
	assert.Equal(t, "pubsub:skills.changed", feed.Channel())

	var handled []int64
	handler := func(_ context.Context, n ChangeNotice) error {
		handled = append(handled, n.Version)
		return nil
	}

	ctx := context.Background()
	feed.dispatch(ctx, `{"user_id":"u1","version":2}`, handler)
	feed.dispatch(ctx, `{"user_id":"u1","version":1}`, handler)
	feed.dispatch(ctx, `{"user_id":"u1","version":2}`, handler)
	feed.dispatch(ctx, `{"user_id":"u1","version":3}`, handler)
	feed.dispatch(ctx, `{"user_id":"u2","version":1}`, handler)
	feed.dispatch(ctx, `garbage`, handler)

	assert.Equal(t, []int64{2, 3, 1}, handled)
}

func TestChangeFeed_ForgetReleasesVersions(t *testing.T) {
	feed := NewChangeFeed(nil, "", nil)
	ctx := context.Background()
	handled := 0
	handler := func(context.Context, ChangeNotice) error {
		handled++
		return nil
	}

	feed.dispatch(ctx, `{"user_id":"u1","version":5}`, handler)
	feed.dispatch(ctx, `{"user_id":"u2","version":1}`, handler)
	assert.Equal(t, 2, feed.Tracked())

	feed.Forget("u1", "unknown")
	assert.Equal(t, 1, feed.Tracked())

	feed.dispatch(ctx, `{"user_id":"u1","version":6}`, handler)
	assert.Equal(t, 3, handled)
	assert.Equal(t, 2, feed.Tracked())
}

func TestConfigOptions(t *testing.T) {
	opts, err := Config{Host: "cache", Port: 6380, DB: 2, PoolSize: 5}.Options()
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 5, opts.PoolSize)

	opts, err = Config{URL: "redis://:secret@example:6379/3"}.Options()
	require.NoError(t, err)
	assert.Equal(t, "example:6379", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 3, opts.DB)

	_, err = Config{URL: "http://bad"}.Options()
	assert.True(t, errors.Is(err, ErrCacheConnection))
}
