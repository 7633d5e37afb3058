package redis

import (
	"context"
	"errors"
	"time"

	"github.com/skill-ascent/skill-ascent/internal/domain/badge"
	"github.com/skill-ascent/skill-ascent/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// BADGE SNAPSHOT CACHE
// Cache-aside поверх badge.Store: List читает снимок из Redis, любая запись
// идёт в хранилище и сбрасывает снимок. Ошибки Redis не ломают чтение.
// ══════════════════════════════════════════════════════════════════════════════

// snapshotCache - часть Cache, нужная декоратору.
type snapshotCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// badgeSnapshot - сериализуемый снимок бейджей пользователя.
type badgeSnapshot struct {
	CatalogVersion int           `json:"catalog_version"`
	Badges         []cachedBadge `json:"badges"`
}

type cachedBadge struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	IconName      string     `json:"icon_name"`
	CriteriaType  string     `json:"criteria_type"`
	CriteriaValue int        `json:"criteria_value"`
	SkillID       string     `json:"skill_id,omitempty"`
	AchievedAt    *time.Time `json:"achieved_at,omitempty"`
}

// BadgeCache реализует badge.Store поверх другого badge.Store.
type BadgeCache struct {
	inner badge.Store
	cache snapshotCache
	ttl   time.Duration
	log   *logger.Logger
}

var _ badge.Store = (*BadgeCache)(nil)

// NewBadgeCache создаёт декоратор. ttl <= 0 означает TTLBadgeSnapshot.
func NewBadgeCache(inner badge.Store, cache *Cache, ttl time.Duration, log *logger.Logger) *BadgeCache {
	return newBadgeCache(inner, cache, ttl, log)
}

func newBadgeCache(inner badge.Store, cache snapshotCache, ttl time.Duration, log *logger.Logger) *BadgeCache {
	if ttl <= 0 {
		ttl = TTLBadgeSnapshot
	}
	if log == nil {
		log = logger.Nop()
	}
	return &BadgeCache{
		inner: inner,
		cache: cache,
		ttl:   ttl,
		log:   log.With(logger.Component("badge_cache")),
	}
}

// List возвращает снимок из кэша или читает хранилище и кэширует результат.
// Пустой результат (пользователь не засеян) не кэшируется.
func (c *BadgeCache) List(ctx context.Context, userID string) ([]badge.Badge, error) {
	key := BadgesKey(userID)

	var snap badgeSnapshot
	err := c.cache.Get(ctx, key, &snap)
	switch {
	case err == nil && snap.CatalogVersion == badge.CatalogVersion:
		return fromSnapshot(snap), nil
	case err != nil && !errors.Is(err, ErrCacheMiss):
		c.log.Warn("badge snapshot read failed", logger.UserID(userID), logger.Err(err))
	}

	badges, err := c.inner.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	if len(badges) > 0 {
		if err := c.cache.Set(ctx, key, toSnapshot(badges), c.ttl); err != nil {
			c.log.Warn("badge snapshot write failed", logger.UserID(userID), logger.Err(err))
		}
	}
	return badges, nil
}

// Seed пишет в хранилище и сбрасывает снимок.
func (c *BadgeCache) Seed(ctx context.Context, userID string, badges []badge.Badge) error {
	err := c.inner.Seed(ctx, userID, badges)
	c.invalidate(ctx, userID)
	return err
}

// UpdateAchievedAt пишет в хранилище и сбрасывает снимок.
func (c *BadgeCache) UpdateAchievedAt(ctx context.Context, userID string, updates []badge.AchievedAtUpdate) ([]badge.AchievedAtUpdate, error) {
	applied, err := c.inner.UpdateAchievedAt(ctx, userID, updates)
	c.invalidate(ctx, userID)
	return applied, err
}

// Invalidate сбрасывает снимок пользователя.
func (c *BadgeCache) Invalidate(ctx context.Context, userID string) error {
	return c.cache.Delete(ctx, BadgesKey(userID))
}

// invalidate сбрасывает снимок и после неудачной записи: её исход неизвестен.
func (c *BadgeCache) invalidate(ctx context.Context, userID string) {
	if err := c.Invalidate(ctx, userID); err != nil {
		c.log.Warn("badge snapshot invalidation failed", logger.UserID(userID), logger.Err(err))
	}
}

func toSnapshot(badges []badge.Badge) badgeSnapshot {
	snap := badgeSnapshot{
		CatalogVersion: badge.CatalogVersion,
		Badges:         make([]cachedBadge, len(badges)),
	}
	for i, b := range badges {
		snap.Badges[i] = cachedBadge{
			ID:            b.ID,
			Name:          b.Name,
			Description:   b.Description,
			IconName:      string(b.IconName),
			CriteriaType:  string(b.CriteriaType),
			CriteriaValue: b.CriteriaValue,
			SkillID:       b.SkillID,
			AchievedAt:    b.AchievedAt,
		}
	}
	return snap
}

func fromSnapshot(snap badgeSnapshot) []badge.Badge {
	badges := make([]badge.Badge, len(snap.Badges))
	for i, cb := range snap.Badges {
		badges[i] = badge.Badge{
			ID:            cb.ID,
			Name:          cb.Name,
			Description:   cb.Description,
			IconName:      badge.IconName(cb.IconName),
			CriteriaType:  badge.CriteriaType(cb.CriteriaType),
			CriteriaValue: cb.CriteriaValue,
			SkillID:       cb.SkillID,
			AchievedAt:    cb.AchievedAt,
		}
	}
	return badge.Canonicalize(badges)
}
