package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/skill-ascent/skill-ascent/internal/domain/skill"
	"github.com/skill-ascent/skill-ascent/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SKILL CHANGE FEED
// Каждое изменение навыков увеличивает счётчик версии пользователя и
// публикует уведомление в канал. Подписчик (воркер) пропускает
// уведомления с версией не новее уже обработанной.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultChangeFeedChannel - канал по умолчанию.
const DefaultChangeFeedChannel = "skills.changed"

// notifyScript атомарно увеличивает версию и публикует уведомление.
var notifyScript = redis.NewScript(`
local v = redis.call('INCR', KEYS[1])
redis.call('PUBLISH', ARGV[1], cjson.encode({user_id = ARGV[2], version = v}))
return v
`)

// ChangeNotice - уведомление об изменении навыков.
type ChangeNotice struct {
	UserID  string `json:"user_id"`
	Version int64  `json:"version"`
}

// ChangeHandler обрабатывает уведомление.
type ChangeHandler func(ctx context.Context, notice ChangeNotice) error

// ChangeFeed реализует skill.Notifier через Redis.
type ChangeFeed struct {
	cache   *Cache
	channel string
	log     *logger.Logger

	mu       sync.Mutex
	lastSeen map[string]int64
}

var _ skill.Notifier = (*ChangeFeed)(nil)

// NewChangeFeed создаёт ленту изменений. Пустой channel означает канал по умолчанию.
func NewChangeFeed(cache *Cache, channel string, log *logger.Logger) *ChangeFeed {
	if channel == "" {
		channel = DefaultChangeFeedChannel
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ChangeFeed{
		cache:    cache,
		channel:  PubSubChannel(channel),
		log:      log.With(logger.Component("change_feed")),
		lastSeen: make(map[string]int64),
	}
}

// Channel возвращает полное имя канала.
func (f *ChangeFeed) Channel() string {
	return f.channel
}

// SkillsChanged увеличивает версию навыков пользователя и публикует уведомление.
func (f *ChangeFeed) SkillsChanged(ctx context.Context, userID string) error {
	_, err := f.Notify(ctx, userID)
	return err
}

// Notify делает то же, что SkillsChanged, и возвращает новую версию.
func (f *ChangeFeed) Notify(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, ErrCacheKeyEmpty
	}

	version, err := notifyScript.Run(ctx, f.cache.Client(), []string{SkillVersionKey(userID)}, f.channel, userID).Int64()
	if err != nil {
		return 0, fmt.Errorf("publish skills change: %w", err)
	}

	f.log.Debug("skills change published", logger.UserID(userID), logger.Int64("version", version))
	return version, nil
}

// Version возвращает текущую версию навыков пользователя (0, если изменений не было).
func (f *ChangeFeed) Version(ctx context.Context, userID string) (int64, error) {
	return f.cache.GetInt64(ctx, SkillVersionKey(userID))
}

// Listen подписывается на канал и вызывает handler для каждого нового
// уведомления, пока не отменён ctx. Ошибки handler логируются.
func (f *ChangeFeed) Listen(ctx context.Context, handler ChangeHandler) error {
	pubsub := f.cache.Subscribe(ctx, f.channel)
	defer pubsub.Close()

	// Дожидаемся подтверждения подписки, чтобы не терять первые сообщения.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", f.channel, err)
	}

	f.log.Info("listening for skill changes", logger.String("channel", f.channel))

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			f.dispatch(ctx, msg.Payload, handler)
		}
	}
}

func (f *ChangeFeed) dispatch(ctx context.Context, payload string, handler ChangeHandler) {
	notice, err := DecodeChangeNotice(payload)
	if err != nil {
		f.log.Warn("malformed change notice", logger.String("payload", payload), logger.Err(err))
		return
	}

	if !f.advance(notice) {
		f.log.Debug("stale change notice skipped", logger.UserID(notice.UserID), logger.Int64("version", notice.Version))
		return
	}

	if err := handler(ctx, notice); err != nil {
		f.log.Warn("change notice handling failed", logger.UserID(notice.UserID), logger.Err(err))
	}
}

// advance запоминает версию и сообщает, новее ли она уже виденной.
func (f *ChangeFeed) advance(notice ChangeNotice) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if notice.Version > 0 && notice.Version <= f.lastSeen[notice.UserID] {
		return false
	}
	f.lastSeen[notice.UserID] = notice.Version
	return true
}

// Forget удаляет запомненные версии пользователей. Следующее уведомление
// для них будет обработано независимо от версии.
func (f *ChangeFeed) Forget(userIDs ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, userID := range userIDs {
		delete(f.lastSeen, userID)
	}
}

// Tracked возвращает число пользователей с запомненной версией.
func (f *ChangeFeed) Tracked() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.lastSeen)
}

// DecodeChangeNotice разбирает сообщение канала.
func DecodeChangeNotice(payload string) (ChangeNotice, error) {
	var notice ChangeNotice
	if err := json.Unmarshal([]byte(payload), &notice); err != nil {
		return ChangeNotice{}, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	if notice.UserID == "" {
		return ChangeNotice{}, fmt.Errorf("%w: user_id is missing", ErrCacheSerialization)
	}
	return notice, nil
}
