package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skill-ascent/skill-ascent/internal/domain/shared"
)

func syncBus() *InMemoryEventBus {
	return NewInMemoryEventBus(InMemoryEventBusConfig{EnableMetrics: true})
}

func TestInMemoryEventBus_RoutesByType(t *testing.T) {
	bus := syncBus()

	var typed, all []shared.EventType
	require.NoError(t, bus.Subscribe(shared.EventSkillsChanged, func(e shared.Event) error {
		typed = append(typed, e.EventType())
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		all = append(all, e.EventType())
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewSkillsChangedEvent("u1", shared.EventPracticeLogged)))
	require.NoError(t, bus.Publish(shared.NewBadgeUnlockedEvent("u1", "b1", "First Steps", "skillCount", time.Now())))

	assert.Equal(t, []shared.EventType{shared.EventSkillsChanged}, typed)
	assert.Equal(t, []shared.EventType{shared.EventSkillsChanged, shared.EventBadgeUnlocked}, all)
	assert.EqualValues(t, 2, bus.Metrics().Snapshot().TotalPublished)
}

func TestInMemoryEventBus_HandlerFailuresDoNotPropagate(t *testing.T) {
	bus := syncBus()

	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { return errors.New("boom") }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { panic("bad handler") }))

	assert.NoError(t, bus.Publish(shared.NewSkillsChangedEvent("u1", shared.EventSkillAdded)))

	snap := bus.Metrics().Snapshot()
	assert.EqualValues(t, 2, snap.HandlerFailures)
	assert.Zero(t, snap.HandlerSuccessRate)
}

func TestInMemoryEventBus_AsyncAndClose(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())

	var mu sync.Mutex
	count := 0
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	}))

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(shared.NewSkillsChangedEvent("u1", shared.EventPracticeLogged)))
	}
	require.NoError(t, bus.Close())

	mu.Lock()
	assert.Equal(t, 5, count)
	mu.Unlock()

	assert.ErrorIs(t, bus.Publish(shared.NewSkillsChangedEvent("u1", shared.EventPracticeLogged)), ErrEventBusClosed)
	assert.ErrorIs(t, bus.SubscribeAll(func(shared.Event) error { return nil }), ErrEventBusClosed)
}

// loopbackRedis delivers published messages to subscribers in-process.
type loopbackRedis struct {
	mu        sync.Mutex
	published []string
	subs      []chan RedisMessage
}

func (l *loopbackRedis) Publish(_ context.Context, channel string, message interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.published = append(l.published, message.(string))
	for _, s := range l.subs {
		s <- RedisMessage{Channel: channel, Payload: message.(string)}
	}
	return nil
}

func (l *loopbackRedis) Subscribe(context.Context, ...string) (<-chan RedisMessage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch := make(chan RedisMessage, 16)
	l.subs = append(l.subs, ch)
	return ch, nil
}

func (l *loopbackRedis) Close() error { return nil }

func TestRedisEventBus_DeliversRemoteEventsOnce(t *testing.T) {
	redis := &loopbackRedis{}

	local, err := NewRedisEventBus(RedisEventBusConfig{Client: redis, InstanceID: "a"})
	require.NoError(t, err)
	defer local.Close()

	received := make(chan shared.Event, 4)
	// Handler on an instance that didn't publish.
	remote, err := NewRedisEventBus(RedisEventBusConfig{Client: redis, InstanceID: "b"})
	require.NoError(t, err)
	defer remote.Close()
	require.NoError(t, remote.Subscribe(shared.EventSkillsChanged, func(e shared.Event) error {
		received <- e
		return nil
	}))

	require.NoError(t, local.Publish(shared.NewSkillsChangedEvent("u1", shared.EventSkillAdded)))

	select {
	case e := <-received:
		assert.Equal(t, shared.EventSkillsChanged, e.EventType())
		assert.Equal(t, "u1", e.AggregateID())
		assert.Equal(t, "u1", e.Payload()["user_id"])
	case <-time.After(2 * time.Second):
		t.Fatal("remote instance did not receive the event")
	}

	require.Len(t, redis.published, 1)
	var env eventEnvelope
	require.NoError(t, json.Unmarshal([]byte(redis.published[0]), &env))
	assert.Equal(t, "a", env.InstanceID)
}

func TestRedisEventBus_ForwardFilterKeepsSkillEventsLocal(t *testing.T) {
	redis := &loopbackRedis{}

	bus, err := NewRedisEventBus(RedisEventBusConfig{Client: redis, InstanceID: "a", Forward: ForwardBadgeEvents})
	require.NoError(t, err)
	defer bus.Close()

	var local []shared.EventType
	var mu sync.Mutex
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		mu.Lock()
		local = append(local, e.EventType())
		mu.Unlock()
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewSkillsChangedEvent("u1", shared.EventPracticeLogged)))
	require.NoError(t, bus.Publish(shared.NewBadgeUnlockedEvent("u1", "b2", "Hour of Power", "totalMinutes", time.Now())))
	bus.localBus.Wait()

	redis.mu.Lock()
	require.Len(t, redis.published, 1)
	var env eventEnvelope
	require.NoError(t, json.Unmarshal([]byte(redis.published[0]), &env))
	redis.mu.Unlock()
	assert.Equal(t, shared.EventBadgeUnlocked, env.EventType)

	mu.Lock()
	assert.ElementsMatch(t, []shared.EventType{shared.EventSkillsChanged, shared.EventBadgeUnlocked}, local)
	mu.Unlock()
}

func TestRedisEventBus_BadgesChangedKeepsWriter(t *testing.T) {
	redis := &loopbackRedis{}

	cli, err := NewRedisEventBus(RedisEventBusConfig{Client: redis, InstanceID: "cli-1", Forward: ForwardBadgeEvents})
	require.NoError(t, err)
	defer cli.Close()
	worker, err := NewRedisEventBus(RedisEventBusConfig{Client: redis, InstanceID: "worker-1", Forward: ForwardBadgeEvents})
	require.NoError(t, err)
	defer worker.Close()

	received := make(chan shared.Event, 1)
	require.NoError(t, worker.Subscribe(shared.EventBadgesChanged, func(e shared.Event) error {
		received <- e
		return nil
	}))

	require.NoError(t, cli.Publish(shared.NewBadgesChangedEvent("u1", []string{"b1"}, "cli-1")))

	select {
	case e := <-received:
		assert.Equal(t, "u1", e.AggregateID())
		assert.Equal(t, "cli-1", shared.EventWriter(e))
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not receive badges.changed")
	}
}
