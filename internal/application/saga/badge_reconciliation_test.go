package saga

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skill-ascent/skill-ascent/internal/domain/badge"
	"github.com/skill-ascent/skill-ascent/internal/domain/shared"
	"github.com/skill-ascent/skill-ascent/internal/domain/skill"
	"github.com/skill-ascent/skill-ascent/pkg/circuitbreaker"
	"github.com/skill-ascent/skill-ascent/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// FAKES
// ══════════════════════════════════════════════════════════════════════════════

type fakeBadgeStore struct {
	mu         sync.Mutex
	badges     map[string][]badge.Badge
	listErr    error
	writeErr   error
	seedCalls  [][]string
	writeCalls [][]badge.AchievedAtUpdate

	// overwrites counts updates that referenced an already achieved badge.
	overwrites int
}

func newFakeBadgeStore() *fakeBadgeStore {
	return &fakeBadgeStore{badges: make(map[string][]badge.Badge)}
}

func (s *fakeBadgeStore) List(_ context.Context, userID string) ([]badge.Badge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := badge.CloneAll(s.badges[userID])
	badge.SortByID(out)
	return out, nil
}

func (s *fakeBadgeStore) Seed(_ context.Context, userID string, badges []badge.Badge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.seedCalls = append(s.seedCalls, badge.IDs(badges))
	s.badges[userID] = badge.Merge(s.badges[userID], badges)
	return nil
}

func (s *fakeBadgeStore) UpdateAchievedAt(_ context.Context, userID string, updates []badge.AchievedAtUpdate) ([]badge.AchievedAtUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return nil, s.writeErr
	}
	for _, u := range updates {
		if b, ok := badge.FindByID(s.badges[userID], u.BadgeID); ok && b.IsAchieved() {
			s.overwrites++
		}
	}
	s.writeCalls = append(s.writeCalls, updates)
	applied := badge.Applicable(s.badges[userID], updates)
	s.badges[userID] = badge.Apply(s.badges[userID], updates)
	return applied, nil
}

func (s *fakeBadgeStore) set(userID string, badges []badge.Badge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.badges[userID] = badge.CloneAll(badges)
}

func (s *fakeBadgeStore) stored(userID string) []badge.Badge {
	s.mu.Lock()
	defer s.mu.Unlock()
	return badge.CloneAll(s.badges[userID])
}

func (s *fakeBadgeStore) failWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = err
}

func (s *fakeBadgeStore) failLists(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listErr = err
}

type fakeSkillSource struct {
	mu     sync.Mutex
	skills map[string][]skill.Skill
	err    error
}

func newFakeSkillSource() *fakeSkillSource {
	return &fakeSkillSource{skills: make(map[string][]skill.Skill)}
}

func (s *fakeSkillSource) List(_ context.Context, userID string) ([]skill.Skill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return skill.CloneAll(s.skills[userID]), nil
}

func (s *fakeSkillSource) set(userID string, skills ...skill.Skill) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skills[userID] = skill.CloneAll(skills)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *recordingPublisher) Publish(e shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) ofType(t shared.EventType) []shared.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []shared.Event
	for _, e := range p.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	store     *fakeBadgeStore
	skills    *fakeSkillSource
	publisher *recordingPublisher
	clock     *testClock
	ctrl      *BadgeReconciliation
}

func fastRetrier() *retry.Retrier {
	return retry.New(
		retry.WithMaxAttempts(2),
		retry.WithInitialDelay(time.Millisecond),
		retry.WithMaxDelay(time.Millisecond),
	)
}

func newHarness(t *testing.T, config ReconciliationConfig) *harness {
	t.Helper()
	h := &harness{
		store:     newFakeBadgeStore(),
		skills:    newFakeSkillSource(),
		publisher: &recordingPublisher{},
		clock:     &testClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
	}
	h.ctrl = NewBadgeReconciliation(ReconciliationDeps{
		Skills:       h.skills,
		Badges:       h.store,
		Evaluator:    badge.NewEvaluator(badge.WithLocation(time.UTC), badge.WithClock(h.clock.Now)),
		Publisher:    h.publisher,
		WriteRetrier: fastRetrier(),
		ReadRetrier:  fastRetrier(),
		StoreBreaker: circuitbreaker.New("test-store", circuitbreaker.WithFailureThreshold(100)),
		SkillBreaker: circuitbreaker.New("test-skills", circuitbreaker.WithFailureThreshold(100)),
		Now:          h.clock.Now,
	}, config)
	return h
}

func practice(id string, day, minutes int) skill.PracticeEntry {
	return skill.PracticeEntry{ID: id, Date: time.Date(2024, 3, day, 10, 0, 0, 0, time.UTC), Duration: minutes}
}

func achievedIDs(badges []badge.Badge) []string {
	var ids []string
	for _, b := range badges {
		if b.IsAchieved() {
			ids = append(ids, b.ID)
		}
	}
	return ids
}

const user = "user-1"

// ══════════════════════════════════════════════════════════════════════════════
// BOOTSTRAP
// ══════════════════════════════════════════════════════════════════════════════

func TestBootstrap_SeedsCatalogForNewUser(t *testing.T) {
	h := newHarness(t, DefaultReconciliationConfig())

	result, err := h.ctrl.UserChanged(context.Background(), user)

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, StateReady, h.ctrl.State())
	assert.Equal(t, [][]string{{"b1", "b2", "b3", "b4", "b5", "b6"}}, h.store.seedCalls)
	assert.Empty(t, h.store.writeCalls)
	assert.True(t, badge.Equal(badge.Catalog(), h.ctrl.Snapshot()))
	assert.Len(t, h.publisher.ofType(shared.EventBadgesSeeded), 1)
}

func TestBootstrap_EmptyUserIsNotAuthenticated(t *testing.T) {
	h := newHarness(t, DefaultReconciliationConfig())

	_, err := h.ctrl.UserChanged(context.Background(), "")

	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrNotAuthenticated))
	assert.Equal(t, StateUninitialized, h.ctrl.State())
	assert.Empty(t, h.store.seedCalls)

	_, err = h.ctrl.SkillsChanged(context.Background())
	assert.True(t, errors.Is(err, shared.ErrNotAuthenticated))
}

func TestBootstrap_CanonicalizesStoredTimestamps(t *testing.T) {
	h := newHarness(t, DefaultReconciliationConfig())
	raw := time.Date(2024, 1, 2, 3, 4, 5, 123456789, time.FixedZone("X", 5*3600))
	stored := badge.Catalog()
	stored[0] = stored[0].WithAchievedAt(raw)
	h.store.set(user, stored)

	_, err := h.ctrl.UserChanged(context.Background(), user)
	require.NoError(t, err)

	b1, ok := h.ctrl.BadgeByID("b1")
	require.True(t, ok)
	require.NotNil(t, b1.AchievedAt)
	assert.Equal(t, time.UTC, b1.AchievedAt.Location())
	assert.Equal(t, 123456000, b1.AchievedAt.Nanosecond())
	assert.True(t, b1.AchievedAt.Equal(raw.Truncate(time.Microsecond)))
	assert.Empty(t, h.store.seedCalls)
}

func TestBootstrap_BackfillsMissingCatalogBadges(t *testing.T) {
	h := newHarness(t, DefaultReconciliationConfig())
	h.store.set(user, badge.Catalog()[:2])

	_, err := h.ctrl.UserChanged(context.Background(), user)
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"b3", "b4", "b5", "b6"}}, h.store.seedCalls)
	assert.Equal(t, []string{"b1", "b2", "b3", "b4", "b5", "b6"}, badge.IDs(h.ctrl.Snapshot()))
	assert.Len(t, h.store.stored(user), 6)
}

func TestBootstrap_BackfillDisabled(t *testing.T) {
	config := DefaultReconciliationConfig()
	config.CatalogBackfill = false
	h := newHarness(t, config)
	h.store.set(user, badge.Catalog()[:2])

	_, err := h.ctrl.UserChanged(context.Background(), user)
	require.NoError(t, err)

	assert.Empty(t, h.store.seedCalls)
	assert.Equal(t, []string{"b1", "b2"}, badge.IDs(h.ctrl.Snapshot()))
}

func TestBootstrap_ReadFailureIsSticky(t *testing.T) {
	h := newHarness(t, DefaultReconciliationConfig())
	h.store.failLists(errors.New("connection refused"))

	_, err := h.ctrl.UserChanged(context.Background(), user)

	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrReadFailure))
	assert.Equal(t, StateError, h.ctrl.State())
	assert.Nil(t, h.ctrl.Snapshot(), "no fallback to defaults")

	_, err = h.ctrl.SkillsChanged(context.Background())
	assert.True(t, errors.Is(err, shared.ErrReadFailure))
	assert.Equal(t, StateError, h.ctrl.State())

	h.store.failLists(nil)
	_, err = h.ctrl.Retry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateReady, h.ctrl.State())
	assert.NoError(t, h.ctrl.Err())
}

func TestBootstrap_SeedFailureIsWriteFailure(t *testing.T) {
	h := newHarness(t, DefaultReconciliationConfig())
	h.store.failWrites(errors.New("disk full"))

	_, err := h.ctrl.UserChanged(context.Background(), user)

	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrWriteFailure))
	assert.Equal(t, StateError, h.ctrl.State())
}

func TestBootstrap_OpenBreakerIsStoreUnavailable(t *testing.T) {
	h := newHarness(t, DefaultReconciliationConfig())
	h.ctrl.storeBreaker = circuitbreaker.New("tripped",
		circuitbreaker.WithFailureThreshold(1),
		circuitbreaker.WithTimeout(time.Hour))
	h.ctrl.readRetrier = retry.New(retry.WithMaxAttempts(1))
	h.store.failLists(errors.New("timeout"))

	_, err := h.ctrl.UserChanged(context.Background(), user)
	require.True(t, errors.Is(err, shared.ErrReadFailure))

	h.store.failLists(nil)
	_, err = h.ctrl.Retry(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrStoreUnavailable))
	assert.False(t, errors.Is(err, shared.ErrReadFailure))
}

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILIATION
// ══════════════════════════════════════════════════════════════════════════════

func TestReconcile_SkillCountScenario(t *testing.T) {
	h := newHarness(t, DefaultReconciliationConfig())
	h.skills.set(user, skill.Skill{ID: "x", Name: "Piano"})

	result, err := h.ctrl.UserChanged(context.Background(), user)
	require.NoError(t, err)

	assert.Equal(t, []string{"b1"}, badge.IDs(result.NewlyAchieved))
	require.Len(t, h.store.writeCalls, 1)
	assert.Equal(t, []badge.AchievedAtUpdate{{BadgeID: "b1", AchievedAt: h.clock.Now()}}, h.store.writeCalls[0])
	assert.Equal(t, []string{"b1"}, achievedIDs(h.store.stored(user)))

	unlocked := h.publisher.ofType(shared.EventBadgeUnlocked)
	require.Len(t, unlocked, 1)
	assert.Equal(t, "b1", unlocked[0].(shared.BadgeUnlockedEvent).BadgeID)
}

func TestReconcile_DeltaMinimality(t *testing.T) {
	h := newHarness(t, DefaultReconciliationConfig())
	ctx := context.Background()

	_, err := h.ctrl.UserChanged(ctx, user)
	require.NoError(t, err)

	steps := [][]skill.Skill{
		{{ID: "1"}},
		{{ID: "1", PracticeLog: []skill.PracticeEntry{practice("a", 1, 30)}}},
		{{ID: "1", PracticeLog: []skill.PracticeEntry{practice("b", 2, 31), practice("a", 1, 30)}}},
		{{ID: "1", PracticeLog: []skill.PracticeEntry{practice("b", 2, 31), practice("a", 1, 30)}}, {ID: "2"}},
		{{ID: "2"}},
	}
	for _, skills := range steps {
		h.clock.Advance(time.Minute)
		h.skills.set(user, skills...)
		_, err := h.ctrl.SkillsChanged(ctx)
		require.NoError(t, err)
	}

	assert.Zero(t, h.store.overwrites, "no write may reference an already achieved badge")
	assert.Equal(t, []string{"b1", "b2", "b4"}, achievedIDs(h.ctrl.Snapshot()))
	assert.True(t, badge.Equal(h.store.stored(user), h.ctrl.Snapshot()))

	// b1 keeps its first instant even though skill "1" was deleted.
	b1, _ := h.ctrl.BadgeByID("b1")
	assert.Equal(t, time.Date(2024, 5, 1, 12, 1, 0, 0, time.UTC), *b1.AchievedAt)
}

func TestReconcile_SkipsWhenNothingChanged(t *testing.T) {
	h := newHarness(t, DefaultReconciliationConfig())
	ctx := context.Background()
	h.skills.set(user, skill.Skill{ID: "1"})

	_, err := h.ctrl.UserChanged(ctx, user)
	require.NoError(t, err)

	result, err := h.ctrl.SkillsChanged(ctx)
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Len(t, h.store.writeCalls, 1)

	config := DefaultReconciliationConfig()
	config.SkipUnchanged = false
	h2 := newHarness(t, config)
	h2.skills.set(user, skill.Skill{ID: "1"})
	_, err = h2.ctrl.UserChanged(ctx, user)
	require.NoError(t, err)
	result, err = h2.ctrl.SkillsChanged(ctx)
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Empty(t, result.Written)
}

func TestReconcile_WriteFailureKeepsStateAndPinsInstant(t *testing.T) {
	h := newHarness(t, DefaultReconciliationConfig())
	ctx := context.Background()

	_, err := h.ctrl.UserChanged(ctx, user)
	require.NoError(t, err)
	firstDetected := h.clock.Now()

	h.store.failWrites(errors.New("deadlock detected"))
	h.skills.set(user, skill.Skill{ID: "1"})

	result, err := h.ctrl.SkillsChanged(ctx)

	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrWriteFailure))
	require.NotNil(t, result)
	assert.Equal(t, err, result.WriteErr)
	assert.Equal(t, StateReady, h.ctrl.State())
	assert.NoError(t, h.ctrl.Err())
	assert.Empty(t, achievedIDs(h.ctrl.Snapshot()), "previous snapshot is kept")
	assert.Equal(t, []string{"b1"}, h.ctrl.PendingUnlocks())
	assert.Len(t, h.publisher.ofType(shared.EventBadgeWriteFailed), 1)
	assert.Empty(t, h.publisher.ofType(shared.EventBadgeUnlocked))

	// Store recovers later; the retried write reuses the first-detected instant.
	h.clock.Advance(time.Hour)
	h.store.failWrites(nil)

	result, err = h.ctrl.Retry(ctx)
	require.NoError(t, err)
	require.Len(t, result.Written, 1)
	assert.Equal(t, firstDetected, result.Written[0].AchievedAt)
	assert.Empty(t, h.ctrl.PendingUnlocks())
	assert.NoError(t, h.ctrl.LastWriteErr())

	b1, _ := h.ctrl.BadgeByID("b1")
	assert.Equal(t, firstDetected, *b1.AchievedAt)
}

func TestReconcile_PinDroppedWhenNoLongerSatisfied(t *testing.T) {
	h := newHarness(t, DefaultReconciliationConfig())
	ctx := context.Background()
	_, err := h.ctrl.UserChanged(ctx, user)
	require.NoError(t, err)

	h.store.failWrites(errors.New("boom"))
	h.skills.set(user, skill.Skill{ID: "1"})
	_, err = h.ctrl.SkillsChanged(ctx)
	require.Error(t, err)

	h.store.failWrites(nil)
	h.skills.set(user)
	result, err := h.ctrl.SkillsChanged(ctx)
	require.NoError(t, err)
	assert.Empty(t, result.Written)
	assert.Empty(t, h.ctrl.PendingUnlocks())
}

func TestReconcile_BadgesChangedAdoptsExternalWrites(t *testing.T) {
	h := newHarness(t, DefaultReconciliationConfig())
	ctx := context.Background()
	_, err := h.ctrl.UserChanged(ctx, user)
	require.NoError(t, err)

	external := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	stored := h.store.stored(user)
	stored[2] = stored[2].WithAchievedAt(external)
	h.store.set(user, stored)

	result, err := h.ctrl.BadgesChanged(ctx)
	require.NoError(t, err)
	assert.Empty(t, result.Written)

	b3, ok := h.ctrl.BadgeByID("b3")
	require.True(t, ok)
	require.NotNil(t, b3.AchievedAt)
	assert.Equal(t, external, *b3.AchievedAt)
}

func TestReconcile_UserChangedResetsState(t *testing.T) {
	h := newHarness(t, DefaultReconciliationConfig())
	ctx := context.Background()
	h.skills.set("a", skill.Skill{ID: "1"})

	_, err := h.ctrl.UserChanged(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"b1"}, achievedIDs(h.ctrl.Snapshot()))

	_, err = h.ctrl.UserChanged(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "b", h.ctrl.UserID())
	assert.Empty(t, achievedIDs(h.ctrl.Snapshot()))
	assert.Equal(t, []string{"b1"}, achievedIDs(h.store.stored("a")))
}

func TestHandle_DispatchesTriggers(t *testing.T) {
	h := newHarness(t, DefaultReconciliationConfig())
	ctx := context.Background()

	_, err := h.ctrl.Handle(ctx, TriggerUserChanged, user)
	require.NoError(t, err)

	h.skills.set(user, skill.Skill{ID: "1"})
	result, err := h.ctrl.Handle(ctx, TriggerSkillsChanged, "")
	require.NoError(t, err)
	assert.Equal(t, TriggerSkillsChanged, result.Trigger)

	_, err = h.ctrl.Handle(ctx, Trigger("bogus"), "")
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))
}

func TestControllerState_String(t *testing.T) {
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "error", StateError.String())
	assert.Equal(t, "unknown", ControllerState(42).String())
}
