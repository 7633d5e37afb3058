package saga

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skill-ascent/skill-ascent/internal/domain/badge"
	"github.com/skill-ascent/skill-ascent/internal/domain/shared"
	"github.com/skill-ascent/skill-ascent/internal/domain/skill"
	"github.com/skill-ascent/skill-ascent/internal/infrastructure/persistence/sqlite"
	"github.com/skill-ascent/skill-ascent/pkg/circuitbreaker"
)

// ══════════════════════════════════════════════════════════════════════════════
// TWO PROCESSES, ONE STORE
// ══════════════════════════════════════════════════════════════════════════════

func openSharedStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "shared.db"), sqlite.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func newStoreController(st *sqlite.Store, clock func() time.Time, publisher shared.EventPublisher, writer string) *BadgeReconciliation {
	config := DefaultReconciliationConfig()
	config.WriterID = writer
	return NewBadgeReconciliation(ReconciliationDeps{
		Skills:       st.Skills(),
		Badges:       st.Badges(),
		Evaluator:    badge.NewEvaluator(badge.WithLocation(time.UTC), badge.WithClock(clock)),
		Publisher:    publisher,
		WriteRetrier: fastRetrier(),
		ReadRetrier:  fastRetrier(),
		StoreBreaker: circuitbreaker.New("test-store-"+writer, circuitbreaker.WithFailureThreshold(100)),
		SkillBreaker: circuitbreaker.New("test-skills-"+writer, circuitbreaker.WithFailureThreshold(100)),
		Now:          clock,
	}, config)
}

func addSkill(t *testing.T, st *sqlite.Store, userID, id string) {
	t.Helper()
	s := &skill.Skill{ID: id, Name: "Skill " + id, CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, st.Skills().Create(context.Background(), userID, s))
}

func TestConcurrentWriters_LaterWriterAdoptsStoredInstant(t *testing.T) {
	ctx := context.Background()
	st := openSharedStore(t)

	early := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)
	pubA, pubB := &recordingPublisher{}, &recordingPublisher{}
	a := newStoreController(st, func() time.Time { return early }, pubA, "a")
	b := newStoreController(st, func() time.Time { return late }, pubB, "b")

	_, err := a.UserChanged(ctx, user)
	require.NoError(t, err)
	_, err = b.UserChanged(ctx, user)
	require.NoError(t, err)

	addSkill(t, st, user, "1")

	first, err := a.SkillsChanged(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b1"}, badge.IDs(first.NewlyAchieved))
	require.Len(t, first.Written, 1)

	second, err := b.SkillsChanged(ctx)
	require.NoError(t, err)
	assert.Empty(t, second.Written)
	assert.Empty(t, second.NewlyAchieved)

	stored, err := st.Badges().List(ctx, user)
	require.NoError(t, err)
	b1, ok := badge.FindByID(stored, "b1")
	require.True(t, ok)
	require.NotNil(t, b1.AchievedAt)
	assert.True(t, b1.AchievedAt.Equal(early))

	fromA, _ := a.BadgeByID("b1")
	fromB, _ := b.BadgeByID("b1")
	require.NotNil(t, fromB.AchievedAt)
	assert.True(t, fromB.AchievedAt.Equal(*fromA.AchievedAt))
	assert.True(t, fromB.AchievedAt.Equal(early))

	assert.Len(t, pubA.ofType(shared.EventBadgeUnlocked), 1)
	assert.Empty(t, pubB.ofType(shared.EventBadgeUnlocked))
	assert.Len(t, pubA.ofType(shared.EventBadgesChanged), 1)
	assert.Empty(t, pubB.ofType(shared.EventBadgesChanged))

	// A later trigger keeps the adopted instant.
	third, err := b.SkillsChanged(ctx)
	require.NoError(t, err)
	assert.Empty(t, third.Written)
	assert.Equal(t, []string{"b1"}, achievedIDs(b.Snapshot()))
}

func TestConcurrentWriters_BadgesChangedReloadsOtherWriters(t *testing.T) {
	ctx := context.Background()
	st := openSharedStore(t)

	cliClock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	workerClock := cliClock.Add(3 * time.Hour)
	cliEvents := &recordingPublisher{}
	cli := newStoreController(st, func() time.Time { return cliClock }, cliEvents, "cli")

	factory := func(string) *BadgeReconciliation {
		return newStoreController(st, func() time.Time { return workerClock }, &recordingPublisher{}, "worker")
	}
	reg := NewReconciliationRegistry(factory, RegistryConfig{WriterID: "worker"}, nil)

	worker, err := reg.Controller(ctx, user)
	require.NoError(t, err)
	_, err = cli.UserChanged(ctx, user)
	require.NoError(t, err)

	addSkill(t, st, user, "1")
	_, err = cli.SkillsChanged(ctx)
	require.NoError(t, err)
	assert.Empty(t, achievedIDs(worker.Snapshot()))

	// Own events are ignored.
	require.NoError(t, reg.HandleEvent(shared.NewBadgesChangedEvent(user, []string{"b1"}, "worker")))
	assert.Empty(t, achievedIDs(worker.Snapshot()))

	changed := cliEvents.ofType(shared.EventBadgesChanged)
	require.Len(t, changed, 1)
	assert.Equal(t, "cli", shared.EventWriter(changed[0]))
	require.NoError(t, reg.HandleEvent(changed[0]))

	b1, ok := worker.BadgeByID("b1")
	require.True(t, ok)
	require.NotNil(t, b1.AchievedAt)
	assert.True(t, b1.AchievedAt.Equal(cliClock))
}
