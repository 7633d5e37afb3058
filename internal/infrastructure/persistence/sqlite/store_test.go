package sqlite

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
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"), Options{})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_MigratesOnce(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	version, err := s.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), version)

	applied, err := s.Migrate(ctx)
	require.NoError(t, err)
	assert.Zero(t, applied)
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)

	var fk, mode string
	require.NoError(t, s.DB().QueryRow("PRAGMA foreign_keys").Scan(&fk))
	require.NoError(t, s.DB().QueryRow("PRAGMA journal_mode").Scan(&mode))

	assert.Equal(t, "1", fk)
	assert.Equal(t, "wal", mode)
}

func TestBadgeRepository_SeedListUpdate(t *testing.T) {
	ctx := context.Background()
	repo := openTestStore(t).Badges()

	empty, err := repo.List(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, repo.Seed(ctx, "u1", badge.Catalog()))
	// Idempotent.
	require.NoError(t, repo.Seed(ctx, "u1", badge.Catalog()))

	listed, err := repo.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, listed, len(badge.Catalog()))
	assert.Equal(t, "b1", listed[0].ID)
	for i, b := range listed {
		assert.True(t, b.SameDefinition(badge.Catalog()[i]))
		assert.False(t, b.IsAchieved())
	}

	at := time.Date(2024, 3, 5, 12, 1, 2, 123456789, time.FixedZone("X", 3600))
	applied, err := repo.UpdateAchievedAt(ctx, "u1", []badge.AchievedAtUpdate{{BadgeID: "b1", AchievedAt: at}})
	require.NoError(t, err)
	require.Len(t, applied, 1)
	assert.Equal(t, "b1", applied[0].BadgeID)
	assert.True(t, applied[0].AchievedAt.Equal(at.Truncate(time.Microsecond)))

	listed, err = repo.List(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, listed[0].AchievedAt)
	assert.True(t, listed[0].AchievedAt.Equal(at.Truncate(time.Microsecond)))
	assert.Equal(t, time.UTC, listed[0].AchievedAt.Location())

	// Already achieved badges keep their first instant and are not reported.
	applied, err = repo.UpdateAchievedAt(ctx, "u1", []badge.AchievedAtUpdate{
		{BadgeID: "b1", AchievedAt: at.Add(time.Hour)},
		{BadgeID: "b2", AchievedAt: at.Add(time.Hour)},
	})
	require.NoError(t, err)
	require.Len(t, applied, 1)
	assert.Equal(t, "b2", applied[0].BadgeID)
	again, err := repo.List(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, again[0].AchievedAt.Equal(*listed[0].AchievedAt))

	other, err := repo.List(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, other, "users are isolated")
}

func TestSkillRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := openTestStore(t).Skills()

	target := 10.0
	created := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	s := &skill.Skill{ID: "s1", Name: "Piano", CreatedAt: created, TargetPracticeTime: &target, Category: "Art & Creativity"}
	require.NoError(t, repo.Create(ctx, "u1", s))
	require.NoError(t, repo.Create(ctx, "u1", &skill.Skill{ID: "s2", Name: "Chess", CreatedAt: created.Add(time.Hour)}))

	err := repo.Create(ctx, "u1", s)
	assert.True(t, shared.IsAlreadyExists(err))

	e1 := skill.PracticeEntry{ID: "e1", Date: created.Add(24 * time.Hour), Duration: 30}
	e2 := skill.PracticeEntry{ID: "e2", Date: created.Add(48 * time.Hour), Duration: 45, Notes: "scales"}
	require.NoError(t, repo.AddPracticeEntry(ctx, "u1", "s1", e1))
	require.NoError(t, repo.AddPracticeEntry(ctx, "u1", "s1", e2))

	err = repo.AddPracticeEntry(ctx, "u1", "missing", e1)
	assert.True(t, shared.IsNotFound(err))

	skills, err := repo.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, skills, 2)
	assert.Equal(t, "s2", skills[0].ID, "newest first")

	piano := skills[1]
	assert.Equal(t, 75, piano.TotalMinutes())
	assert.Equal(t, "e2", piano.PracticeLog[0].ID)
	require.NotNil(t, piano.TargetPracticeTime)
	assert.Equal(t, 10.0, *piano.TargetPracticeTime)
	assert.Nil(t, skills[0].TargetPracticeTime)

	e1.Duration = 60
	require.NoError(t, repo.UpdatePracticeEntry(ctx, "u1", "s1", e1))
	require.NoError(t, repo.DeletePracticeEntry(ctx, "u1", "s1", "e2"))
	assert.True(t, shared.IsNotFound(repo.DeletePracticeEntry(ctx, "u1", "s1", "e2")))

	got, err := repo.Get(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, 60, got.TotalMinutes())

	got.Name = "Grand piano"
	got.TargetPracticeTime = nil
	require.NoError(t, repo.Update(ctx, "u1", got))

	got, err = repo.Get(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, "Grand piano", got.Name)
	assert.Nil(t, got.TargetPracticeTime)

	require.NoError(t, repo.Delete(ctx, "u1", "s1"))
	_, err = repo.Get(ctx, "u1", "s1")
	assert.True(t, shared.IsNotFound(err))
	assert.True(t, shared.IsNotFound(repo.Delete(ctx, "u1", "s1")))

	var orphans int
	require.NoError(t, repo.db.QueryRow(`SELECT COUNT(*) FROM practice_entries WHERE skill_id = 's1'`).Scan(&orphans))
	assert.Zero(t, orphans, "entries cascade with the skill")
}
