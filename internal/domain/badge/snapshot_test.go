package badge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelta(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)

	prev := []Badge{
		{ID: "a"},
		{ID: "b", AchievedAt: &t1},
		{ID: "c", AchievedAt: &t1},
		{ID: "d"},
	}
	next := []Badge{
		{ID: "a", AchievedAt: &t2}, // newly set
		{ID: "b", AchievedAt: &t1}, // unchanged
		{ID: "c", AchievedAt: &t2}, // different
		{ID: "d"},                  // still empty
		{ID: "e", AchievedAt: &t2}, // absent before
	}

	updates := Delta(prev, next)

	assert.Equal(t, []AchievedAtUpdate{
		{BadgeID: "a", AchievedAt: t2},
		{BadgeID: "c", AchievedAt: t2},
		{BadgeID: "e", AchievedAt: t2},
	}, updates)
}

func TestDelta_InstantComparisonIgnoresLocation(t *testing.T) {
	utc := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	local := utc.In(time.FixedZone("X", 3600))

	assert.Empty(t, Delta([]Badge{{ID: "a", AchievedAt: &utc}}, []Badge{{ID: "a", AchievedAt: &local}}))
}

func TestNewlyAchieved(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	prev := []Badge{{ID: "a"}, {ID: "b", AchievedAt: &t1}}
	next := []Badge{{ID: "a", AchievedAt: &t1}, {ID: "b", AchievedAt: &t1}, {ID: "c", AchievedAt: &t1}, {ID: "d"}}

	got := NewlyAchieved(prev, next)

	assert.Equal(t, []string{"a", "c"}, IDs(got))
}

func TestEqualAndClone(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := Catalog()
	b := Catalog()
	assert.True(t, Equal(a, b))

	b[0] = b[0].WithAchievedAt(t1)
	assert.False(t, Equal(a, b))

	c := CloneAll(b)
	*c[0].AchievedAt = t1.Add(time.Hour)
	assert.Equal(t, t1, *b[0].AchievedAt)

	assert.False(t, Equal(a, a[:2]))
}

func TestMergeAndMissing(t *testing.T) {
	existing := Catalog()[:2]
	missing := MissingFrom(existing)
	assert.Equal(t, []string{"b3", "b4", "b5", "b6"}, IDs(missing))

	merged := Merge(existing, append(missing, Catalog()[0]))
	assert.Equal(t, []string{"b1", "b2", "b3", "b4", "b5", "b6"}, IDs(merged))
	assert.Empty(t, MissingFrom(merged))
}

func TestApply_NeverOverwritesAchieved(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	badges := []Badge{{ID: "a", AchievedAt: &t1}, {ID: "b"}}

	out := Apply(badges, []AchievedAtUpdate{{BadgeID: "a", AchievedAt: t2}, {BadgeID: "b", AchievedAt: t2}})

	assert.Equal(t, t1, *out[0].AchievedAt)
	require.NotNil(t, out[1].AchievedAt)
	assert.Equal(t, t2, *out[1].AchievedAt)
	assert.Nil(t, badges[1].AchievedAt)
}

func TestApplicable(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	badges := []Badge{{ID: "a", AchievedAt: &t1}, {ID: "b"}}

	out := Applicable(badges, []AchievedAtUpdate{
		{BadgeID: "a", AchievedAt: t1},
		{BadgeID: "b", AchievedAt: t1},
		{BadgeID: "zzz", AchievedAt: t1},
	})

	assert.Equal(t, []AchievedAtUpdate{{BadgeID: "b", AchievedAt: t1}}, out)
	assert.Empty(t, Applicable(nil, []AchievedAtUpdate{{BadgeID: "a", AchievedAt: t1}}))
}

func TestCanonicalizeAndCounts(t *testing.T) {
	raw := time.Date(2024, 1, 1, 10, 0, 0, 123456789, time.FixedZone("X", 7200))
	out := Canonicalize([]Badge{{ID: "a", AchievedAt: &raw}, {ID: "b"}})

	assert.Equal(t, time.UTC, out[0].AchievedAt.Location())
	assert.Equal(t, 123456000, out[0].AchievedAt.Nanosecond())

	achieved, remaining := Counts(out)
	assert.Equal(t, 1, achieved)
	assert.Equal(t, 1, remaining)
}

func TestCatalog(t *testing.T) {
	c := Catalog()
	require.Len(t, c, 6)
	for _, b := range c {
		assert.Nil(t, b.AchievedAt)
		assert.True(t, b.CriteriaType.IsKnown(), b.ID)
		assert.True(t, b.IconName.IsKnown(), b.ID)
	}

	// Mutating one copy never leaks into the next.
	c[0].Name = "mutated"
	assert.Equal(t, "First Step", Catalog()[0].Name)

	b4, ok := CatalogByID("b4")
	require.True(t, ok)
	assert.Equal(t, "1", b4.SkillID)

	assert.Equal(t, "🏅", IconName("Unknown").Glyph())
}
