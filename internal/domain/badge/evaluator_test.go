package badge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skill-ascent/skill-ascent/internal/domain/skill"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func fixedEvaluator(t *testing.T) (*Evaluator, *int) {
	t.Helper()
	calls := 0
	ev := NewEvaluator(
		WithLocation(time.UTC),
		WithClock(func() time.Time { calls++; return fixedNow }),
	)
	return ev, &calls
}

func entry(id string, at time.Time, minutes int) skill.PracticeEntry {
	return skill.PracticeEntry{ID: id, Date: at, Duration: minutes}
}

func at(day, hour int) time.Time {
	return time.Date(2024, 3, day, hour, 0, 0, 0, time.UTC)
}

func badgeByID(t *testing.T, badges []Badge, id string) Badge {
	t.Helper()
	b, ok := FindByID(badges, id)
	require.True(t, ok, "badge %s not found", id)
	return b
}

func TestEvaluate_EmptyInputs(t *testing.T) {
	ev, calls := fixedEvaluator(t)

	out := ev.Evaluate(nil, Catalog())

	require.Len(t, out, 6)
	for _, b := range out {
		assert.Nil(t, b.AchievedAt, b.ID)
	}
	assert.Zero(t, *calls)
	assert.Empty(t, ev.Evaluate(nil, nil))
}

func TestEvaluate_SkillCountScenario(t *testing.T) {
	ev, _ := fixedEvaluator(t)
	skills := []skill.Skill{{ID: "x", Name: "Piano"}}

	out := ev.Evaluate(skills, Catalog())

	b1 := badgeByID(t, out, "b1")
	require.NotNil(t, b1.AchievedAt)
	assert.Equal(t, fixedNow, *b1.AchievedAt)
	for _, id := range []string{"b2", "b3", "b4", "b5", "b6"} {
		assert.Nil(t, badgeByID(t, out, id).AchievedAt, id)
	}
}

func TestEvaluate_TotalPracticeThresholdIsInclusive(t *testing.T) {
	ev, _ := fixedEvaluator(t)

	below := []skill.Skill{{ID: "x", PracticeLog: []skill.PracticeEntry{entry("e1", at(1, 10), 59)}}}
	out := ev.Evaluate(below, Catalog())
	assert.Nil(t, badgeByID(t, out, "b2").AchievedAt)

	exact := []skill.Skill{{ID: "x", PracticeLog: []skill.PracticeEntry{entry("e1", at(1, 10), 60)}}}
	out = ev.Evaluate(exact, Catalog())
	assert.NotNil(t, badgeByID(t, out, "b2").AchievedAt)
	assert.Nil(t, badgeByID(t, out, "b3").AchievedAt)
}

func TestEvaluate_SkillSpecificScenario(t *testing.T) {
	ev, _ := fixedEvaluator(t)
	other := skill.Skill{ID: "2", PracticeLog: []skill.PracticeEntry{entry("o1", at(1, 9), 500)}}

	ts30 := []skill.Skill{{ID: "1", PracticeLog: []skill.PracticeEntry{entry("e1", at(1, 10), 30)}}, other}
	out := ev.Evaluate(ts30, Catalog())
	assert.Nil(t, badgeByID(t, out, "b4").AchievedAt, "other skill's minutes must not count")

	ts61 := []skill.Skill{{ID: "1", PracticeLog: []skill.PracticeEntry{
		entry("e2", at(2, 10), 31),
		entry("e1", at(1, 10), 30),
	}}, other}
	out = ev.Evaluate(ts61, Catalog())
	assert.NotNil(t, badgeByID(t, out, "b4").AchievedAt)
}

func TestEvaluate_GlobalLogFrequencyCountsDistinctDays(t *testing.T) {
	ev, _ := fixedEvaluator(t)

	distinct := []skill.Skill{
		{ID: "a", PracticeLog: []skill.PracticeEntry{entry("1", at(1, 10), 5), entry("2", at(2, 10), 5)}},
		{ID: "b", PracticeLog: []skill.PracticeEntry{entry("3", at(3, 10), 5)}},
	}
	assert.NotNil(t, badgeByID(t, ev.Evaluate(distinct, Catalog()), "b5").AchievedAt)

	sameDay := []skill.Skill{
		{ID: "a", PracticeLog: []skill.PracticeEntry{entry("1", at(1, 8), 5), entry("2", at(1, 12), 5)}},
		{ID: "b", PracticeLog: []skill.PracticeEntry{entry("3", at(1, 20), 5)}},
	}
	assert.Nil(t, badgeByID(t, ev.Evaluate(sameDay, Catalog()), "b5").AchievedAt)
}

func TestEvaluate_DistinctDaysUseDisplayCalendar(t *testing.T) {
	// 20:00 and 23:00 UTC on March 1 are different local days at UTC+3.
	plus3 := time.FixedZone("UTC+3", 3*60*60)
	skills := []skill.Skill{{ID: "a", PracticeLog: []skill.PracticeEntry{
		entry("1", at(1, 20), 5),
		entry("2", at(1, 23), 5),
		entry("3", at(2, 23), 5),
	}}}

	utc := NewEvaluator(WithLocation(time.UTC), WithClock(func() time.Time { return fixedNow }))
	local := NewEvaluator(WithLocation(plus3), WithClock(func() time.Time { return fixedNow }))

	assert.Nil(t, badgeByID(t, utc.Evaluate(skills, Catalog()), "b5").AchievedAt)
	assert.NotNil(t, badgeByID(t, local.Evaluate(skills, Catalog()), "b5").AchievedAt)
}

func TestEvaluate_SkillLogFrequencyCountsEntries(t *testing.T) {
	ev, _ := fixedEvaluator(t)
	var log []skill.PracticeEntry
	for i := 0; i < 5; i++ {
		// All on one day: per-skill frequency counts entries, not days.
		log = append(log, entry(string(rune('a'+i)), at(1, 8+i), 1))
	}

	out := ev.Evaluate([]skill.Skill{{ID: "1", PracticeLog: log}}, Catalog())
	assert.NotNil(t, badgeByID(t, out, "b6").AchievedAt)

	out = ev.Evaluate([]skill.Skill{{ID: "1", PracticeLog: log[:4]}}, Catalog())
	assert.Nil(t, badgeByID(t, out, "b6").AchievedAt)
}

func TestEvaluate_MissingSkillReference(t *testing.T) {
	ev, _ := fixedEvaluator(t)
	skills := []skill.Skill{{ID: "other", PracticeLog: []skill.PracticeEntry{
		entry("1", at(1, 10), 1000), entry("2", at(2, 10), 1), entry("3", at(3, 10), 1),
		entry("4", at(4, 10), 1), entry("5", at(5, 10), 1),
	}}}

	out := ev.Evaluate(skills, Catalog())

	assert.Nil(t, badgeByID(t, out, "b4").AchievedAt)
	assert.Nil(t, badgeByID(t, out, "b6").AchievedAt)
	assert.NotNil(t, badgeByID(t, out, "b3").AchievedAt)
}

func TestEvaluate_UnknownCriteriaIsUnsatisfied(t *testing.T) {
	ev, _ := fixedEvaluator(t)
	badges := []Badge{{ID: "x", CriteriaType: "streakDays", CriteriaValue: 0}}

	out := ev.Evaluate([]skill.Skill{{ID: "1"}}, badges)

	require.Len(t, out, 1)
	assert.Nil(t, out[0].AchievedAt)
}

func TestEvaluate_Monotonicity(t *testing.T) {
	ev, _ := fixedEvaluator(t)
	earlier := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	badges := Catalog()
	badges[1] = badges[1].WithAchievedAt(earlier) // b2 achieved long ago

	// Skills no longer satisfy b2, it must stay achieved with the old instant.
	out := ev.Evaluate(nil, badges)

	b2 := badgeByID(t, out, "b2")
	require.NotNil(t, b2.AchievedAt)
	assert.Equal(t, earlier, *b2.AchievedAt)
}

func TestEvaluate_Idempotent(t *testing.T) {
	ev, _ := fixedEvaluator(t)
	skills := []skill.Skill{{ID: "1", PracticeLog: []skill.PracticeEntry{entry("1", at(1, 10), 90)}}}

	once := ev.Evaluate(skills, Catalog())

	later := NewEvaluator(WithLocation(time.UTC), WithClock(func() time.Time { return fixedNow.Add(time.Hour) }))
	twice := later.Evaluate(skills, once)

	assert.True(t, Equal(once, twice))
	assert.Empty(t, Delta(once, twice))
}

func TestEvaluate_SharedInstantAndSingleClockRead(t *testing.T) {
	ev, calls := fixedEvaluator(t)
	skills := []skill.Skill{{ID: "1", PracticeLog: []skill.PracticeEntry{
		entry("1", at(1, 10), 100), entry("2", at(2, 10), 100), entry("3", at(3, 10), 100),
	}}}

	out := ev.Evaluate(skills, Catalog())

	assert.Equal(t, 1, *calls)
	var achieved []time.Time
	for _, b := range out {
		if b.AchievedAt != nil {
			achieved = append(achieved, *b.AchievedAt)
		}
	}
	require.Len(t, achieved, 5) // b1 b2 b3 b4 b5
	for _, a := range achieved {
		assert.Equal(t, fixedNow, a)
	}
}

func TestEvaluate_DoesNotMutateInputs(t *testing.T) {
	ev, _ := fixedEvaluator(t)
	skills := []skill.Skill{{ID: "1", PracticeLog: []skill.PracticeEntry{entry("1", at(1, 10), 100)}}}
	badges := Catalog()
	before := CloneAll(badges)

	out := ev.Evaluate(skills, badges)

	assert.True(t, Equal(before, badges))
	assert.Equal(t, IDs(badges), IDs(out))
	out[0].Name = "changed"
	assert.Equal(t, "First Step", badges[0].Name)
}

func TestDefaultEvaluatorProducesCanonicalInstants(t *testing.T) {
	out := Evaluate([]skill.Skill{{ID: "1"}}, Catalog())
	b1 := badgeByID(t, out, "b1")
	require.NotNil(t, b1.AchievedAt)
	assert.Equal(t, time.UTC, b1.AchievedAt.Location())
	assert.Zero(t, b1.AchievedAt.Nanosecond()%1000)
}
