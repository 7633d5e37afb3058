package badge

import (
	"sort"
	"time"

	"github.com/skill-ascent/skill-ascent/pkg/timeutil"
)

// AchievedAtUpdate - одна запись пакетного обновления AchievedAt.
type AchievedAtUpdate struct {
	BadgeID    string
	AchievedAt time.Time
}

// Delta возвращает обновления для бейджей, у которых в next задан AchievedAt,
// а в prev он пуст, отсутствует или отличается.
func Delta(prev, next []Badge) []AchievedAtUpdate {
	before := index(prev)

	var updates []AchievedAtUpdate
	for _, b := range next {
		if b.AchievedAt == nil {
			continue
		}
		old, ok := before[b.ID]
		if ok && old.AchievedAt != nil && old.AchievedAt.Equal(*b.AchievedAt) {
			continue
		}
		updates = append(updates, AchievedAtUpdate{BadgeID: b.ID, AchievedAt: *b.AchievedAt})
	}
	return updates
}

// NewlyAchieved возвращает бейджи, полученные в next и не полученные
// (или отсутствующие) в prev.
func NewlyAchieved(prev, next []Badge) []Badge {
	before := index(prev)

	var out []Badge
	for _, b := range next {
		if b.AchievedAt == nil {
			continue
		}
		if old, ok := before[b.ID]; ok && old.AchievedAt != nil {
			continue
		}
		out = append(out, b.Clone())
	}
	return out
}

// FindByID ищет бейдж по ID.
func FindByID(badges []Badge, id string) (Badge, bool) {
	for _, b := range badges {
		if b.ID == id {
			return b.Clone(), true
		}
	}
	return Badge{}, false
}

// Equal сравнивает два набора бейджей поэлементно, включая AchievedAt.
func Equal(a, b []Badge) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].SameDefinition(b[i]) {
			return false
		}
		if !sameInstant(a[i].AchievedAt, b[i].AchievedAt) {
			return false
		}
	}
	return true
}

// CloneAll возвращает глубокую копию набора.
func CloneAll(badges []Badge) []Badge {
	if badges == nil {
		return nil
	}
	out := make([]Badge, len(badges))
	for i, b := range badges {
		out[i] = b.Clone()
	}
	return out
}

// Canonicalize приводит AchievedAt к каноническому виду (UTC, микросекунды).
func Canonicalize(badges []Badge) []Badge {
	out := CloneAll(badges)
	for i := range out {
		out[i].AchievedAt = timeutil.CanonicalPtr(out[i].AchievedAt)
	}
	return out
}

// SortByID упорядочивает бейджи по ID.
func SortByID(badges []Badge) {
	sort.SliceStable(badges, func(i, j int) bool { return badges[i].ID < badges[j].ID })
}

// Merge добавляет к existing бейджи из extra, которых ещё нет, и сортирует по ID.
func Merge(existing, extra []Badge) []Badge {
	have := index(existing)
	out := CloneAll(existing)
	for _, b := range extra {
		if _, ok := have[b.ID]; ok {
			continue
		}
		out = append(out, b.Clone())
	}
	SortByID(out)
	return out
}

// Apply возвращает копию badges с применёнными обновлениями.
// Уже полученные бейджи не меняются.
func Apply(badges []Badge, updates []AchievedAtUpdate) []Badge {
	out := CloneAll(badges)
	byID := make(map[string]time.Time, len(updates))
	for _, u := range updates {
		byID[u.BadgeID] = u.AchievedAt
	}
	for i := range out {
		if out[i].AchievedAt != nil {
			continue
		}
		if at, ok := byID[out[i].ID]; ok {
			out[i].AchievedAt = &at
		}
	}
	return out
}

// Applicable возвращает обновления, которые Apply действительно применит:
// бейдж есть в наборе и его AchievedAt ещё пуст.
func Applicable(badges []Badge, updates []AchievedAtUpdate) []AchievedAtUpdate {
	byID := index(badges)
	var out []AchievedAtUpdate
	for _, u := range updates {
		if b, ok := byID[u.BadgeID]; ok && b.AchievedAt == nil {
			out = append(out, u)
		}
	}
	return out
}

// Counts возвращает число полученных и неполученных бейджей.
func Counts(badges []Badge) (achieved, remaining int) {
	for _, b := range badges {
		if b.IsAchieved() {
			achieved++
		} else {
			remaining++
		}
	}
	return achieved, remaining
}

// IDs возвращает ID бейджей в исходном порядке.
func IDs(badges []Badge) []string {
	ids := make([]string, len(badges))
	for i, b := range badges {
		ids[i] = b.ID
	}
	return ids
}

func index(badges []Badge) map[string]Badge {
	m := make(map[string]Badge, len(badges))
	for _, b := range badges {
		m[b.ID] = b
	}
	return m
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
