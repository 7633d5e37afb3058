package badge

import (
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// CRITERIA
// ══════════════════════════════════════════════════════════════════════════════

// CriteriaType - тип правила получения бейджа.
type CriteriaType string

const (
	// CriteriaSkillCount - количество навыков >= CriteriaValue.
	CriteriaSkillCount CriteriaType = "skillCount"

	// CriteriaTotalPracticeTime - суммарные минуты практики >= CriteriaValue.
	CriteriaTotalPracticeTime CriteriaType = "totalPracticeTime"

	// CriteriaSkillSpecificPracticeTime - минуты практики навыка SkillID >= CriteriaValue.
	CriteriaSkillSpecificPracticeTime CriteriaType = "skillSpecificPracticeTime"

	// CriteriaLogFrequency - с SkillID: число записей журнала навыка;
	// без SkillID: число различных дней практики.
	CriteriaLogFrequency CriteriaType = "logFrequency"
)

// IsKnown проверяет, поддерживается ли тип правила.
func (c CriteriaType) IsKnown() bool {
	switch c {
	case CriteriaSkillCount, CriteriaTotalPracticeTime, CriteriaSkillSpecificPracticeTime, CriteriaLogFrequency:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление.
func (c CriteriaType) String() string {
	return string(c)
}

// ══════════════════════════════════════════════════════════════════════════════
// ICONS
// ══════════════════════════════════════════════════════════════════════════════

// IconName - имя иконки бейджа из закрытого набора.
// Ядро не разрешает иконки; это делает слой отображения.
type IconName string

const (
	IconLightbulb    IconName = "Lightbulb"
	IconStar         IconName = "Star"
	IconTarget       IconName = "Target"
	IconZap          IconName = "Zap"
	IconCalendarDays IconName = "CalendarDays"
	IconTrendingUp   IconName = "TrendingUp"
	IconAward        IconName = "Award"
)

// iconGlyphs - текстовые символы иконок для CLI.
var iconGlyphs = map[IconName]string{
	IconLightbulb:    "💡",
	IconStar:         "⭐",
	IconTarget:       "🎯",
	IconZap:          "⚡",
	IconCalendarDays: "📅",
	IconTrendingUp:   "📈",
	IconAward:        "🏅",
}

// IsKnown проверяет, входит ли иконка в набор.
func (i IconName) IsKnown() bool {
	_, ok := iconGlyphs[i]
	return ok
}

// Glyph возвращает текстовый символ иконки; для неизвестных - символ Award.
func (i IconName) Glyph() string {
	if g, ok := iconGlyphs[i]; ok {
		return g
	}
	return iconGlyphs[IconAward]
}

// ══════════════════════════════════════════════════════════════════════════════
// BADGE ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Badge - экземпляр бейджа пользователя.
type Badge struct {
	// ID - стабильный идентификатор из каталога.
	ID string

	// Name - название.
	Name string

	// Description - описание условия.
	Description string

	// IconName - иконка.
	IconName IconName

	// CriteriaType - тип правила.
	CriteriaType CriteriaType

	// CriteriaValue - порог правила (минуты, навыки, дни или записи).
	CriteriaValue int

	// SkillID - навык для правил, привязанных к навыку; пустая строка - не задан.
	SkillID string

	// AchievedAt - момент получения; nil, пока бейдж не получен.
	// Монотонен: после установки не очищается и не меняется.
	AchievedAt *time.Time
}

// IsAchieved проверяет, получен ли бейдж.
func (b Badge) IsAchieved() bool {
	return b.AchievedAt != nil
}

// Clone возвращает копию бейджа с собственным AchievedAt.
func (b Badge) Clone() Badge {
	c := b
	if b.AchievedAt != nil {
		t := *b.AchievedAt
		c.AchievedAt = &t
	}
	return c
}

// WithAchievedAt возвращает копию бейджа, полученного в момент at.
func (b Badge) WithAchievedAt(at time.Time) Badge {
	c := b
	c.AchievedAt = &at
	return c
}

// SameDefinition сравнивает поля каталога (без AchievedAt).
func (b Badge) SameDefinition(o Badge) bool {
	return b.ID == o.ID &&
		b.Name == o.Name &&
		b.Description == o.Description &&
		b.IconName == o.IconName &&
		b.CriteriaType == o.CriteriaType &&
		b.CriteriaValue == o.CriteriaValue &&
		b.SkillID == o.SkillID
}
